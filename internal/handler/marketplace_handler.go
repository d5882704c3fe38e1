package handler

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	"marketplace-core/internal/escrow"
	"marketplace-core/internal/fee"
	"marketplace-core/internal/handler/request"
	"marketplace-core/internal/handler/response"
	"marketplace-core/internal/marketplace"
	"marketplace-core/pkg/errno"
	"marketplace-core/pkg/validator"
)

type MarketplaceHandler struct {
	core *marketplace.Core
}

func NewMarketplaceHandler(core *marketplace.Core) *MarketplaceHandler {
	return &MarketplaceHandler{core: core}
}

func bindError(err error) error {
	return errno.ErrBind.WithMessage(validator.GetErrorMsg(err))
}

func decodeHex(field, s string) ([]byte, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, errno.ErrBind.WithMessage(fmt.Sprintf("%s: %v", field, err))
	}
	return b, nil
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errno.ErrBind.WithMessage(field + " 不是合法的以太坊地址")
	}
	return common.HexToAddress(s), nil
}

func parseTokenID(field, s string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(s, 10)
	if !ok || id.Sign() < 0 {
		return nil, errno.ErrBind.WithMessage(field + " 必须是非负十进制整数")
	}
	return id, nil
}

// MetaTxMint 中继铸造
// @Summary 中继元交易铸造
// @Description relayer 提交签名者预签名的铸造请求，relayer 支付 price
// @Tags MetaTx
// @Accept json
// @Produce json
// @Param X-Relayer-Key header string true "Relayer API Key"
// @Param request body request.MetaTxMintRequest true "Signed mint request"
// @Success 200 {object} response.Response{data=marketplace.Receipt}
// @Router /metatx/mint [post]
func (h *MarketplaceHandler) MetaTxMint(c *gin.Context) {
	var req request.MetaTxMintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	relayer, ok := RelayerFrom(c)
	if !ok {
		response.Error(c, errno.ErrUnauthenticated)
		return
	}
	payload, err := decodeHex("payload", req.Payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	sig, err := decodeHex("signature", req.Signature)
	if err != nil {
		response.Error(c, err)
		return
	}

	rcpt, err := h.core.MetaTxMint(c.Request.Context(), relayer, payload, []byte(req.Length), sig)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rcpt)
}

// MetaTxRent 中继租赁
// @Summary 中继元交易租赁
// @Description relayer 作为承租人提交出租人预签名的租赁请求，可部分租赁
// @Tags MetaTx
// @Accept json
// @Produce json
// @Param X-Relayer-Key header string true "Relayer API Key"
// @Param request body request.MetaTxRentRequest true "Signed rent request"
// @Success 200 {object} response.Response{data=marketplace.Receipt}
// @Router /metatx/rent [post]
func (h *MarketplaceHandler) MetaTxRent(c *gin.Context) {
	var req request.MetaTxRentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	relayer, ok := RelayerFrom(c)
	if !ok {
		response.Error(c, errno.ErrUnauthenticated)
		return
	}
	payload, err := decodeHex("payload", req.Payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	sig, err := decodeHex("signature", req.Signature)
	if err != nil {
		response.Error(c, err)
		return
	}

	rcpt, err := h.core.MetaTxRent(c.Request.Context(), relayer, payload, []byte(req.Length), sig, req.RequestedAmount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rcpt)
}

// ReturnRented 批量回收
// @Summary 回收到期租赁
// @Description 任何人都可以调用；整批全部成功或全部拒绝
// @Tags Rental
// @Accept json
// @Produce json
// @Param request body request.ReturnRentedRequest true "Return request"
// @Success 200 {object} response.Response{data=marketplace.Receipt}
// @Router /rentals/return [post]
func (h *MarketplaceHandler) ReturnRented(c *gin.Context) {
	var req request.ReturnRentedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	ids := make([]*big.Int, len(req.TokenIDs))
	for i, s := range req.TokenIDs {
		id, err := parseTokenID(fmt.Sprintf("token_ids[%d]", i), s)
		if err != nil {
			response.Error(c, err)
			return
		}
		ids[i] = id
	}

	rcpt, err := h.core.ReturnRented(c.Request.Context(),
		common.HexToAddress(req.Collection), ids, req.Amounts,
		common.HexToAddress(req.Lender), common.HexToAddress(req.Renter))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rcpt)
}

// RentalView 租赁记录的对外表示
type RentalView struct {
	Collection     string `json:"collection"`
	TokenID        string `json:"token_id"`
	Lender         string `json:"lender"`
	Renter         string `json:"renter"`
	Amount         uint32 `json:"amount"`
	ExpirationDate int64  `json:"expiration_date"`
	Settled        bool   `json:"settled"`
	SettledAt      *int64 `json:"settled_at,omitempty"`
	RequestHash    string `json:"request_hash"`
}

func newRentalView(a *escrow.Agreement) RentalView {
	v := RentalView{
		Collection:     a.Collection.Hex(),
		TokenID:        a.TokenID.String(),
		Lender:         a.Lender.Hex(),
		Renter:         a.Renter.Hex(),
		Amount:         a.Amount,
		ExpirationDate: a.ExpirationDate,
		Settled:        a.Settled,
		RequestHash:    a.RequestHash.Hex(),
	}
	if a.SettledAt != nil {
		ts := a.SettledAt.Unix()
		v.SettledAt = &ts
	}
	return v
}

// GetRental 查询单个租赁
// @Summary 查询租赁
// @Tags Rental
// @Produce json
// @Param collection path string true "Collection address"
// @Param token_id path string true "Token ID"
// @Param renter path string true "Renter address"
// @Success 200 {object} response.Response{data=RentalView}
// @Router /rentals/{collection}/{token_id}/{renter} [get]
func (h *MarketplaceHandler) GetRental(c *gin.Context) {
	collection, err := parseAddress("collection", c.Param("collection"))
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := parseTokenID("token_id", c.Param("token_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	renter, err := parseAddress("renter", c.Param("renter"))
	if err != nil {
		response.Error(c, err)
		return
	}

	a, err := h.core.Rental(c.Request.Context(), escrow.NewKey(collection, id, renter))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, newRentalView(a))
}

// ListRentals 按出租人查询
// @Summary 出租人的租赁列表
// @Tags Rental
// @Produce json
// @Param lender query string true "Lender address"
// @Param include_settled query bool false "Include settled rentals"
// @Success 200 {object} response.Response{data=[]RentalView}
// @Router /rentals [get]
func (h *MarketplaceHandler) ListRentals(c *gin.Context) {
	lender, err := parseAddress("lender", c.Query("lender"))
	if err != nil {
		response.Error(c, err)
		return
	}
	includeSettled, _ := strconv.ParseBool(c.DefaultQuery("include_settled", "false"))

	list, err := h.core.RentalsByLender(c.Request.Context(), lender, includeSettled)
	if err != nil {
		response.Error(c, err)
		return
	}
	views := make([]RentalView, 0, len(list))
	for i := range list {
		views = append(views, newRentalView(&list[i]))
	}
	response.Success(c, views)
}

// TierView 费率档位的对外表示
type TierView struct {
	MinimumStake      string `json:"minimum_stake"`
	MarketplaceFeeBps uint32 `json:"marketplace_fee_bps"`
	MintFeeBps        uint32 `json:"mint_fee_bps"`
}

func newTierView(t fee.Tier) TierView {
	return TierView{
		MinimumStake:      fee.FromBaseUnits(t.MinimumStake),
		MarketplaceFeeBps: t.MarketplaceFeeBps,
		MintFeeBps:        t.MintFeeBps,
	}
}

// GetFees 账户当前费率
// @Summary 查询账户适用的费率档位
// @Tags Fee
// @Produce json
// @Param address path string true "Account address"
// @Success 200 {object} response.Response
// @Router /fees/{address} [get]
func (h *MarketplaceHandler) GetFees(c *gin.Context) {
	account, err := parseAddress("address", c.Param("address"))
	if err != nil {
		response.Error(c, err)
		return
	}
	tier, staked, err := h.core.Tier(c.Request.Context(), account)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"address": account.Hex(),
		"staked":  fee.FromBaseUnits(staked),
		"tier":    newTierView(tier),
	})
}

// GetFeeTiers 当前费率表
// @Summary 查询费率表
// @Tags Fee
// @Produce json
// @Success 200 {object} response.Response{data=[]TierView}
// @Router /fees [get]
func (h *MarketplaceHandler) GetFeeTiers(c *gin.Context) {
	tiers := h.core.FeeTable().Tiers()
	views := make([]TierView, 0, len(tiers))
	for _, t := range tiers {
		views = append(views, newTierView(t))
	}
	response.Success(c, views)
}

// ReplaceFeeTiers 管理员整表替换费率
// @Summary 替换费率表
// @Description 新表整体生效，不支持部分修改
// @Tags Admin
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer admin token"
// @Param request body request.ReplaceFeeTiersRequest true "Fee tiers"
// @Success 200 {object} response.Response{data=[]TierView}
// @Router /admin/fee-tiers [put]
func (h *MarketplaceHandler) ReplaceFeeTiers(c *gin.Context) {
	var req request.ReplaceFeeTiersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	tiers := make([]fee.Tier, 0, len(req.Tiers))
	for i, t := range req.Tiers {
		stake, err := fee.ToBaseUnits(t.MinimumStake)
		if err != nil {
			response.Error(c, errno.ErrInvalidFeeTable.WithMessage(fmt.Sprintf("tier %d: %v", i, err)))
			return
		}
		tiers = append(tiers, fee.Tier{
			MinimumStake:      stake,
			MarketplaceFeeBps: t.MarketplaceFeeBps,
			MintFeeBps:        t.MintFeeBps,
		})
	}
	table, err := fee.NewTable(tiers)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.core.ReplaceFeeTable(table)

	views := make([]TierView, 0, len(tiers))
	for _, t := range table.Tiers() {
		views = append(views, newTierView(t))
	}
	response.Success(c, views)
}

// GetBalance 代币余额
// @Summary 查询代币余额
// @Tags Ledger
// @Produce json
// @Param collection path string true "Collection address"
// @Param token_id path string true "Token ID"
// @Param holder path string true "Holder address"
// @Success 200 {object} response.Response
// @Router /balances/{collection}/{token_id}/{holder} [get]
func (h *MarketplaceHandler) GetBalance(c *gin.Context) {
	collection, err := parseAddress("collection", c.Param("collection"))
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := parseTokenID("token_id", c.Param("token_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	holder, err := parseAddress("holder", c.Param("holder"))
	if err != nil {
		response.Error(c, err)
		return
	}
	bal, err := h.core.BalanceOf(c.Request.Context(), collection, holder, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, marketplace.Balance{Holder: holder.Hex(), TokenID: id.String(), Balance: bal})
}
