package cmd

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"marketplace-core/internal/fee"
	"marketplace-core/internal/metatx"
	"marketplace-core/pkg/signature"
)

// SignedRequest 与 POST /api/v1/metatx/{mint,rent} 的请求体一致
type SignedRequest struct {
	Payload         string `json:"payload"`
	Length          string `json:"length"`
	Signature       string `json:"signature"`
	RequestedAmount uint32 `json:"requested_amount,omitempty"`
	Signer          string `json:"signer"`
	RequestHash     string `json:"request_hash"`
}

// requestFlags sign 子命令共用的参数
type requestFlags struct {
	Collection string
	TokenID    string
	Amount     uint32
	Price      string // 代币单位，如 "1.5"
	Asset      string
	URI        string
	ExpiresIn  time.Duration
	Expiration int64 // unix 秒，优先于 ExpiresIn
	Selector   bool
	Requested  uint32
}

func (f requestFlags) expiration(now time.Time) int64 {
	if f.Expiration > 0 {
		return f.Expiration
	}
	return now.Add(f.ExpiresIn).Unix()
}

func (f requestFlags) parse() (common.Address, *big.Int, *big.Int, common.Address, error) {
	if !common.IsHexAddress(f.Collection) {
		return common.Address{}, nil, nil, common.Address{}, fmt.Errorf("无效的 collection 地址: %q", f.Collection)
	}
	if !common.IsHexAddress(f.Asset) {
		return common.Address{}, nil, nil, common.Address{}, fmt.Errorf("无效的支付资产地址: %q", f.Asset)
	}
	id, ok := new(big.Int).SetString(f.TokenID, 10)
	if !ok || id.Sign() < 0 {
		return common.Address{}, nil, nil, common.Address{}, fmt.Errorf("无效的 token-id: %q", f.TokenID)
	}
	price, err := fee.ToBaseUnits(f.Price)
	if err != nil {
		return common.Address{}, nil, nil, common.Address{}, fmt.Errorf("无效的价格 %q: %w", f.Price, err)
	}
	if price.Sign() < 0 {
		return common.Address{}, nil, nil, common.Address{}, fmt.Errorf("价格不能为负: %q", f.Price)
	}
	return common.HexToAddress(f.Collection), id, price, common.HexToAddress(f.Asset), nil
}

// buildSigned 编码并签名请求
func buildSigned(kind metatx.Kind, f requestFlags, key *ecdsa.PrivateKey, now time.Time) (*SignedRequest, error) {
	collection, id, price, asset, err := f.parse()
	if err != nil {
		return nil, err
	}
	if f.Amount == 0 {
		return nil, errors.New("amount 必须大于 0")
	}

	var payload []byte
	switch kind {
	case metatx.KindMint:
		payload, err = metatx.EncodeMint(metatx.MintParams{
			Collection:     collection,
			TokenID:        id,
			Amount:         f.Amount,
			Price:          price,
			PaymentAsset:   asset,
			MetadataURI:    f.URI,
			ExpirationDate: f.expiration(now),
		}, f.Selector)
	case metatx.KindRent:
		if f.Requested == 0 || f.Requested > f.Amount {
			return nil, fmt.Errorf("requested 必须在 1..%d 之间", f.Amount)
		}
		payload, err = metatx.EncodeRent(metatx.RentParams{
			Collection:     collection,
			TokenID:        id,
			Amount:         f.Amount,
			Price:          price,
			PaymentAsset:   asset,
			ExpirationDate: f.expiration(now),
		}, f.Selector)
	default:
		return nil, fmt.Errorf("未知的请求类型: %s", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("编码失败: %w", err)
	}

	sig, err := signature.Sign(payload, key)
	if err != nil {
		return nil, fmt.Errorf("签名失败: %w", err)
	}

	out := &SignedRequest{
		Payload:     hexutil.Encode(payload),
		Length:      string(metatx.LengthHeader(payload)),
		Signature:   hexutil.Encode(sig),
		Signer:      crypto.PubkeyToAddress(key.PublicKey).Hex(),
		RequestHash: crypto.Keccak256Hash(payload).Hex(),
	}
	if kind == metatx.KindRent {
		out.RequestedAmount = f.Requested
	}
	return out, nil
}

func readRequestFlags(cmd *cobra.Command) requestFlags {
	var f requestFlags
	f.Collection, _ = cmd.Flags().GetString("collection")
	f.TokenID, _ = cmd.Flags().GetString("token-id")
	f.Amount, _ = cmd.Flags().GetUint32("amount")
	f.Price, _ = cmd.Flags().GetString("price")
	f.Asset, _ = cmd.Flags().GetString("asset")
	f.ExpiresIn, _ = cmd.Flags().GetDuration("expires-in")
	f.Expiration, _ = cmd.Flags().GetInt64("expiration")
	f.Selector, _ = cmd.Flags().GetBool("selector")
	if cmd.Flags().Lookup("uri") != nil {
		f.URI, _ = cmd.Flags().GetString("uri")
	}
	if cmd.Flags().Lookup("requested") != nil {
		f.Requested, _ = cmd.Flags().GetUint32("requested")
	}
	return f
}

func runSign(kind metatx.Kind) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		f := readRequestFlags(cmd)
		key, _, err := unlockSigner(cmd)
		if err != nil {
			return err
		}
		out, err := buildSigned(kind, f, key, time.Now())
		if err != nil {
			return err
		}
		b, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(b))
		return nil
	}
}

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "构造并签名元交易请求",
}

var signMintCmd = &cobra.Command{
	Use:   "mint",
	Short: "签名铸造请求 (签名者为创作者)",
	RunE:  runSign(metatx.KindMint),
}

var signRentCmd = &cobra.Command{
	Use:   "rent",
	Short: "签名租赁请求 (签名者为出租人)",
	RunE:  runSign(metatx.KindRent),
}

func addRequestFlags(c *cobra.Command) {
	c.Flags().String("collection", "", "集合合约地址")
	c.Flags().String("token-id", "", "token id (十进制)")
	c.Flags().Uint32("amount", 0, "数量")
	c.Flags().String("price", "0", "价格，代币单位 (如 1.5)")
	c.Flags().String("asset", "", "支付资产地址")
	c.Flags().Duration("expires-in", time.Hour, "请求有效期")
	c.Flags().Int64("expiration", 0, "绝对过期时间 (unix 秒)，优先于 --expires-in")
	c.Flags().Bool("selector", false, "payload 带 4 字节函数选择器")
	_ = c.MarkFlagRequired("collection")
	_ = c.MarkFlagRequired("token-id")
	_ = c.MarkFlagRequired("amount")
	_ = c.MarkFlagRequired("asset")
}

func init() {
	addRequestFlags(signMintCmd)
	signMintCmd.Flags().String("uri", "", "元数据 URI")

	addRequestFlags(signRentCmd)
	signRentCmd.Flags().Uint32("requested", 0, "relayer 将提交的租赁数量 (写入输出的 requested_amount)")

	signCmd.AddCommand(signMintCmd, signRentCmd)
	rootCmd.AddCommand(signCmd)
}
