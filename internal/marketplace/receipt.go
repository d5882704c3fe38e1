package marketplace

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"marketplace-core/internal/fee"
)

const (
	OpMetaTxMint   = "metaTxMint"
	OpMetaTxRent   = "metaTxRent"
	OpReturnRented = "returnRented"
)

// Balance 操作完成后某持有人的代币余额
type Balance struct {
	Holder  string `json:"holder"`
	TokenID string `json:"token_id"`
	Balance uint64 `json:"balance"`
}

// Payment 支付分账，金额均为 18 位精度整数的十进制字符串
type Payment struct {
	Asset   string `json:"asset"`
	Gross   string `json:"gross"`
	Fee     string `json:"fee"`
	Net     string `json:"net"`
	FeeBps  uint32 `json:"fee_bps"`
	Display string `json:"display"` // 人类可读的 gross，例如 "1.5"
}

func newPayment(asset common.Address, gross, feeAmount, net *big.Int, bps uint32) *Payment {
	return &Payment{
		Asset:   asset.Hex(),
		Gross:   gross.String(),
		Fee:     feeAmount.String(),
		Net:     net.String(),
		FeeBps:  bps,
		Display: fee.FromBaseUnits(gross),
	}
}

// Cost 执行成本，仅用于观测
type Cost struct {
	Calls   int           `json:"calls"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Rental 租赁回执附带的托管信息
type Rental struct {
	Lender         string `json:"lender"`
	Renter         string `json:"renter"`
	ExpirationDate int64  `json:"expiration_date"`
	Settled        bool   `json:"settled"`
}

// Receipt 每个公开操作的返回
type Receipt struct {
	Operation   string    `json:"operation"`
	RequestHash string    `json:"request_hash,omitempty"`
	Signer      string    `json:"signer,omitempty"`
	Relayer     string    `json:"relayer,omitempty"`
	Collection  string    `json:"collection"`
	TokenIDs    []string  `json:"token_ids"`
	Amounts     []uint32  `json:"amounts"`
	Balances    []Balance `json:"balances"`
	Payment     *Payment  `json:"payment,omitempty"`
	Rental      *Rental   `json:"rental,omitempty"`
	Cost        Cost      `json:"cost"`
}
