package metatx

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Kind 元交易的操作类型
type Kind uint8

const (
	KindMint Kind = iota + 1
	KindRent
)

func (k Kind) String() string {
	switch k {
	case KindMint:
		return "mint"
	case KindRent:
		return "rent"
	default:
		return "unknown"
	}
}

// MaxAmount uint24 上限
const MaxAmount = 1<<24 - 1

// Request 已签名的元交易请求。Payload 是签名覆盖的原始字节，
// 任何字段变化都会让签名失效，所以请求的身份就是 Payload 本身。
type Request struct {
	Kind           Kind
	Collection     common.Address
	TokenID        *big.Int
	Amount         uint32
	Price          *big.Int // 18 位小数定点数
	PaymentAsset   common.Address
	MetadataURI    string // 仅 mint
	ExpirationDate int64  // unix 秒

	Payload []byte
}

// Hash payload 的 keccak256，用作请求的对外标识
func (r *Request) Hash() common.Hash {
	return crypto.Keccak256Hash(r.Payload)
}

func (r *Request) Expiration() time.Time {
	return time.Unix(r.ExpirationDate, 0)
}

// ExpiredAt 请求在 now 时刻是否已不可用 (now >= expirationDate)
func (r *Request) ExpiredAt(now time.Time) bool {
	return now.Unix() >= r.ExpirationDate
}
