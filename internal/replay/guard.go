// Package replay 记录已消费的元交易，保证每个签名载荷只能执行一次。
package replay

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"marketplace-core/internal/metatx"
	"marketplace-core/pkg/crypto_util"
)

// Consumption 一次消费记录
type Consumption struct {
	Fingerprint string
	Signer      common.Address
	Kind        metatx.Kind
	ExpiresAt   time.Time
}

// Guard 已消费请求集合。Consume 必须是原子的 check-and-set。
type Guard interface {
	// Consume 已存在时返回 errno.ErrReplayedRequest
	Consume(ctx context.Context, c Consumption) error
	// Release 撤销一次未成功执行的消费
	Release(ctx context.Context, fingerprint string) error
	Consumed(ctx context.Context, fingerprint string) (bool, error)
}

// Fingerprint 请求身份 = kind ‖ 签名者 ‖ 签名覆盖的原始字节。
// 不看签名本身，同一签名者对同一载荷的不同合法签名 (例如 v 的两种写法) 只能用一次；
// 不同签名者签出相同字节 (半同质化代币的多个持有人) 是不同的请求。
func Fingerprint(kind metatx.Kind, signer common.Address, payload []byte) string {
	data := make([]byte, 0, common.AddressLength+len(payload))
	data = append(data, signer.Bytes()...)
	data = append(data, payload...)
	return crypto_util.Fingerprint("metatx:"+kind.String(), data)
}

// NewConsumption 根据解码后的请求和恢复出的签名者构造消费记录
func NewConsumption(req *metatx.Request, signer common.Address) Consumption {
	return Consumption{
		Fingerprint: Fingerprint(req.Kind, signer, req.Payload),
		Signer:      signer,
		Kind:        req.Kind,
		ExpiresAt:   req.Expiration(),
	}
}
