// Package signature 负责从任意字节载荷上恢复签名者地址。
//
// 摘要遵循 EIP-191 personal message 规则 (web3.eth.accounts.sign 的行为):
// keccak256("\x19Ethereum Signed Message:\n" + len(payload) + payload)
package signature

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"marketplace-core/pkg/errno"
)

// Length r(32) + s(32) + v(1)
const Length = 65

// Digest 返回签名实际覆盖的哈希
func Digest(payload []byte) []byte {
	return accounts.TextHash(payload)
}

// RecoverSigner 恢复签名者地址。纯函数: 同样的 payload + signature 永远得到同样的地址。
func RecoverSigner(payload, sig []byte) (common.Address, error) {
	if len(sig) != Length {
		return common.Address{}, errno.ErrInvalidSignatureFormat.WithMessage(fmt.Sprintf("want %d bytes, got %d", Length, len(sig)))
	}

	// 不修改调用方的切片
	normalized := make([]byte, Length)
	copy(normalized, sig)

	v := normalized[64]
	switch v {
	case 27, 28:
		normalized[64] = v - 27
	case 0, 1:
	default:
		return common.Address{}, errno.ErrInvalidSignatureFormat.WithMessage(fmt.Sprintf("recovery id %d out of range", v))
	}

	r := new(big.Int).SetBytes(normalized[:32])
	s := new(big.Int).SetBytes(normalized[32:64])
	// homestead=true 同时拒绝高位 s (签名延展性)
	if !crypto.ValidateSignatureValues(normalized[64], r, s, true) {
		return common.Address{}, errno.ErrInvalidSignatureFormat.WithMessage("r/s values out of range")
	}

	pub, err := crypto.SigToPub(Digest(payload), normalized)
	if err != nil {
		return common.Address{}, errno.ErrInvalidSignatureFormat.WithMessage(err.Error())
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Sign 对 payload 做 personal_sign，返回 v ∈ {27, 28} 的 65 字节签名
func Sign(payload []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(Digest(payload), key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}
