package bip32

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-core/pkg/bip39"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestDeriveSigner(t *testing.T) {
	seed, err := bip39.NewMnemonicService().MnemonicToSeed(testMnemonic, "")
	require.NoError(t, err, "生成种子失败")

	key, addr, err := DeriveSigner(seed, DefaultSignerPath)
	require.NoError(t, err, "派生签名账户失败")

	// 公开测试向量 (与常见钱包一致)
	assert.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", addr.Hex())
	assert.Equal(t, addr, crypto.PubkeyToAddress(key.PublicKey))

	master, err := NewMasterFromSeed(seed)
	require.NoError(t, err)
	child, err := master.DerivePath(DefaultSignerPath)
	require.NoError(t, err)
	pub, err := child.PublicKey()
	require.NoError(t, err)
	assert.Equal(t, crypto.CompressPubkey(&key.PublicKey), pub.SerializeCompressed(), "公钥应与私钥匹配")
	childAddr, err := child.Address()
	require.NoError(t, err)
	assert.Equal(t, addr, childAddr)
}

func TestDerivePath(t *testing.T) {
	seed, err := bip39.NewMnemonicService().MnemonicToSeed(testMnemonic, "")
	require.NoError(t, err)

	master, err := NewMasterFromSeed(seed)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"master", "m", false},
		{"hardened apostrophe", "m/44'/60'/0'", false},
		{"hardened h", "m/44h/60h/0h", false},
		{"missing prefix", "44'/60'", true},
		{"bad segment", "m/44'/abc", true},
		{"index overflow", "m/2147483648", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := master.DerivePath(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			assert.NoError(t, err, "派生路径 %s 失败", tt.path)
		})
	}

	a, err := master.DerivePath("m/44'/60'/0'")
	require.NoError(t, err)
	b, err := master.DerivePath("m/44h/60h/0h")
	require.NoError(t, err)
	assert.Equal(t, a.String(), b.String(), "两种硬化写法应该等价")
}

func TestNewMasterFromSeedInvalid(t *testing.T) {
	_, err := NewMasterFromSeed([]byte{0x01})
	assert.ErrorIs(t, err, ErrInvalidSeed)
}
