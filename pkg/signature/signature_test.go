package signature

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-core/pkg/errno"
)

func TestRecoverSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	payload := []byte("rent 4 units of token 1")
	sig, err := Sign(payload, key)
	require.NoError(t, err)
	require.Len(t, sig, Length)
	assert.Contains(t, []byte{27, 28}, sig[64])

	got, err := RecoverSigner(payload, sig)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// 确定性
	again, err := RecoverSigner(payload, sig)
	require.NoError(t, err)
	assert.Equal(t, got, again)

	// 原始 0/1 恢复位同样接受
	raw := append([]byte(nil), sig...)
	raw[64] -= 27
	got, err = RecoverSigner(payload, raw)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRecoverSigner_TamperedPayload(t *testing.T) {
	key, _ := crypto.GenerateKey()
	sig, err := Sign([]byte("price=1"), key)
	require.NoError(t, err)

	got, err := RecoverSigner([]byte("price=2"), sig)
	require.NoError(t, err)
	assert.NotEqual(t, crypto.PubkeyToAddress(key.PublicKey), got)
}

func TestRecoverSigner_InvalidFormat(t *testing.T) {
	key, _ := crypto.GenerateKey()
	payload := []byte("payload")
	sig, _ := Sign(payload, key)

	badV := append([]byte(nil), sig...)
	badV[64] = 29

	tests := []struct {
		name string
		sig  []byte
	}{
		{"empty", nil},
		{"short", sig[:64]},
		{"long", append(append([]byte(nil), sig...), 0x00)},
		{"v out of range", badV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RecoverSigner(payload, tt.sig)
			assert.True(t, errors.Is(err, errno.ErrInvalidSignatureFormat), "got %v", err)
		})
	}
}

func TestRecoverSigner_DoesNotMutateInput(t *testing.T) {
	key, _ := crypto.GenerateKey()
	payload := []byte("payload")
	sig, _ := Sign(payload, key)
	before := append([]byte(nil), sig...)

	_, err := RecoverSigner(payload, sig)
	require.NoError(t, err)
	assert.Equal(t, before, sig)
}
