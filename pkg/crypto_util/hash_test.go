package crypto_util

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"lukechampine.com/blake3"
)

func TestFingerprint(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}

	a := Fingerprint("mint", payload)
	b := Fingerprint("mint", payload)
	c := Fingerprint("rent", payload)
	d := Fingerprint("mint", []byte{0x01, 0x02, 0x04})

	assert.Len(t, a, 64)
	assert.Equal(t, a, b, "相同输入应得到相同指纹")
	assert.NotEqual(t, a, c, "不同域应得到不同指纹")
	assert.NotEqual(t, a, d, "不同载荷应得到不同指纹")
	plain := blake3.Sum256(payload)
	assert.NotEqual(t, hex.EncodeToString(plain[:]), a, "指纹应包含域前缀")
}
