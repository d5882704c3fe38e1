package crypto_util

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// Fingerprint 带域分隔的 Blake3 指纹: blake3(len(domain) || domain || data)。
// 不同域下相同的 data 得到不同指纹。
func Fingerprint(domain string, data []byte) string {
	h := blake3.New(32, nil)
	h.Write([]byte{byte(len(domain))})
	h.Write([]byte(domain))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
