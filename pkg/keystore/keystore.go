// Package keystore 用密码加密保存签名账户的助记词 (scrypt + AES-256-GCM)。
package keystore

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"golang.org/x/crypto/scrypt"

	"marketplace-core/pkg/crypto_util"
)

// EncryptedKeyJSON 参照 Ethereum Keystore V3 的结构，密文内容是助记词
type EncryptedKeyJSON struct {
	Address string     `json:"address,omitempty"` // 派生出的签名地址，仅用于展示
	Crypto  CryptoJSON `json:"crypto"`
	Id      string     `json:"id"`
	Version int        `json:"version"`
}

type CryptoJSON struct {
	Cipher     string    `json:"cipher"`
	CipherText string    `json:"ciphertext"` // hex(nonce + 密文)
	KDF        string    `json:"kdf"`
	KDFParams  KDFParams `json:"kdfparams"`
	MAC        string    `json:"mac"`
}

type KDFParams struct {
	DKLen int    `json:"dklen"`
	N     int    `json:"n"`
	R     int    `json:"r"`
	P     int    `json:"p"`
	Salt  string `json:"salt"`
}

const (
	StandardScryptN = 1 << 18
	LightScryptN    = 1 << 12

	scryptR     = 8
	scryptP     = 1
	scryptDKLen = 32
)

var ErrMACMismatch = errors.New("invalid password or corrupted data (MAC mismatch)")

// EncryptMnemonic 使用标准 scrypt 参数加密
func EncryptMnemonic(mnemonic, password string) (*EncryptedKeyJSON, error) {
	return EncryptMnemonicN(mnemonic, password, StandardScryptN)
}

// EncryptMnemonicN 指定 scrypt N 参数加密
func EncryptMnemonicN(mnemonic, password string, n int) (*EncryptedKeyJSON, error) {
	salt := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	derivedKey, err := scrypt.Key([]byte(password), salt, n, scryptR, scryptP, scryptDKLen)
	if err != nil {
		return nil, err
	}

	ciphertext, err := crypto_util.EncryptAESGCM(derivedKey, []byte(mnemonic))
	if err != nil {
		return nil, err
	}

	return &EncryptedKeyJSON{
		Version: 3,
		Id:      uuid.NewString(),
		Crypto: CryptoJSON{
			Cipher:     "aes-256-gcm",
			CipherText: hex.EncodeToString(ciphertext),
			KDF:        "scrypt",
			KDFParams: KDFParams{
				DKLen: scryptDKLen,
				N:     n,
				R:     scryptR,
				P:     scryptP,
				Salt:  hex.EncodeToString(salt),
			},
			MAC: hex.EncodeToString(mac(derivedKey, ciphertext)),
		},
	}, nil
}

// DecryptMnemonic 解密获取助记词
func DecryptMnemonic(keyJSON *EncryptedKeyJSON, password string) (string, error) {
	params := keyJSON.Crypto.KDFParams
	salt, err := hex.DecodeString(params.Salt)
	if err != nil {
		return "", fmt.Errorf("invalid salt: %v", err)
	}
	ciphertext, err := hex.DecodeString(keyJSON.Crypto.CipherText)
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext: %v", err)
	}
	expectedMAC, err := hex.DecodeString(keyJSON.Crypto.MAC)
	if err != nil {
		return "", fmt.Errorf("invalid mac: %v", err)
	}

	derivedKey, err := scrypt.Key([]byte(password), salt, params.N, params.R, params.P, params.DKLen)
	if err != nil {
		return "", err
	}

	if subtle.ConstantTimeCompare(expectedMAC, mac(derivedKey, ciphertext)) != 1 {
		return "", ErrMACMismatch
	}

	plaintext, err := crypto_util.DecryptAESGCM(derivedKey, ciphertext)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %v", err)
	}
	return string(plaintext), nil
}

func mac(derivedKey, ciphertext []byte) []byte {
	sum := sha256.Sum256(append(append([]byte(nil), derivedKey...), ciphertext...))
	return sum[:]
}

// SaveToFile 以 0600 权限写入
func (k *EncryptedKeyJSON) SaveToFile(filename string) error {
	data, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0600)
}

func LoadFromFile(filename string) (*EncryptedKeyJSON, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var k EncryptedKeyJSON
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, err
	}
	return &k, nil
}
