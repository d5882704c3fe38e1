package bip32

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultSignerPath BIP-44 以太坊第一个外部地址
const DefaultSignerPath = "m/44'/60'/0'/0/0"

var (
	ErrInvalidSeed = errors.New("无效的种子")
	ErrInvalidPath = errors.New("无效的派生路径")
)

// Keychain 封装 hdkeychain 扩展密钥，用于派生元交易签名账户
type Keychain struct {
	key *hdkeychain.ExtendedKey
}

// NewMasterFromSeed 从 BIP-39 种子生成主密钥。
// 扩展密钥的序列化版本号沿用 mainnet，不影响派生结果。
func NewMasterFromSeed(seed []byte) (*Keychain, error) {
	if len(seed) < hdkeychain.MinSeedBytes || len(seed) > hdkeychain.MaxSeedBytes {
		return nil, ErrInvalidSeed
	}
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("生成主密钥失败: %v", err)
	}
	return &Keychain{key: master}, nil
}

func (k *Keychain) String() string {
	return k.key.String()
}

// DerivePath 支持 m/44'/60'/0'/0/0 或 m/44h/60h/0h/0/0
func (k *Keychain) DerivePath(path string) (*Keychain, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "m" {
		return k, nil
	}
	if !strings.HasPrefix(path, "m/") {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	current := k.key
	for _, segment := range strings.Split(path[2:], "/") {
		hardened := false
		if strings.HasSuffix(segment, "'") || strings.HasSuffix(segment, "h") {
			hardened = true
			segment = segment[:len(segment)-1]
		}

		val, err := strconv.ParseUint(segment, 10, 31)
		if err != nil {
			return nil, fmt.Errorf("%w: 路径段 '%s': %v", ErrInvalidPath, segment, err)
		}
		index := uint32(val)
		if hardened {
			index += hdkeychain.HardenedKeyStart
		}

		current, err = current.Derive(index)
		if err != nil {
			return nil, fmt.Errorf("派生子密钥失败: %v", err)
		}
	}
	return &Keychain{key: current}, nil
}

// SigningKey 返回 secp256k1 私钥 (go-ethereum 使用的 ecdsa 形式)
func (k *Keychain) SigningKey() (*ecdsa.PrivateKey, error) {
	priv, err := k.key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("获取私钥失败: %v", err)
	}
	return priv.ToECDSA(), nil
}

func (k *Keychain) PublicKey() (*btcec.PublicKey, error) {
	pub, err := k.key.ECPubKey()
	if err != nil {
		return nil, fmt.Errorf("获取公钥失败: %v", err)
	}
	return pub, nil
}

// Address 返回对应的以太坊地址
func (k *Keychain) Address() (common.Address, error) {
	pub, err := k.PublicKey()
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub.ToECDSA()), nil
}

// DeriveSigner 种子 + 路径 -> 签名私钥和地址
func DeriveSigner(seed []byte, path string) (*ecdsa.PrivateKey, common.Address, error) {
	master, err := NewMasterFromSeed(seed)
	if err != nil {
		return nil, common.Address{}, err
	}
	child, err := master.DerivePath(path)
	if err != nil {
		return nil, common.Address{}, err
	}
	key, err := child.SigningKey()
	if err != nil {
		return nil, common.Address{}, err
	}
	return key, crypto.PubkeyToAddress(key.PublicKey), nil
}
