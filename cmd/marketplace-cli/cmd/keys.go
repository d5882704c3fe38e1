package cmd

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"marketplace-core/pkg/bip32"
	"marketplace-core/pkg/bip39"
	"marketplace-core/pkg/keystore"
)

// PasswordEnv 非交互环境下从该变量读取 Keystore 密码
const PasswordEnv = "MARKETPLACE_KEYSTORE_PASSWORD"

func readPassword(prompt string) (string, error) {
	if p := os.Getenv(PasswordEnv); p != "" {
		return p, nil
	}
	return readSecret(prompt)
}

// readSecret 从终端读取不回显的输入
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("读取输入失败: %w", err)
	}
	return string(b), nil
}

// signerFromMnemonic 助记词 -> seed -> 派生路径上的签名私钥
func signerFromMnemonic(mnemonic, path string) (*ecdsa.PrivateKey, common.Address, error) {
	seed, err := bip39.NewMnemonicService().MnemonicToSeed(mnemonic, "")
	if err != nil {
		return nil, common.Address{}, err
	}
	return bip32.DeriveSigner(seed, path)
}

// unlockSigner 加载 Keystore，输入密码解密后派生签名私钥
func unlockSigner(cmd *cobra.Command) (*ecdsa.PrivateKey, common.Address, error) {
	file, _ := cmd.Flags().GetString("keystore")
	path, _ := cmd.Flags().GetString("path")

	encrypted, err := keystore.LoadFromFile(file)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("加载 Keystore 失败: %w", err)
	}
	password, err := readPassword("请输入 Keystore 密码: ")
	if err != nil {
		return nil, common.Address{}, err
	}
	mnemonic, err := keystore.DecryptMnemonic(encrypted, password)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("解密失败 (密码错误?): %w", err)
	}
	return signerFromMnemonic(mnemonic, path)
}
