package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"marketplace-core/pkg/bip39"
	"marketplace-core/pkg/keystore"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "创建新的签名钱包",
	Long:  `生成 24 词 BIP-39 助记词，用密码加密 (scrypt + AES-GCM) 后保存为 Keystore 文件。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("keystore")
		path, _ := cmd.Flags().GetString("path")
		light, _ := cmd.Flags().GetBool("light")
		force, _ := cmd.Flags().GetBool("force")
		restore, _ := cmd.Flags().GetBool("restore")

		if _, err := os.Stat(file); err == nil && !force {
			return fmt.Errorf("%s 已存在，使用 --force 覆盖", file)
		}

		svc := bip39.NewMnemonicService()
		var mnemonic string
		if restore {
			input, err := readSecret("请输入已有助记词: ")
			if err != nil {
				return err
			}
			mnemonic = strings.Join(strings.Fields(input), " ")
			if !svc.ValidateMnemonic(mnemonic) {
				return errors.New("助记词无效 (单词或校验和错误)")
			}
		} else {
			var err error
			mnemonic, err = svc.GenerateMnemonic(256)
			if err != nil {
				return fmt.Errorf("生成助记词失败: %w", err)
			}
		}

		password, err := readPassword("设置 Keystore 密码: ")
		if err != nil {
			return err
		}
		if os.Getenv(PasswordEnv) == "" {
			confirm, err := readPassword("再次输入密码: ")
			if err != nil {
				return err
			}
			if confirm != password {
				return errors.New("两次输入的密码不一致")
			}
		}

		n := keystore.StandardScryptN
		if light {
			n = keystore.LightScryptN
		}
		encrypted, err := keystore.EncryptMnemonicN(mnemonic, password, n)
		if err != nil {
			return fmt.Errorf("加密失败: %w", err)
		}

		_, addr, err := signerFromMnemonic(mnemonic, path)
		if err != nil {
			return err
		}
		encrypted.Address = addr.Hex()
		if err := encrypted.SaveToFile(file); err != nil {
			return fmt.Errorf("保存 Keystore 失败: %w", err)
		}

		if !restore {
			fmt.Println("---------------------------------------------------")
			fmt.Printf("助记词 (Mnemonic):\n%s\n", mnemonic)
			fmt.Println("---------------------------------------------------")
		}
		fmt.Printf("签名地址 [%s]: %s\n", path, addr.Hex())
		fmt.Printf("Keystore 已保存到: %s\n", file)
		fmt.Println("请离线备份助记词！任何拥有助记词的人都可以代表该地址签名。")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("light", false, "使用低强度 scrypt 参数 (仅用于测试)")
	initCmd.Flags().Bool("force", false, "覆盖已存在的 Keystore")
	initCmd.Flags().Bool("restore", false, "从已有助记词恢复，而不是生成新的")
}
