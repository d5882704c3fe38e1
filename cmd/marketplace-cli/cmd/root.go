package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "marketplace-cli",
	Short: "市场元交易签名工具",
	Long: `为市场元交易生成签名请求的命令行工具。
支持生成 BIP-39 助记词并加密保存为 Keystore，派生签名地址，
以及离线构造并签名 mint / rent 请求 (输出可直接提交给 HTTP API)。`,
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("keystore", "k", "signer.json", "Keystore 文件路径")
	rootCmd.PersistentFlags().String("path", "m/44'/60'/0'/0/0", "签名密钥的派生路径")
}
