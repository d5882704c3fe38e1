package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "显示签名地址",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, addr, err := unlockSigner(cmd)
		if err != nil {
			return err
		}
		fmt.Println(addr.Hex())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addressCmd)
}
