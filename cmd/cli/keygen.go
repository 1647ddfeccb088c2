package main

import (
	"fmt"

	"exclusivelink/internal/crypto"

	"github.com/spf13/cobra"
)

// keygenCmd 生成令牌加密密钥（64 个 hex 字符），写入 encryption.key
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new AES-256 key for token encryption",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
