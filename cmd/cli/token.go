package main

import (
	"fmt"
	"time"

	"exclusivelink/internal/config"
	"exclusivelink/internal/middleware"

	"github.com/spf13/cobra"
)

var (
	flagUserID uint
	flagTTLMin int
)

// tokenCmd 签发测试用会话令牌（HS256 JWT），便于 curl 调试受保护接口
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a session JWT for API testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if cfg.Auth.Secret == "" {
			return fmt.Errorf("auth.secret is empty; set it in config")
		}

		tok, err := middleware.SignSessionToken(flagUserID, cfg.Auth.Secret,
			time.Duration(flagTTLMin)*time.Minute, time.Now())
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().UintVar(&flagUserID, "user-id", 1, "numeric user id to embed in token")
	tokenCmd.Flags().IntVar(&flagTTLMin, "ttl", 60, "token time-to-live in minutes")
}
