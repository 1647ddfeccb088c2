package instagram

import (
	"fmt"
	"time"
)

// Config 客户端配置
type Config struct {
	AppID            string
	AppSecret        string
	RedirectURI      string
	OAuthBaseURL     string // code -> short-lived token
	GraphBaseURL     string // profile / permissions / long-lived token
	MessagingBaseURL string // outbound DM replies
	Timeout          time.Duration
}

// DefaultConfig 返回默认端点配置
func DefaultConfig() *Config {
	return &Config{
		OAuthBaseURL:     "https://api.instagram.com",
		GraphBaseURL:     "https://graph.instagram.com",
		MessagingBaseURL: "https://graph.facebook.com/v19.0",
		Timeout:          30 * time.Second,
	}
}

// TokenResponse 授权码换取的短期令牌
type TokenResponse struct {
	AccessToken string   `json:"access_token"`
	UserID      int64    `json:"user_id"`
	Permissions []string `json:"permissions,omitempty"`
}

// LongLivedTokenResponse 长期令牌（约 60 天）
type LongLivedTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
}

// UserProfile Instagram 账号信息
type UserProfile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	AccountType string `json:"account_type,omitempty"`
	MediaCount  int    `json:"media_count,omitempty"`
}

// Permission 单项授权状态
type Permission struct {
	Permission string `json:"permission"`
	Status     string `json:"status"` // granted, declined
}

// PermissionsResponse 授权列表
type PermissionsResponse struct {
	Data []Permission `json:"data"`
}

// SendMessageRequest 出站私信回复体
type SendMessageRequest struct {
	Recipient MessageTarget  `json:"recipient"`
	Message   MessageContent `json:"message"`
}

type MessageTarget struct {
	ID string `json:"id"`
}

type MessageContent struct {
	Text string `json:"text"`
}

// APIError 非 2xx 响应。Body 保留原文用于排障。
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("instagram API error [%d]: %s", e.StatusCode, e.Body)
}
