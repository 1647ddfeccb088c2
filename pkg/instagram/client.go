package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client Instagram Graph/OAuth HTTP 客户端
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *logrus.Logger
}

// GraphAPI 定义客户端接口，便于测试替换
type GraphAPI interface {
	// OAuth
	ExchangeCode(ctx context.Context, code string) (*TokenResponse, error)
	LongLivedToken(ctx context.Context, shortLivedToken string) (*LongLivedTokenResponse, error)
	RefreshToken(ctx context.Context, longLivedToken string) (*LongLivedTokenResponse, error)

	// 账号信息
	GetUser(ctx context.Context, accessToken string) (*UserProfile, error)
	GetPermissions(ctx context.Context, userID, accessToken string) (*PermissionsResponse, error)

	// 出站消息
	SendMessage(ctx context.Context, recipientID, text, accessToken string) error
	ReplyToComment(ctx context.Context, commentID, message, accessToken string) error
}

// NewClient 创建新的 Instagram 客户端
func NewClient(config *Config, logger *logrus.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// AuthURL 返回授权跳转地址（Facebook Login for Business 端点，
// Meta 已弃用 api.instagram.com/oauth/authorize）。
func (c *Client) AuthURL(state string) string {
	params := url.Values{}
	params.Set("client_id", c.config.AppID)
	params.Set("redirect_uri", c.config.RedirectURI)
	params.Set("scope", "instagram_basic,instagram_manage_comments,instagram_manage_messages,pages_show_list")
	params.Set("response_type", "code")
	if state != "" {
		params.Set("state", state)
	}
	return "https://www.facebook.com/dialog/oauth?" + params.Encode()
}

// ExchangeCode 授权码换短期令牌
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", c.config.AppID)
	form.Set("client_secret", c.config.AppSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", c.config.RedirectURI)
	form.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.OAuthBaseURL+"/oauth/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var token TokenResponse
	if err := c.doRequest(req, &token); err != nil {
		return nil, fmt.Errorf("exchange code for token: %w", err)
	}
	return &token, nil
}

// LongLivedToken 短期令牌换长期令牌（约 60 天）
func (c *Client) LongLivedToken(ctx context.Context, shortLivedToken string) (*LongLivedTokenResponse, error) {
	params := url.Values{}
	params.Set("grant_type", "ig_exchange_token")
	params.Set("client_secret", c.config.AppSecret)
	params.Set("access_token", shortLivedToken)

	var token LongLivedTokenResponse
	if err := c.get(ctx, c.config.GraphBaseURL+"/access_token?"+params.Encode(), &token); err != nil {
		return nil, fmt.Errorf("get long-lived token: %w", err)
	}
	return &token, nil
}

// RefreshToken 刷新长期令牌，延长有效期
func (c *Client) RefreshToken(ctx context.Context, longLivedToken string) (*LongLivedTokenResponse, error) {
	params := url.Values{}
	params.Set("grant_type", "ig_refresh_token")
	params.Set("access_token", longLivedToken)

	var token LongLivedTokenResponse
	if err := c.get(ctx, c.config.GraphBaseURL+"/refresh_access_token?"+params.Encode(), &token); err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return &token, nil
}

// GetUser 拉取账号信息
func (c *Client) GetUser(ctx context.Context, accessToken string) (*UserProfile, error) {
	params := url.Values{}
	params.Set("fields", "id,username,account_type,media_count")
	params.Set("access_token", accessToken)

	var profile UserProfile
	if err := c.get(ctx, c.config.GraphBaseURL+"/me?"+params.Encode(), &profile); err != nil {
		return nil, fmt.Errorf("get instagram user: %w", err)
	}
	return &profile, nil
}

// GetPermissions 查询已授予的权限
func (c *Client) GetPermissions(ctx context.Context, userID, accessToken string) (*PermissionsResponse, error) {
	params := url.Values{}
	params.Set("access_token", accessToken)

	var perms PermissionsResponse
	if err := c.get(ctx, c.config.GraphBaseURL+"/"+url.PathEscape(userID)+"/permissions?"+params.Encode(), &perms); err != nil {
		return nil, fmt.Errorf("get permissions: %w", err)
	}
	return &perms, nil
}

// SendMessage 通过 Graph API 发送私信回复。
// 令牌仅作为查询参数传递，调用后不保留。
func (c *Client) SendMessage(ctx context.Context, recipientID, text, accessToken string) error {
	body := SendMessageRequest{
		Recipient: MessageTarget{ID: recipientID},
		Message:   MessageContent{Text: text},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal message body: %w", err)
	}

	params := url.Values{}
	params.Set("access_token", accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.MessagingBaseURL+"/me/messages?"+params.Encode(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(req, nil)
}

// ReplyToComment 回复评论
func (c *Client) ReplyToComment(ctx context.Context, commentID, message, accessToken string) error {
	payload, err := json.Marshal(map[string]string{
		"message":      message,
		"access_token": accessToken,
	})
	if err != nil {
		return fmt.Errorf("marshal reply body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.GraphBaseURL+"/"+url.PathEscape(commentID)+"/replies", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(req, nil)
}

// RequiredPermissions 自动化功能必需的权限
var RequiredPermissions = []string{
	"instagram_basic",
	"instagram_manage_comments",
	"instagram_manage_messages",
}

// HasRequiredPermissions 检查必需权限是否全部授予
func HasRequiredPermissions(perms *PermissionsResponse) bool {
	granted := make(map[string]bool, len(perms.Data))
	for _, p := range perms.Data {
		if p.Status == "granted" {
			granted[p.Permission] = true
		}
	}
	for _, required := range RequiredPermissions {
		if !granted[required] {
			return false
		}
	}
	return true
}

func (c *Client) get(ctx context.Context, rawURL string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.doRequest(req, result)
}

// 私有方法：执行请求。非 2xx 返回 *APIError，保留响应原文。
func (c *Client) doRequest(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	// 注意：URL 带 access_token，只在 trace 级别记录
	c.logger.Tracef("Instagram API %s %s -> %d", req.Method, req.URL.Path, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
