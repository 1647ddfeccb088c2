package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Config 对象存储配置（Supabase Storage 兼容 REST 接口）
type Config struct {
	BaseURL    string
	ServiceKey string
	Bucket     string
	Timeout    time.Duration
}

// Client 对象存储客户端
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *logrus.Logger
}

// Uploader 上传接口，便于测试替换
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, data []byte) (string, error)
}

// NewClient 创建存储客户端
func NewClient(config *Config, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9.\-]`)

// ObjectName 生成唯一且安全的对象名
func ObjectName(filename string) string {
	base := unsafeNameChars.ReplaceAllString(filename, "_")
	return fmt.Sprintf("%s-%s", uuid.NewString(), base)
}

// Upload 上传对象并返回公开访问 URL
func (c *Client) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	if c.config.BaseURL == "" || c.config.ServiceKey == "" {
		return "", fmt.Errorf("storage credentials not configured")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectName := ObjectName(filename)
	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s",
		strings.TrimRight(c.config.BaseURL, "/"), c.config.Bucket, url.PathEscape(objectName))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.ServiceKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		if strings.Contains(string(body), "Bucket not found") || strings.Contains(string(body), "does not exist") {
			return "", fmt.Errorf("storage bucket %q does not exist", c.config.Bucket)
		}
		return "", fmt.Errorf("storage error [%d]: %s", resp.StatusCode, string(body))
	}

	c.logger.Debugf("uploaded object %s (%d bytes)", objectName, len(data))

	publicURL := fmt.Sprintf("%s/storage/v1/object/public/%s/%s",
		strings.TrimRight(c.config.BaseURL, "/"), c.config.Bucket, url.PathEscape(objectName))
	return publicURL, nil
}
