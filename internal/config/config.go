package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Instagram  InstagramConfig  `yaml:"instagram"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
	Security   SecurityConfig   `yaml:"security"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"` // public URL, used in OAuth redirects
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// AuthConfig 会话 Cookie 配置（Cookie 内为 HS256 JWT）
type AuthConfig struct {
	CookieName   string        `yaml:"cookie_name"`
	Secret       string        `yaml:"secret"`
	ExpiresIn    time.Duration `yaml:"expires_in"`
	SecureCookie bool          `yaml:"secure_cookie"`
}

// EncryptionConfig holds the at-rest token cipher key (64 hex chars, 32 bytes).
type EncryptionConfig struct {
	Key string `yaml:"key"`
}

// InstagramConfig Meta/Instagram 应用配置
type InstagramConfig struct {
	AppID              string        `yaml:"app_id"`
	AppSecret          string        `yaml:"app_secret"`
	RedirectURI        string        `yaml:"redirect_uri"`
	WebhookVerifyToken string        `yaml:"webhook_verify_token"`
	OAuthBaseURL       string        `yaml:"oauth_base_url"`
	GraphBaseURL       string        `yaml:"graph_base_url"`
	MessagingBaseURL   string        `yaml:"messaging_base_url"`
	Timeout            time.Duration `yaml:"timeout"`
}

// StorageConfig 对象存储（Supabase Storage 兼容 REST 接口）
type StorageConfig struct {
	BaseURL     string        `yaml:"base_url"`
	ServiceKey  string        `yaml:"service_key"`
	Bucket      string        `yaml:"bucket"`
	MaxFileSize int64         `yaml:"max_file_size"` // bytes
	Timeout     time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // json, text
	Output     string `yaml:"output"` // stdout, file, both
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"`    // MB
	MaxAge     int    `yaml:"max_age"`     // days
	MaxBackups int    `yaml:"max_backups"` // number of backup files
	Compress   bool   `yaml:"compress"`    // compress backup files
}

type SecurityConfig struct {
	CORS         CORSConfig         `yaml:"cors"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

type RateLimitingConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

type MonitoringConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MetricsPath string        `yaml:"metrics_path"`
	Tracing     TracingConfig `yaml:"tracing"`
}

// TracingConfig OpenTelemetry 追踪配置
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`     // OTLP gRPC 端点
	Insecure    bool    `yaml:"insecure"`     // 是否使用明文（本地/开发）
	SampleRatio float64 `yaml:"sample_ratio"` // 采样率 0.0~1.0
	ServiceName string  `yaml:"service_name"`
}

func Load() *Config {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(err)
	}
	return &config
}

// Validate 启动期配置校验。密钥缺失或长度错误是致命错误：
// 不允许带着残缺的加密/webhook 配置对外提供服务。
func (c *Config) Validate() error {
	if len(c.Encryption.Key) != 64 {
		return fmt.Errorf("encryption.key must be 64 hex characters (32 bytes), got %d", len(c.Encryption.Key))
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required")
	}
	if c.Instagram.AppSecret == "" {
		return fmt.Errorf("instagram.app_secret is required for webhook signature verification")
	}
	if c.Instagram.WebhookVerifyToken == "" {
		return fmt.Errorf("instagram.webhook_verify_token is required for webhook handshake")
	}
	return nil
}

// GetDefaultConfig 返回默认配置
func GetDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Password:        "password",
			Name:            "exclusivelink",
			MaxOpenConns:    100,
			MaxIdleConns:    10,
			ConnMaxLifetime: 3600 * time.Second,
		},
		Auth: AuthConfig{
			CookieName:   "el_session",
			ExpiresIn:    7 * 24 * time.Hour,
			SecureCookie: false,
		},
		Instagram: InstagramConfig{
			OAuthBaseURL:     "https://api.instagram.com",
			GraphBaseURL:     "https://graph.instagram.com",
			MessagingBaseURL: "https://graph.facebook.com/v19.0",
			Timeout:          30 * time.Second,
		},
		Storage: StorageConfig{
			Bucket:      "materials",
			MaxFileSize: 50 << 20,
			Timeout:     60 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			Output:     "both",
			FilePath:   "./logs/exclusivelink.log",
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
			Compress:   true,
		},
		Security: SecurityConfig{
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
				AllowedHeaders: []string{"*"},
			},
			RateLimiting: RateLimitingConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             30,
			},
		},
		Monitoring: MonitoringConfig{
			Enabled:     true,
			MetricsPath: "/metrics-lite",
			Tracing: TracingConfig{
				Enabled:     false,
				Endpoint:    "http://localhost:4317",
				Insecure:    true,
				SampleRatio: 0.1,
				ServiceName: "exclusivelink",
			},
		},
	}
}
