package models

import (
	"time"

	"gorm.io/gorm"
)

// 创作者账号
type User struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	Email                 string         `gorm:"unique;not null" json:"email"`
	Username              string         `gorm:"unique;not null" json:"username"`
	PasswordHash          string         `gorm:"not null" json:"-"`
	DisplayName           string         `json:"display_name"`
	Bio                   string         `gorm:"type:text" json:"bio"`
	AvatarURL             string         `json:"avatar_url"`
	YoutubeChannelID      string         `json:"youtube_channel_id"`
	TiktokUsername        string         `json:"tiktok_username"`
	InstagramUsername     string         `json:"instagram_username"`
	SubscriptionStatus    string         `gorm:"default:'TRIAL'" json:"subscription_status"` // TRIAL, ACTIVE, EXPIRED
	SubscriptionExpiresAt *time.Time     `json:"subscription_expires_at"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`

	// 关联关系
	Materials   []Material           `gorm:"foreignKey:CreatorID" json:"materials,omitempty"`
	Integration *InstagramIntegration `gorm:"foreignKey:UserID" json:"integration,omitempty"`
}

// 受保护的素材（视频中公布暗号，粉丝凭暗号申请下载）
type Material struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CreatorID     uint           `gorm:"index;not null" json:"creator_id"`
	Title         string         `gorm:"not null" json:"title"`
	Description   string         `gorm:"type:text" json:"description"`
	FileURL       string         `gorm:"not null" json:"file_url"`
	FileType      string         `json:"file_type"`
	SecretCode    string         `gorm:"not null" json:"-"` // stored uppercase
	IsActive      bool           `json:"is_active"`
	DownloadCount int            `gorm:"default:0" json:"download_count"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	Creator        User            `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	AccessRequests []AccessRequest `gorm:"foreignKey:MaterialID" json:"access_requests,omitempty"`
}

// 粉丝的访问申请
type AccessRequest struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	MaterialID        uint       `gorm:"index;not null" json:"material_id"`
	FollowerName      string     `json:"follower_name"`
	FollowerEmail     string     `gorm:"not null" json:"follower_email"`
	SecretCodeAttempt string     `json:"secret_code_attempt"`
	ScreenshotURL     string     `gorm:"not null" json:"screenshot_url"`
	Status            string     `gorm:"default:'PENDING';index" json:"status"` // PENDING, APPROVED, REJECTED
	RejectionReason   string     `json:"rejection_reason"`
	ReviewedAt        *time.Time `json:"reviewed_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	Material Material `gorm:"foreignKey:MaterialID" json:"material,omitempty"`
}

// 已连接的 Instagram 商业账号。AccessToken 存密文信封，
// 除请求处理期间解密外不得以明文出现，也不得写入日志或响应。
type InstagramIntegration struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"uniqueIndex;not null" json:"user_id"` // at most one integration per user
	InstagramUserID string    `gorm:"index;not null" json:"instagram_user_id"`
	AccessToken     string    `gorm:"type:text;not null" json:"-"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	User        User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Automations []Automation `gorm:"foreignKey:IntegrationID" json:"automations,omitempty"`
}

// 关键词自动回复规则
type Automation struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	IntegrationID uint      `gorm:"index;not null" json:"integration_id"`
	UserID        uint      `gorm:"index;not null" json:"user_id"`
	Name          string    `gorm:"not null" json:"name"`
	Trigger       string    `gorm:"column:trigger_type;not null" json:"trigger"` // DM_KEYWORD, COMMENT_KEYWORD
	FlowData      string    `gorm:"type:text" json:"flow_data"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Integration InstagramIntegration `gorm:"foreignKey:IntegrationID" json:"integration,omitempty"`
}

// 触发器类型
const (
	TriggerDMKeyword      = "DM_KEYWORD"
	TriggerCommentKeyword = "COMMENT_KEYWORD"
)

// 访问申请状态
const (
	RequestPending  = "PENDING"
	RequestApproved = "APPROVED"
	RequestRejected = "REJECTED"
)
