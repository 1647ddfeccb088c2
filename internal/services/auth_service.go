package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"exclusivelink/internal/models"
)

// TrialDuration 新账号的试用期
const TrialDuration = 7 * 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
)

// AuthService 账号注册与登录
type AuthService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewAuthService 初始化服务
func NewAuthService(db *gorm.DB, logger *logrus.Logger) *AuthService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AuthService{db: db, logger: logger}
}

// RegisterInput 注册参数
type RegisterInput struct {
	Email       string `json:"email" binding:"required,email"`
	Username    string `json:"username" binding:"required,min=3,max=30"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name"`
}

// Register 创建创作者账号，默认 7 天试用
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	username := strings.TrimSpace(input.Username)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	expires := time.Now().Add(TrialDuration)
	user := models.User{
		Email:                 email,
		Username:              username,
		PasswordHash:          string(hash),
		DisplayName:           input.DisplayName,
		SubscriptionStatus:    "TRIAL",
		SubscriptionExpiresAt: &expires,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Infof("user %d registered (%s)", user.ID, user.Username)
	return &user, nil
}

// Login 校验邮箱密码。无论哪一步失败都返回同一个错误，不泄露账号是否存在。
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// GetUser 按 ID 查询账号
func (s *AuthService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	return &user, nil
}

// ProfileUpdate 可编辑的资料字段
type ProfileUpdate struct {
	DisplayName       *string `json:"display_name"`
	Bio               *string `json:"bio"`
	AvatarURL         *string `json:"avatar_url"`
	YoutubeChannelID  *string `json:"youtube_channel_id"`
	TiktokUsername    *string `json:"tiktok_username"`
	InstagramUsername *string `json:"instagram_username"`
}

// UpdateProfile 局部更新资料，nil 字段保持不变
func (s *AuthService) UpdateProfile(ctx context.Context, userID uint, update ProfileUpdate) (*models.User, error) {
	changes := map[string]interface{}{}
	if update.DisplayName != nil {
		changes["display_name"] = *update.DisplayName
	}
	if update.Bio != nil {
		changes["bio"] = *update.Bio
	}
	if update.AvatarURL != nil {
		changes["avatar_url"] = *update.AvatarURL
	}
	if update.YoutubeChannelID != nil {
		changes["youtube_channel_id"] = *update.YoutubeChannelID
	}
	if update.TiktokUsername != nil {
		changes["tiktok_username"] = *update.TiktokUsername
	}
	if update.InstagramUsername != nil {
		changes["instagram_username"] = *update.InstagramUsername
	}

	if len(changes) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(changes).Error; err != nil {
			return nil, fmt.Errorf("update profile: %w", err)
		}
	}
	return s.GetUser(ctx, userID)
}
