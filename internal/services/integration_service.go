package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"exclusivelink/internal/crypto"
	"exclusivelink/internal/models"
	"exclusivelink/pkg/instagram"
)

var ErrNoIntegration = errors.New("no instagram integration connected")

// IntegrationService Instagram 账号连接管理。
// 令牌全程密文落库，只在调用 Graph API 前解密。
type IntegrationService struct {
	db     *gorm.DB
	graph  instagram.GraphAPI
	cipher *crypto.Cipher
	logger *logrus.Logger
}

// NewIntegrationService 初始化服务
func NewIntegrationService(db *gorm.DB, graph instagram.GraphAPI, cipher *crypto.Cipher, logger *logrus.Logger) *IntegrationService {
	if logger == nil {
		logger = logrus.New()
	}
	return &IntegrationService{db: db, graph: graph, cipher: cipher, logger: logger}
}

// Connect 用 OAuth code 完成连接：换短期令牌，升级为长期令牌，
// 拉取账号信息后密文入库。重复连接覆盖旧记录（每用户至多一条）。
func (s *IntegrationService) Connect(ctx context.Context, userID uint, code string) (*models.InstagramIntegration, error) {
	token, err := s.graph.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	longLived, err := s.graph.LongLivedToken(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("upgrade to long-lived token: %w", err)
	}

	profile, err := s.graph.GetUser(ctx, longLived.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	encrypted, err := s.cipher.Encrypt(longLived.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt token: %w", err)
	}

	var integration models.InstagramIntegration
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		findErr := tx.Where("user_id = ?", userID).First(&integration).Error
		switch {
		case findErr == nil:
			integration.InstagramUserID = profile.ID
			integration.AccessToken = encrypted
			integration.IsActive = true
			return tx.Save(&integration).Error
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			integration = models.InstagramIntegration{
				UserID:          userID,
				InstagramUserID: profile.ID,
				AccessToken:     encrypted,
				IsActive:        true,
			}
			return tx.Create(&integration).Error
		default:
			return findErr
		}
	})
	if err != nil {
		return nil, fmt.Errorf("save integration: %w", err)
	}

	s.logger.Infof("user %d connected instagram account %s (@%s)", userID, profile.ID, profile.Username)
	return &integration, nil
}

// Get 查询用户的连接状态
func (s *IntegrationService) Get(ctx context.Context, userID uint) (*models.InstagramIntegration, error) {
	var integration models.InstagramIntegration
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&integration).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoIntegration
		}
		return nil, fmt.Errorf("get integration: %w", err)
	}
	return &integration, nil
}

// Permissions 拉取当前授权范围，供前端提示缺失权限
func (s *IntegrationService) Permissions(ctx context.Context, userID uint) (*instagram.PermissionsResponse, error) {
	integration, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.cipher.Decrypt(integration.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("decrypt token: %w", err)
	}
	return s.graph.GetPermissions(ctx, integration.InstagramUserID, accessToken)
}

// RefreshToken 续期长期令牌（60 天有效期，建议周期性调用）
func (s *IntegrationService) RefreshToken(ctx context.Context, userID uint) error {
	integration, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	accessToken, err := s.cipher.Decrypt(integration.AccessToken)
	if err != nil {
		return fmt.Errorf("decrypt token: %w", err)
	}

	refreshed, err := s.graph.RefreshToken(ctx, accessToken)
	if err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}

	encrypted, err := s.cipher.Encrypt(refreshed.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt token: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(integration).Update("access_token", encrypted).Error; err != nil {
		return fmt.Errorf("save refreshed token: %w", err)
	}
	s.logger.Infof("instagram token refreshed for user %d", userID)
	return nil
}

// Disconnect 断开连接：先停用名下自动化，再删除连接记录。
// 平台侧的授权由用户在 Instagram 设置里自行撤销。
func (s *IntegrationService) Disconnect(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var integration models.InstagramIntegration
		err := tx.Where("user_id = ?", userID).First(&integration).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoIntegration
			}
			return fmt.Errorf("get integration: %w", err)
		}

		if err := tx.Model(&models.Automation{}).
			Where("integration_id = ?", integration.ID).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("deactivate automations: %w", err)
		}
		if err := tx.Delete(&integration).Error; err != nil {
			return fmt.Errorf("delete integration: %w", err)
		}

		s.logger.Infof("user %d disconnected instagram account %s", userID, integration.InstagramUserID)
		return nil
	})
}
