package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"exclusivelink/internal/models"
)

var (
	ErrWrongSecretCode    = errors.New("secret code does not match")
	ErrRequestNotFound    = errors.New("access request not found")
	ErrRequestNotPending  = errors.New("access request already reviewed")
	ErrScreenshotRequired = errors.New("follow screenshot is required")
)

// AccessRequestService 粉丝兑换申请与人工审核
type AccessRequestService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewAccessRequestService 初始化服务
func NewAccessRequestService(db *gorm.DB, logger *logrus.Logger) *AccessRequestService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AccessRequestService{db: db, logger: logger}
}

// RedeemInput 兑换参数
type RedeemInput struct {
	MaterialID    uint   `json:"material_id" binding:"required"`
	FollowerName  string `json:"follower_name"`
	FollowerEmail string `json:"follower_email" binding:"required,email"`
	SecretCode    string `json:"secret_code" binding:"required"`
	ScreenshotURL string `json:"screenshot_url" binding:"required"`
}

// Redeem 提交兑换申请。暗号比较不区分大小写（存储侧恒为大写）。
// 暗号错误直接拒绝，不落库，避免垃圾申请堆积。
func (s *AccessRequestService) Redeem(ctx context.Context, input RedeemInput) (*models.AccessRequest, error) {
	if strings.TrimSpace(input.ScreenshotURL) == "" {
		return nil, ErrScreenshotRequired
	}

	var material models.Material
	err := s.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", input.MaterialID, true).
		First(&material).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMaterialNotFound
		}
		return nil, fmt.Errorf("get material: %w", err)
	}

	attempt := strings.ToUpper(strings.TrimSpace(input.SecretCode))
	if attempt != material.SecretCode {
		return nil, ErrWrongSecretCode
	}

	request := models.AccessRequest{
		MaterialID:        material.ID,
		FollowerName:      strings.TrimSpace(input.FollowerName),
		FollowerEmail:     strings.ToLower(strings.TrimSpace(input.FollowerEmail)),
		SecretCodeAttempt: attempt,
		ScreenshotURL:     input.ScreenshotURL,
		Status:            models.RequestPending,
	}
	if err := s.db.WithContext(ctx).Create(&request).Error; err != nil {
		return nil, fmt.Errorf("create access request: %w", err)
	}

	s.logger.Infof("access request %d submitted for material %d", request.ID, material.ID)
	return &request, nil
}

// ListForCreator 列出创作者名下素材的申请，可按状态过滤（空串为全部）
func (s *AccessRequestService) ListForCreator(ctx context.Context, creatorID uint, status string) ([]models.AccessRequest, error) {
	query := s.db.WithContext(ctx).
		Joins("JOIN materials ON materials.id = access_requests.material_id").
		Where("materials.creator_id = ?", creatorID).
		Preload("Material")
	if status != "" {
		query = query.Where("access_requests.status = ?", status)
	}

	var requests []models.AccessRequest
	if err := query.Order("access_requests.created_at DESC").Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("list access requests: %w", err)
	}
	return requests, nil
}

// Approve 通过申请。状态翻转和下载计数必须同进同退，放在一个事务里。
func (s *AccessRequestService) Approve(ctx context.Context, creatorID, requestID uint) (*models.AccessRequest, error) {
	var request models.AccessRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockPendingRequest(tx, creatorID, requestID, &request); err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Model(&request).Updates(map[string]interface{}{
			"status":      models.RequestApproved,
			"reviewed_at": now,
		}).Error; err != nil {
			return fmt.Errorf("approve request: %w", err)
		}
		if err := tx.Model(&models.Material{}).
			Where("id = ?", request.MaterialID).
			UpdateColumn("download_count", gorm.Expr("download_count + 1")).Error; err != nil {
			return fmt.Errorf("bump download count: %w", err)
		}

		request.Status = models.RequestApproved
		request.ReviewedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infof("access request %d approved", requestID)
	return &request, nil
}

// Reject 驳回申请并记录理由
func (s *AccessRequestService) Reject(ctx context.Context, creatorID, requestID uint, reason string) (*models.AccessRequest, error) {
	var request models.AccessRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockPendingRequest(tx, creatorID, requestID, &request); err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Model(&request).Updates(map[string]interface{}{
			"status":           models.RequestRejected,
			"rejection_reason": reason,
			"reviewed_at":      now,
		}).Error; err != nil {
			return fmt.Errorf("reject request: %w", err)
		}

		request.Status = models.RequestRejected
		request.RejectionReason = reason
		request.ReviewedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infof("access request %d rejected", requestID)
	return &request, nil
}

// lockPendingRequest 取出待审申请并校验归属，已审过的直接报错
func (s *AccessRequestService) lockPendingRequest(tx *gorm.DB, creatorID, requestID uint, request *models.AccessRequest) error {
	err := tx.
		Joins("JOIN materials ON materials.id = access_requests.material_id").
		Where("access_requests.id = ? AND materials.creator_id = ?", requestID, creatorID).
		First(request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		}
		return fmt.Errorf("get access request: %w", err)
	}
	if request.Status != models.RequestPending {
		return ErrRequestNotPending
	}
	return nil
}
