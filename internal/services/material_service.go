package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"exclusivelink/internal/models"
)

var ErrMaterialNotFound = errors.New("material not found")

// MaterialService 素材管理
type MaterialService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewMaterialService 初始化服务
func NewMaterialService(db *gorm.DB, logger *logrus.Logger) *MaterialService {
	if logger == nil {
		logger = logrus.New()
	}
	return &MaterialService{db: db, logger: logger}
}

// CreateMaterialInput 创建素材的参数
type CreateMaterialInput struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	FileURL     string `json:"file_url" binding:"required"`
	FileType    string `json:"file_type"`
	SecretCode  string `json:"secret_code" binding:"required"`
}

// Create 创建素材。暗号统一存大写，兑换时不区分大小写。
func (s *MaterialService) Create(ctx context.Context, creatorID uint, input CreateMaterialInput) (*models.Material, error) {
	code := strings.ToUpper(strings.TrimSpace(input.SecretCode))
	if code == "" {
		return nil, fmt.Errorf("secret code must not be blank")
	}

	material := models.Material{
		CreatorID:   creatorID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		FileURL:     input.FileURL,
		FileType:    input.FileType,
		SecretCode:  code,
		IsActive:    true,
	}
	if err := s.db.WithContext(ctx).Create(&material).Error; err != nil {
		return nil, fmt.Errorf("create material: %w", err)
	}

	s.logger.Infof("material %d created by user %d", material.ID, creatorID)
	return &material, nil
}

// ListByCreator 列出创作者的全部素材，新的在前
func (s *MaterialService) ListByCreator(ctx context.Context, creatorID uint) ([]models.Material, error) {
	var materials []models.Material
	err := s.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Find(&materials).Error
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	return materials, nil
}

// GetOwned 按 ID 取素材并校验归属
func (s *MaterialService) GetOwned(ctx context.Context, creatorID, materialID uint) (*models.Material, error) {
	var material models.Material
	err := s.db.WithContext(ctx).
		Where("id = ? AND creator_id = ?", materialID, creatorID).
		First(&material).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMaterialNotFound
		}
		return nil, fmt.Errorf("get material: %w", err)
	}
	return &material, nil
}

// GetPublic 公开落地页只暴露上架中的素材，带出创作者用于展示名称。
// 暗号由 json 标签隐藏，文件地址由 handler 的公开视图裁剪。
func (s *MaterialService) GetPublic(ctx context.Context, materialID uint) (*models.Material, error) {
	var material models.Material
	err := s.db.WithContext(ctx).
		Preload("Creator").
		Where("id = ? AND is_active = ?", materialID, true).
		First(&material).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMaterialNotFound
		}
		return nil, fmt.Errorf("get material: %w", err)
	}
	return &material, nil
}

// SetActive 上下架
func (s *MaterialService) SetActive(ctx context.Context, creatorID, materialID uint, active bool) error {
	result := s.db.WithContext(ctx).Model(&models.Material{}).
		Where("id = ? AND creator_id = ?", materialID, creatorID).
		Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("update material: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrMaterialNotFound
	}
	return nil
}

// Delete 软删除素材
func (s *MaterialService) Delete(ctx context.Context, creatorID, materialID uint) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND creator_id = ?", materialID, creatorID).
		Delete(&models.Material{})
	if result.Error != nil {
		return fmt.Errorf("delete material: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrMaterialNotFound
	}
	return nil
}
