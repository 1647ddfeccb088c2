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

var (
	ErrAutomationNotFound = errors.New("automation not found")
	ErrInvalidTrigger     = errors.New("invalid trigger type")
)

// AutomationService 自动化规则的增删改查，全部操作校验归属
type AutomationService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewAutomationService 初始化服务
func NewAutomationService(db *gorm.DB, logger *logrus.Logger) *AutomationService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AutomationService{db: db, logger: logger}
}

// CreateAutomationInput 创建参数
type CreateAutomationInput struct {
	Name     string `json:"name" binding:"required"`
	Trigger  string `json:"trigger" binding:"required"`
	FlowData string `json:"flow_data" binding:"required"`
}

func validTrigger(trigger string) bool {
	return trigger == models.TriggerDMKeyword || trigger == models.TriggerCommentKeyword
}

// Create 创建自动化，前提是已连接 Instagram。
// 流程定义不做强校验：旧版图形结构允许入库，但匹配阶段会跳过。
func (s *AutomationService) Create(ctx context.Context, userID uint, input CreateAutomationInput) (*models.Automation, error) {
	if !validTrigger(input.Trigger) {
		return nil, ErrInvalidTrigger
	}

	var integ models.InstagramIntegration
	err := s.db.WithContext(ctx).Where("user_id = ? AND is_active = ?", userID, true).First(&integ).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoIntegration
		}
		return nil, fmt.Errorf("get integration: %w", err)
	}

	if flow := DecodeFlowDefinition(input.FlowData); flow.Kind != FlowLinear {
		s.logger.Warnf("automation for user %d stored with unrecognized flow shape", userID)
	}

	automation := models.Automation{
		IntegrationID: integ.ID,
		UserID:        userID,
		Name:          strings.TrimSpace(input.Name),
		Trigger:       input.Trigger,
		FlowData:      input.FlowData,
		IsActive:      true,
	}
	if err := s.db.WithContext(ctx).Create(&automation).Error; err != nil {
		return nil, fmt.Errorf("create automation: %w", err)
	}

	s.logger.Infof("automation %d created for user %d", automation.ID, userID)
	return &automation, nil
}

// List 列出用户的自动化，新的在前（与匹配顺序一致）
func (s *AutomationService) List(ctx context.Context, userID uint) ([]models.Automation, error) {
	var automations []models.Automation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&automations).Error
	if err != nil {
		return nil, fmt.Errorf("list automations: %w", err)
	}
	return automations, nil
}

// Get 按 ID 取自动化并校验归属
func (s *AutomationService) Get(ctx context.Context, userID, automationID uint) (*models.Automation, error) {
	var automation models.Automation
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", automationID, userID).
		First(&automation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAutomationNotFound
		}
		return nil, fmt.Errorf("get automation: %w", err)
	}
	return &automation, nil
}

// UpdateAutomationInput 更新参数，nil 字段保持不变
type UpdateAutomationInput struct {
	Name     *string `json:"name"`
	Trigger  *string `json:"trigger"`
	FlowData *string `json:"flow_data"`
	IsActive *bool   `json:"is_active"`
}

// Update 局部更新自动化
func (s *AutomationService) Update(ctx context.Context, userID, automationID uint, input UpdateAutomationInput) (*models.Automation, error) {
	automation, err := s.Get(ctx, userID, automationID)
	if err != nil {
		return nil, err
	}

	changes := map[string]interface{}{}
	if input.Name != nil {
		changes["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Trigger != nil {
		if !validTrigger(*input.Trigger) {
			return nil, ErrInvalidTrigger
		}
		changes["trigger_type"] = *input.Trigger
	}
	if input.FlowData != nil {
		changes["flow_data"] = *input.FlowData
	}
	if input.IsActive != nil {
		changes["is_active"] = *input.IsActive
	}

	if len(changes) > 0 {
		if err := s.db.WithContext(ctx).Model(automation).Updates(changes).Error; err != nil {
			return nil, fmt.Errorf("update automation: %w", err)
		}
	}
	return s.Get(ctx, userID, automationID)
}

// Delete 删除自动化
func (s *AutomationService) Delete(ctx context.Context, userID, automationID uint) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", automationID, userID).
		Delete(&models.Automation{})
	if result.Error != nil {
		return fmt.Errorf("delete automation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAutomationNotFound
	}
	return nil
}
