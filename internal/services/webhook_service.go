package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"exclusivelink/internal/crypto"
	"exclusivelink/internal/metrics"
	"exclusivelink/internal/models"
	"exclusivelink/pkg/instagram"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SignaturePrefix x-hub-signature-256 头的固定前缀
const SignaturePrefix = "sha256="

// DeliveryFilter 去重扩展点：返回 false 则整个投递被跳过（已验签之后）。
// 平台不提供投递 ID，默认 nil 表示每次投递都会被处理，重复投递会重复回复。
type DeliveryFilter func(rawBody []byte) bool

// WebhookService 处理 Instagram webhook 的验签、解码与自动回复分发
type WebhookService struct {
	db          *gorm.DB
	graph       instagram.GraphAPI
	cipher      *crypto.Cipher
	appSecret   string
	verifyToken string
	logger      *logrus.Logger
	filter      DeliveryFilter
}

// NewWebhookService 初始化服务
func NewWebhookService(db *gorm.DB, graph instagram.GraphAPI, cipher *crypto.Cipher, appSecret, verifyToken string, logger *logrus.Logger) *WebhookService {
	if logger == nil {
		logger = logrus.New()
	}
	return &WebhookService{
		db:          db,
		graph:       graph,
		cipher:      cipher,
		appSecret:   appSecret,
		verifyToken: verifyToken,
		logger:      logger,
	}
}

// SetDeliveryFilter 配置投递过滤器（可选）
func (s *WebhookService) SetDeliveryFilter(f DeliveryFilter) {
	s.filter = f
}

// VerifyHandshake 校验订阅握手：mode 必须为 subscribe 且 token 一致
func (s *WebhookService) VerifyHandshake(mode, token string) bool {
	if s.verifyToken == "" {
		return false
	}
	return mode == "subscribe" && token == s.verifyToken
}

// VerifySignature 对原始请求体做 HMAC-SHA256 验签。
// 任何异常情况（缺头、缺密钥、格式错、不匹配）一律返回 false，从不报错。
// 比较使用常数时间；长度不符直接判失败。
func (s *WebhookService) VerifySignature(rawBody []byte, signatureHeader string) bool {
	if s.appSecret == "" || signatureHeader == "" {
		return false
	}
	if !strings.HasPrefix(signatureHeader, SignaturePrefix) {
		return false
	}
	candidate, err := hex.DecodeString(strings.TrimPrefix(signatureHeader, SignaturePrefix))
	if err != nil || len(candidate) != sha256.Size {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.appSecret))
	mac.Write(rawBody)
	return hmac.Equal(candidate, mac.Sum(nil))
}

// webhook 信封结构。缺键的 entry/change 单独跳过。
type webhookEnvelope struct {
	Entry []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	Changes []webhookChange `json:"changes"`
}

type webhookChange struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

type messagesValue struct {
	Messages []messageRecord `json:"messages"`
}

type messageRecord struct {
	Sender    idRef `json:"sender"`
	Recipient idRef `json:"recipient"`
	Message   struct {
		Text string `json:"text"`
	} `json:"message"`
}

type idRef struct {
	ID string `json:"id"`
}

// ProcessResult 单次投递的处理结果
type ProcessResult struct {
	Success    bool `json:"success"`
	Dispatched int  `json:"-"`
}

// ProcessPayload 对已验签的投递做解码与分发。
// 消息按投递顺序逐条同步处理；单条失败不影响后续。
// 永不返回错误，调用方无论如何都要以 200 应答，避免平台重试风暴。
func (s *WebhookService) ProcessPayload(ctx context.Context, rawBody []byte) ProcessResult {
	metrics.IncWebhookDelivery()

	if s.filter != nil && !s.filter(rawBody) {
		s.logger.Debug("webhook: delivery skipped by filter")
		return ProcessResult{Success: true}
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		s.logger.Warnf("webhook: malformed payload: %v", err)
		return ProcessResult{Success: false}
	}

	dispatched := 0
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			if change.Field == "" || len(change.Value) == 0 {
				continue
			}
			switch change.Field {
			case "messages":
				dispatched += s.handleMessages(ctx, change.Value)
			case "comments":
				// 评论自动化尚未上线，占位不报错
				s.logger.Debug("webhook: comment event received (not handled)")
			case "mentions":
				s.logger.Debug("webhook: mention event received (not handled)")
			default:
				// 未知事件类型：向前兼容，直接忽略
				s.logger.Debugf("webhook: ignoring field %q", change.Field)
			}
		}
	}

	return ProcessResult{Success: true, Dispatched: dispatched}
}

func (s *WebhookService) handleMessages(ctx context.Context, value json.RawMessage) int {
	var payload messagesValue
	if err := json.Unmarshal(value, &payload); err != nil {
		s.logger.Warnf("webhook: malformed messages value: %v", err)
		return 0
	}

	dispatched := 0
	for _, record := range payload.Messages {
		if s.handleMessage(ctx, record) {
			dispatched++
		}
	}
	return dispatched
}

// handleMessage 处理单条入站私信，成功发出回复时返回 true。
func (s *WebhookService) handleMessage(ctx context.Context, record messageRecord) bool {
	senderID := record.Sender.ID
	recipientID := record.Recipient.ID
	messageText := record.Message.Text
	if senderID == "" || recipientID == "" || messageText == "" {
		return false
	}

	var integration models.InstagramIntegration
	err := s.db.WithContext(ctx).
		Where("instagram_user_id = ? AND is_active = ?", recipientID, true).
		First(&integration).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warnf("webhook: integration lookup failed: %v", err)
		} else {
			s.logger.Debugf("webhook: no active integration for account %s", recipientID)
		}
		return false
	}

	// 最近创建的自动化优先，匹配顺序是对外契约
	var automations []models.Automation
	if err := s.db.WithContext(ctx).
		Where("integration_id = ? AND is_active = ? AND trigger_type = ?", integration.ID, true, models.TriggerDMKeyword).
		Order("created_at DESC").
		Find(&automations).Error; err != nil {
		s.logger.Warnf("webhook: load automations failed: %v", err)
		return false
	}

	result, ok := MatchAutomation(messageText, automations)
	if !ok {
		s.logger.Debugf("webhook: no keyword match for account %s", recipientID)
		return false
	}
	metrics.IncKeywordMatch()
	s.logger.Infof("webhook: automation %q matched for account %s", result.Automation.Name, recipientID)

	// 令牌解密失败必须单独暴露：可能是密钥轮换事故，不能混入普通跳过路径
	accessToken, err := s.cipher.Decrypt(integration.AccessToken)
	if err != nil {
		s.logger.Errorf("webhook: access token decrypt failed for integration %d: %v", integration.ID, err)
		return false
	}

	if err := s.graph.SendMessage(ctx, senderID, result.Flow.ReplyText(), accessToken); err != nil {
		// 不重试也不中断：记录诊断信息后继续处理后续消息
		metrics.IncReplyFailure()
		s.logger.Warnf("webhook: reply dispatch failed for sender %s: %v", senderID, err)
		return false
	}

	metrics.IncReplySent()
	s.logger.Infof("webhook: automated reply sent to %s", senderID)
	return true
}
