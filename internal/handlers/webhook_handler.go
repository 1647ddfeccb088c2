package handlers

import (
	"io"
	"net/http"

	"exclusivelink/internal/metrics"
	"exclusivelink/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// WebhookHandler Instagram webhook 入口。
// 应答策略：握手失败和验签失败返回 403，其余一律 200，
// 避免平台因非 2xx 反复重试甚至禁用订阅。
type WebhookHandler struct {
	service *services.WebhookService
	logger  *logrus.Logger
}

func NewWebhookHandler(service *services.WebhookService, logger *logrus.Logger) *WebhookHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &WebhookHandler{service: service, logger: logger}
}

// Verify 订阅握手：原样返回 hub.challenge
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if !h.service.VerifyHandshake(mode, token) {
		h.logger.Warn("webhook: handshake rejected")
		c.String(http.StatusForbidden, "Forbidden")
		return
	}
	c.String(http.StatusOK, challenge)
}

// Receive 事件投递入口
func (h *WebhookHandler) Receive(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		// 读不到 body 也要应答 200，处理标记为失败
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	if !h.service.VerifySignature(rawBody, c.GetHeader("X-Hub-Signature-256")) {
		metrics.IncSignatureFailure()
		h.logger.Warn("webhook: signature verification failed")
		c.String(http.StatusForbidden, "Forbidden")
		return
	}

	result := h.service.ProcessPayload(c.Request.Context(), rawBody)
	c.JSON(http.StatusOK, gin.H{"success": result.Success})
}

// RegisterWebhookRoutes 注册 webhook 路由（公开，验签自带鉴权）
func RegisterWebhookRoutes(r *gin.RouterGroup, handler *WebhookHandler) {
	ig := r.Group("/instagram")
	{
		ig.GET("", handler.Verify)
		ig.POST("", handler.Receive)
	}
}
