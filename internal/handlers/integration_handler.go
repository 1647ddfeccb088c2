package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"exclusivelink/internal/middleware"
	"exclusivelink/internal/services"

	"github.com/gin-gonic/gin"
)

// AuthURLProvider 生成 Instagram 授权跳转地址
type AuthURLProvider interface {
	AuthURL(state string) string
}

// IntegrationHandler Instagram 账号连接
type IntegrationHandler struct {
	service *services.IntegrationService
	auth    AuthURLProvider
}

func NewIntegrationHandler(service *services.IntegrationService, auth AuthURLProvider) *IntegrationHandler {
	return &IntegrationHandler{service: service, auth: auth}
}

// AuthRedirect 返回授权地址，state 带上用户 ID 供回调关联
func (h *IntegrationHandler) AuthRedirect(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	c.JSON(http.StatusOK, gin.H{
		"auth_url": h.auth.AuthURL(strconv.FormatUint(uint64(userID), 10)),
	})
}

// Callback OAuth 回调，code 换令牌并建立连接
func (h *IntegrationHandler) Callback(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)

	if errMsg := c.Query("error"); errMsg != "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Authorization denied",
			Message: c.DefaultQuery("error_description", errMsg),
		})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: "missing code"})
		return
	}

	integration, err := h.service.Connect(c.Request.Context(), userID, code)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Connection failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, integration)
}

// Status 连接状态
func (h *IntegrationHandler) Status(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)

	integration, err := h.service.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrNoIntegration) {
			c.JSON(http.StatusOK, gin.H{"connected": false})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load integration", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": true, "integration": integration})
}

// Permissions 当前授权范围
func (h *IntegrationHandler) Permissions(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)

	permissions, err := h.service.Permissions(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrNoIntegration) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Failed to fetch permissions", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, permissions)
}

// Disconnect 断开连接
func (h *IntegrationHandler) Disconnect(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)

	if err := h.service.Disconnect(c.Request.Context(), userID); err != nil {
		if errors.Is(err, services.ErrNoIntegration) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Disconnect failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "disconnected"})
}

// Refresh 续期长期令牌
func (h *IntegrationHandler) Refresh(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)

	if err := h.service.RefreshToken(c.Request.Context(), userID); err != nil {
		if errors.Is(err, services.ErrNoIntegration) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Refresh failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "token refreshed"})
}

// RegisterIntegrationRoutes 注册路由（受保护）
func RegisterIntegrationRoutes(r *gin.RouterGroup, handler *IntegrationHandler) {
	ig := r.Group("/instagram")
	{
		ig.GET("/auth", handler.AuthRedirect)
		ig.GET("/callback", handler.Callback)
		ig.GET("/status", handler.Status)
		ig.GET("/permissions", handler.Permissions)
		ig.POST("/refresh", handler.Refresh)
		ig.POST("/disconnect", handler.Disconnect)
	}
}
