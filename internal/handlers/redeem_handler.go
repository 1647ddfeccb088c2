package handlers

import (
	"errors"
	"net/http"

	"exclusivelink/internal/services"

	"github.com/gin-gonic/gin"
)

// RedeemHandler 粉丝兑换入口（无需登录）
type RedeemHandler struct {
	service *services.AccessRequestService
}

func NewRedeemHandler(service *services.AccessRequestService) *RedeemHandler {
	return &RedeemHandler{service: service}
}

// Redeem 提交兑换申请。暗号错误返回 403，素材不存在返回 404。
func (h *RedeemHandler) Redeem(c *gin.Context) {
	var req services.RedeemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	request, err := h.service.Redeem(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrWrongSecretCode):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "Forbidden", Message: "secret code does not match"})
		case errors.Is(err, services.ErrMaterialNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found", Message: "material not available"})
		case errors.Is(err, services.ErrScreenshotRequired):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Redeem failed", Message: err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Message: "request submitted, pending review",
		Data:    gin.H{"request_id": request.ID, "status": request.Status},
	})
}

// RegisterRedeemRoutes 注册公开兑换路由
func RegisterRedeemRoutes(r *gin.RouterGroup, handler *RedeemHandler) {
	r.POST("/redeem", handler.Redeem)
}
