package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"exclusivelink/internal/middleware"
	"exclusivelink/internal/services"

	"github.com/gin-gonic/gin"
)

// VerificationHandler 创作者人工审核粉丝申请
type VerificationHandler struct {
	service *services.AccessRequestService
}

func NewVerificationHandler(service *services.AccessRequestService) *VerificationHandler {
	return &VerificationHandler{service: service}
}

// List 申请列表，默认只看待审的，?status= 可过滤
func (h *VerificationHandler) List(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	status := c.DefaultQuery("status", "PENDING")
	if status == "all" {
		status = ""
	}

	requests, err := h.service.ListForCreator(c.Request.Context(), userID, status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list requests", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, requests)
}

// Approve 通过申请
func (h *VerificationHandler) Approve(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid id", Message: err.Error()})
		return
	}

	request, err := h.service.Approve(c.Request.Context(), userID, uint(id))
	if err != nil {
		c.JSON(reviewErrorStatus(err), ErrorResponse{Error: "Failed to approve request", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, request)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// Reject 驳回申请
func (h *VerificationHandler) Reject(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid id", Message: err.Error()})
		return
	}

	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	request, err := h.service.Reject(c.Request.Context(), userID, uint(id), req.Reason)
	if err != nil {
		c.JSON(reviewErrorStatus(err), ErrorResponse{Error: "Failed to reject request", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, request)
}

func reviewErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrRequestNotPending):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RegisterVerificationRoutes 注册审核路由（受保护）
func RegisterVerificationRoutes(r *gin.RouterGroup, handler *VerificationHandler) {
	verifications := r.Group("/verifications")
	{
		verifications.GET("", handler.List)
		verifications.POST(":id/approve", handler.Approve)
		verifications.POST(":id/reject", handler.Reject)
	}
}
