package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"exclusivelink/internal/middleware"
	"exclusivelink/internal/services"

	"github.com/gin-gonic/gin"
)

// AutomationHandler 关键词自动回复规则的 CRUD
type AutomationHandler struct {
	service *services.AutomationService
}

func NewAutomationHandler(service *services.AutomationService) *AutomationHandler {
	return &AutomationHandler{service: service}
}

// List 自动化列表（新的在前，与匹配顺序一致）
func (h *AutomationHandler) List(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	automations, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list automations", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, automations)
}

// Create 新建自动化
func (h *AutomationHandler) Create(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)

	var req services.CreateAutomationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	automation, err := h.service.Create(c.Request.Context(), userID, req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, services.ErrNoIntegration) {
			status = http.StatusPreconditionFailed
		}
		c.JSON(status, ErrorResponse{Error: "Failed to create automation", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, automation)
}

// Get 单条自动化
func (h *AutomationHandler) Get(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid id", Message: err.Error()})
		return
	}

	automation, err := h.service.Get(c.Request.Context(), userID, uint(id))
	if err != nil {
		c.JSON(automationErrorStatus(err), ErrorResponse{Error: "Failed to get automation", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, automation)
}

// Update 更新自动化
func (h *AutomationHandler) Update(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid id", Message: err.Error()})
		return
	}

	var req services.UpdateAutomationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	automation, err := h.service.Update(c.Request.Context(), userID, uint(id), req)
	if err != nil {
		c.JSON(automationErrorStatus(err), ErrorResponse{Error: "Failed to update automation", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, automation)
}

// Delete 删除自动化
func (h *AutomationHandler) Delete(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid id", Message: err.Error()})
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, uint(id)); err != nil {
		c.JSON(automationErrorStatus(err), ErrorResponse{Error: "Failed to delete automation", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}

func automationErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrAutomationNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidTrigger):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// RegisterAutomationRoutes 注册路由（受保护）
func RegisterAutomationRoutes(r *gin.RouterGroup, handler *AutomationHandler) {
	automations := r.Group("/automations")
	{
		automations.GET("", handler.List)
		automations.POST("", handler.Create)
		automations.GET(":id", handler.Get)
		automations.PUT(":id", handler.Update)
		automations.DELETE(":id", handler.Delete)
	}
}
