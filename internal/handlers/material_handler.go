package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"exclusivelink/internal/middleware"
	"exclusivelink/internal/models"
	"exclusivelink/internal/services"

	"github.com/gin-gonic/gin"
)

// MaterialHandler 素材管理与公开落地页
type MaterialHandler struct {
	service *services.MaterialService
}

func NewMaterialHandler(service *services.MaterialService) *MaterialHandler {
	return &MaterialHandler{service: service}
}

// List 当前创作者的素材
func (h *MaterialHandler) List(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	materials, err := h.service.ListByCreator(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list materials", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, materials)
}

// Create 新建素材
func (h *MaterialHandler) Create(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)

	var req services.CreateMaterialInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	material, err := h.service.Create(c.Request.Context(), userID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to create material", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, material)
}

// Delete 删除素材
func (h *MaterialHandler) Delete(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid id", Message: err.Error()})
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, uint(id)); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrMaterialNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Error: "Failed to delete material", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// SetActive 上下架
func (h *MaterialHandler) SetActive(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid id", Message: err.Error()})
		return
	}

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	if err := h.service.SetActive(c.Request.Context(), userID, uint(id), *req.IsActive); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrMaterialNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Error: "Failed to update material", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "updated"})
}

// publicMaterialView 落地页视图：不暴露文件地址和暗号
type publicMaterialView struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	FileType    string `json:"file_type"`
	CreatorName string `json:"creator_name,omitempty"`
}

// GetPublic 公开落地页数据
func (h *MaterialHandler) GetPublic(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid id", Message: err.Error()})
		return
	}

	material, err := h.service.GetPublic(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, services.ErrMaterialNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found", Message: "material not available"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load material", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, toPublicView(material))
}

func toPublicView(m *models.Material) publicMaterialView {
	creatorName := m.Creator.DisplayName
	if creatorName == "" {
		creatorName = m.Creator.Username
	}
	return publicMaterialView{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		FileType:    m.FileType,
		CreatorName: creatorName,
	}
}

// RegisterMaterialRoutes 注册素材管理路由（受保护）
func RegisterMaterialRoutes(r *gin.RouterGroup, handler *MaterialHandler) {
	materials := r.Group("/materials")
	{
		materials.GET("", handler.List)
		materials.POST("", handler.Create)
		materials.PUT(":id/active", handler.SetActive)
		materials.DELETE(":id", handler.Delete)
	}
}

// RegisterPublicMaterialRoutes 注册公开落地页路由
func RegisterPublicMaterialRoutes(r *gin.RouterGroup, handler *MaterialHandler) {
	r.GET("/materials/:id", handler.GetPublic)
}
