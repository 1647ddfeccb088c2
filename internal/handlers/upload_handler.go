package handlers

import (
	"io"
	"net/http"

	"exclusivelink/internal/config"
	"exclusivelink/pkg/storage"

	"github.com/gin-gonic/gin"
)

// UploadHandler 文件上传（素材文件、关注截图）
type UploadHandler struct {
	uploader storage.Uploader
	maxSize  int64
}

func NewUploadHandler(uploader storage.Uploader, cfg *config.Config) *UploadHandler {
	maxSize := cfg.Storage.MaxFileSize
	if maxSize <= 0 {
		maxSize = 50 << 20
	}
	return &UploadHandler{uploader: uploader, maxSize: maxSize}
}

// Upload multipart 表单上传，字段名 file
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: "missing file field"})
		return
	}
	if fileHeader.Size > h.maxSize {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   "File too large",
			Message: "file exceeds the configured size limit",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid file", Message: err.Error()})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxSize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Read failed", Message: err.Error()})
		return
	}
	if int64(len(data)) > h.maxSize {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   "File too large",
			Message: "file exceeds the configured size limit",
		})
		return
	}

	publicURL, err := h.uploader.Upload(c.Request.Context(),
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Upload failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Message: "uploaded",
		Data:    gin.H{"url": publicURL},
	})
}

// RegisterUploadRoutes 注册上传路由（受保护）
func RegisterUploadRoutes(r *gin.RouterGroup, handler *UploadHandler) {
	r.POST("/upload", handler.Upload)
}
