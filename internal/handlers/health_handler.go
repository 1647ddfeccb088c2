package handlers

import (
	"net/http"
	"time"

	"exclusivelink/internal/metrics"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler 存活/就绪探针与轻量指标
type HealthHandler struct {
	db        *gorm.DB
	startedAt time.Time
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db, startedAt: time.Now()}
}

// Health 存活探针，不依赖下游
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
		"service": "exclusivelink",
	})
}

// Ready 就绪探针，检查数据库连通性
func (h *HealthHandler) Ready(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// MetricsLite 进程内计数器快照
func (h *HealthHandler) MetricsLite(c *gin.Context) {
	c.JSON(http.StatusOK, metrics.Snapshot())
}

// RegisterHealthRoutes 注册探针路由（根路径，公开）。
// metricsPath 为空时不暴露指标端点。
func RegisterHealthRoutes(r *gin.Engine, handler *HealthHandler, metricsPath string) {
	r.GET("/health", handler.Health)
	r.GET("/ready", handler.Ready)
	if metricsPath != "" {
		r.GET(metricsPath, handler.MetricsLite)
	}
}
