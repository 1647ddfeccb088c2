package handlers

import (
	"errors"
	"net/http"
	"time"

	"exclusivelink/internal/config"
	"exclusivelink/internal/middleware"
	"exclusivelink/internal/services"

	"github.com/gin-gonic/gin"
)

// AuthHandler 注册、登录与资料管理
type AuthHandler struct {
	service *services.AuthService
	cfg     *config.Config
}

func NewAuthHandler(service *services.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{service: service, cfg: cfg}
}

// Register 创建账号并直接建立会话
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrEmailTaken) || errors.Is(err, services.ErrUsernameTaken) {
			status = http.StatusConflict
		}
		c.JSON(status, ErrorResponse{Error: "Registration failed", Message: err.Error()})
		return
	}

	if err := h.setSessionCookie(c, user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Session failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login 登录并写入会话 Cookie
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	user, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized", Message: "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Login failed", Message: err.Error()})
		return
	}

	if err := h.setSessionCookie(c, user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Session failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, user)
}

// Logout 清除会话 Cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie(h.cfg.Auth.CookieName, "", -1, "/", "", h.cfg.Auth.SecureCookie, true)
	c.JSON(http.StatusOK, SuccessResponse{Message: "logged out"})
}

// GetProfile 当前用户资料
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized", Message: "no session"})
		return
	}

	user, err := h.service.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile 更新资料
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized", Message: "no session"})
		return
	}

	var req services.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), userID, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Update failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, userID uint) error {
	token, err := middleware.SignSessionToken(userID, h.cfg.Auth.Secret, h.cfg.Auth.ExpiresIn, time.Now())
	if err != nil {
		return err
	}
	c.SetCookie(h.cfg.Auth.CookieName, token, int(h.cfg.Auth.ExpiresIn/time.Second), "/", "", h.cfg.Auth.SecureCookie, true)
	return nil
}

// RegisterAuthRoutes 注册路由。profile 路由需要会话，由调用方挂中间件。
func RegisterAuthRoutes(r *gin.RouterGroup, handler *AuthHandler) {
	auth := r.Group("/auth")
	{
		auth.POST("/register", handler.Register)
		auth.POST("/login", handler.Login)
		auth.POST("/logout", handler.Logout)
	}
}

// RegisterProfileRoutes 注册资料路由（受保护）
func RegisterProfileRoutes(r *gin.RouterGroup, handler *AuthHandler) {
	r.GET("/profile", handler.GetProfile)
	r.PUT("/profile", handler.UpdateProfile)
}
