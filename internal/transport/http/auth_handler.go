package httptransport

import (
	"github.com/gin-gonic/gin"

	"maildash/backend/internal/auth"
	"maildash/backend/internal/middleware"
	"maildash/backend/internal/service"
)

// AuthHandler 认证相关接口
type AuthHandler struct {
	authService *auth.Service
	userService *service.UserService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(authService *auth.Service, userService *service.UserService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
	}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Status 返回注册入口状态（前端据此决定展示注册还是登录）。
func (h *AuthHandler) Status(c *gin.Context) {
	open, err := h.authService.RegistrationOpen()
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"allowPublicRegistration": open})
}

// Register 注册新用户。
//
// 首个用户开放注册并自动成为管理员；此后该接口要求管理员登录态
//（中间件放行匿名请求，权限在服务层判定）。
func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	resp, err := h.authService.Register(middleware.CurrentUser(c), req.Username, req.Password)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, resp)
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	resp, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, resp)
}

// Refresh 刷新令牌
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	resp, err := h.authService.Refresh(req.RefreshToken)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, resp)
}

// Me 返回当前登录用户
func (h *AuthHandler) Me(c *gin.Context) {
	Success(c, middleware.CurrentUser(c))
}

// ChangePassword 修改当前用户密码
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req struct {
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.userService.ChangePassword(middleware.CurrentUser(c), req.NewPassword); err != nil {
		RespondError(c, err)
		return
	}
	SuccessWithMsg(c, "密码已更新", nil)
}
