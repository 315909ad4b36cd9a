package httptransport

import (
	"github.com/gin-gonic/gin"

	"maildash/backend/internal/middleware"
	"maildash/backend/internal/service"
)

// UserHandler 用户管理接口（仅管理员）
type UserHandler struct {
	users *service.UserService
}

// NewUserHandler 创建用户管理处理器
func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// List 返回全部用户
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List()
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": users, "total": len(users)})
}

// Delete 删除用户及其全部数据
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.users.Delete(middleware.CurrentUser(c), c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	SuccessWithMsg(c, "用户已删除", nil)
}

// ResetPassword 管理员重置指定用户的登录密码
func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req struct {
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.users.ResetPassword(middleware.CurrentUser(c), c.Param("id"), req.NewPassword); err != nil {
		RespondError(c, err)
		return
	}
	SuccessWithMsg(c, "密码已重置", nil)
}

type setAdminRequest struct {
	IsAdmin *bool `json:"isAdmin" binding:"required"`
}

// SetAdmin 调整用户的管理员身份
func (h *UserHandler) SetAdmin(c *gin.Context) {
	var req setAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	updated, err := h.users.SetAdmin(middleware.CurrentUser(c), c.Param("id"), *req.IsAdmin)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, updated)
}
