package httptransport

import (
	"github.com/gin-gonic/gin"

	"maildash/backend/internal/middleware"
	"maildash/backend/internal/service"
)

// SettingsHandler 系统设置接口（仅管理员）
type SettingsHandler struct {
	settings *service.SettingsService
}

// NewSettingsHandler 创建系统设置处理器
func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// Get 获取系统设置。
//
// 令牌不回传明文，只告知是否已配置。
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.settings.Get()
	if err != nil {
		RespondError(c, err)
		return
	}

	Success(c, gin.H{
		"upstreamBaseUrl": settings.UpstreamBaseURL,
		"tokenConfigured": settings.UpstreamToken != "",
		"updatedBy":       settings.UpdatedBy,
		"updatedAt":       settings.UpdatedAt,
	})
}

type updateSettingsRequest struct {
	UpstreamBaseURL string `json:"upstreamBaseUrl"`
	UpstreamToken   string `json:"upstreamToken"`
}

// Update 保存系统设置
func (h *SettingsHandler) Update(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	saved, err := h.settings.Update(middleware.CurrentUser(c), service.UpdateInput{
		UpstreamBaseURL: req.UpstreamBaseURL,
		UpstreamToken:   req.UpstreamToken,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	SuccessWithMsg(c, "系统设置已保存", gin.H{
		"upstreamBaseUrl": saved.UpstreamBaseURL,
		"tokenConfigured": saved.UpstreamToken != "",
		"updatedAt":       saved.UpdatedAt,
	})
}
