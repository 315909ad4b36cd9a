package httptransport

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"maildash/backend/internal/config"
	"maildash/backend/internal/domain"
	"maildash/backend/internal/middleware"
	"maildash/backend/internal/service"
)

// ConfigHandler 邮箱配置相关接口
type ConfigHandler struct {
	configs *service.EmailConfigService
	cfg     *config.Config
}

// NewConfigHandler 创建邮箱配置处理器
func NewConfigHandler(configs *service.EmailConfigService, cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		configs: configs,
		cfg:     cfg,
	}
}

// configView 对外返回的配置视图，附带分享链接
type configView struct {
	domain.EmailConfig
	ShareURL  string `json:"shareUrl"`
	Remaining int    `json:"remaining"`
}

func (h *ConfigHandler) view(c *gin.Context, cfg domain.EmailConfig) configView {
	return configView{
		EmailConfig: cfg,
		ShareURL:    h.shareURL(c, cfg.ID),
		Remaining:   cfg.Remaining(),
	}
}

func (h *ConfigHandler) shareURL(c *gin.Context, configID string) string {
	return buildShareURL(c, h.cfg, configID)
}

// buildShareURL 生成分享链接。
//
// 优先使用部署配置的对外地址，否则从请求头推导（反向代理场景
// 看 X-Forwarded-Proto / X-Forwarded-Host）。
func buildShareURL(c *gin.Context, cfg *config.Config, configID string) string {
	base := cfg.Mail.ShareBaseURL
	if base == "" {
		scheme := c.GetHeader("X-Forwarded-Proto")
		if scheme == "" {
			scheme = "http"
			if c.Request.TLS != nil {
				scheme = "https"
			}
		}
		host := c.GetHeader("X-Forwarded-Host")
		if host == "" {
			host = c.Request.Host
		}
		base = scheme + "://" + host
	}
	return base + "/share/email/" + configID
}

type createConfigRequest struct {
	TargetEmail  string `json:"targetEmail" binding:"required"`
	Password     string `json:"password"`
	DurationDays int    `json:"durationDays"`
	MaxCount     int    `json:"maxCount"`
	ShareType    string `json:"shareType"`
}

// Create 创建单个邮箱配置
func (h *ConfigHandler) Create(c *gin.Context) {
	var req createConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	created, err := h.configs.Create(middleware.CurrentUser(c), service.CreateInput{
		TargetEmail:  req.TargetEmail,
		Password:     req.Password,
		DurationDays: req.DurationDays,
		MaxCount:     req.MaxCount,
		ShareType:    req.ShareType,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, h.view(c, *created))
}

// List 分页查询邮箱配置
func (h *ConfigHandler) List(c *gin.Context) {
	filter := domain.ConfigFilter{
		Query:    c.Query("q"),
		OrderBy:  c.Query("orderBy"),
		Order:    c.Query("order"),
		Page:     atoiDefault(c.Query("page"), 1),
		PageSize: atoiDefault(c.Query("pageSize"), 100),
	}

	if from := c.Query("createdFrom"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.CreatedFrom = &t
		}
	}
	if to := c.Query("createdTo"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.CreatedTo = &t
		}
	}

	allUsers := c.Query("scope") == "all"
	configs, total, err := h.configs.List(middleware.CurrentUser(c), filter, allUsers)
	if err != nil {
		RespondError(c, err)
		return
	}

	views := make([]configView, 0, len(configs))
	for _, cfg := range configs {
		views = append(views, h.view(c, cfg))
	}

	Success(c, gin.H{
		"items":    views,
		"total":    total,
		"page":     filter.Page,
		"pageSize": filter.PageSize,
	})
}

// Get 获取单个邮箱配置
func (h *ConfigHandler) Get(c *gin.Context) {
	cfg, err := h.configs.Get(middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, h.view(c, *cfg))
}

type updateConfigRequest struct {
	Password      *string `json:"password"`
	DurationDays  *int    `json:"durationDays"`
	MaxCount      *int    `json:"maxCount"`
	ShareType     *string `json:"shareType"`
	ResetReceived bool    `json:"resetReceived"`
}

// Update 更新邮箱配置
func (h *ConfigHandler) Update(c *gin.Context) {
	var req updateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	updated, err := h.configs.Update(middleware.CurrentUser(c), c.Param("id"), service.UpdateConfigInput{
		Password:      req.Password,
		DurationDays:  req.DurationDays,
		MaxCount:      req.MaxCount,
		ShareType:     req.ShareType,
		ResetReceived: req.ResetReceived,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, h.view(c, *updated))
}

// Delete 删除邮箱配置
func (h *ConfigHandler) Delete(c *gin.Context) {
	if err := h.configs.Delete(middleware.CurrentUser(c), c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	SuccessWithMsg(c, "删除成功", nil)
}

type bulkIDsRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// BulkDelete 批量删除邮箱配置
func (h *ConfigHandler) BulkDelete(c *gin.Context) {
	var req bulkIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	deleted, err := h.configs.BulkDelete(middleware.CurrentUser(c), req.IDs)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"deleted": deleted})
}

type bulkShareTypeRequest struct {
	IDs       []string `json:"ids" binding:"required"`
	ShareType string   `json:"shareType" binding:"required"`
}

// BulkShareType 批量切换分享方式
func (h *ConfigHandler) BulkShareType(c *gin.Context) {
	var req bulkShareTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	updated, err := h.configs.BulkShareType(middleware.CurrentUser(c), req.IDs, req.ShareType)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"updated": updated})
}

type importRequest struct {
	Text         string `json:"text" binding:"required"`
	DurationDays int    `json:"durationDays"`
	MaxCount     int    `json:"maxCount"`
	ShareType    string `json:"shareType"`
}

// Import 从文本批量导入邮箱
func (h *ConfigHandler) Import(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	result, err := h.configs.Import(middleware.CurrentUser(c), service.ImportInput{
		Text:         req.Text,
		DurationDays: req.DurationDays,
		MaxCount:     req.MaxCount,
		ShareType:    req.ShareType,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, result)
}

// FetchLatest 以登录身份预览最新邮件（不消耗配额）
func (h *ConfigHandler) FetchLatest(c *gin.Context) {
	message, err := h.configs.FetchLatest(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"message": message})
}

// Export 导出范围内的全部配置为 CSV，不做分页截断
func (h *ConfigHandler) Export(c *gin.Context) {
	actor := middleware.CurrentUser(c)
	configs, err := h.configs.ExportList(actor, c.Query("scope") == "all")
	if err != nil {
		RespondError(c, err)
		return
	}

	rows := service.ConfigCSVRows(configs, func(cfg domain.EmailConfig) string {
		return h.shareURL(c, cfg.ID)
	})
	writeCSV(c, fmt.Sprintf("email-configs-%s.csv", time.Now().Format("20060102")), rows)
}

// writeCSV 输出带 UTF-8 BOM 的 CSV 附件（Excel 打开中文不乱码）
func writeCSV(c *gin.Context, filename string, rows [][]string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)

	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})
	writer := csv.NewWriter(c.Writer)
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return
		}
	}
	writer.Flush()
}

func atoiDefault(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
