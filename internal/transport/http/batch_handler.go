package httptransport

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"maildash/backend/internal/config"
	"maildash/backend/internal/domain"
	"maildash/backend/internal/middleware"
	"maildash/backend/internal/service"
)

// BatchHandler 批量生成相关接口
type BatchHandler struct {
	batch *service.BatchService
	cfg   *config.Config
}

// NewBatchHandler 创建批量生成处理器
func NewBatchHandler(batch *service.BatchService, cfg *config.Config) *BatchHandler {
	return &BatchHandler{batch: batch, cfg: cfg}
}

type generateRequest struct {
	CharType     string `json:"charType"`
	CharLength   int    `json:"charLength"`
	Count        int    `json:"count"`
	Prefix       string `json:"prefix"`
	DurationDays int    `json:"durationDays"`
	MaxCount     int    `json:"maxCount"`
	ShareType    string `json:"shareType"`
}

// Generate 批量生成账号并注册
func (h *BatchHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	task, err := h.batch.Generate(c.Request.Context(), middleware.CurrentUser(c), service.GenerateInput{
		CharType:     req.CharType,
		CharLength:   req.CharLength,
		Count:        req.Count,
		Prefix:       req.Prefix,
		DurationDays: req.DurationDays,
		MaxCount:     req.MaxCount,
		ShareType:    req.ShareType,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, task)
}

// List 返回当前用户的批量任务
func (h *BatchHandler) List(c *gin.Context) {
	tasks, err := h.batch.ListTasks(middleware.CurrentUser(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": tasks, "total": len(tasks)})
}

// Get 获取单个批量任务
func (h *BatchHandler) Get(c *gin.Context) {
	task, err := h.batch.GetTask(middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, task)
}

// Export 导出任务的逐条结果为 CSV
func (h *BatchHandler) Export(c *gin.Context) {
	task, err := h.batch.GetTask(middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}

	rows := service.TaskCSVRows(task, func(account domain.GeneratedAccount) string {
		return buildShareURL(c, h.cfg, account.EmailConfigID)
	})
	writeCSV(c, fmt.Sprintf("batch-task-%s-%s.csv", task.ID[:8], time.Now().Format("20060102")), rows)
}
