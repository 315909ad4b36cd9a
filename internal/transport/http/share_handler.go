package httptransport

import (
	"errors"
	"html/template"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"maildash/backend/internal/domain"
	"maildash/backend/internal/gateway"
	"maildash/backend/internal/service"
)

// ShareHandler 匿名分享页接口
type ShareHandler struct {
	share *service.ShareService
	batch *service.BatchService
	page  *template.Template
	task  *template.Template
}

// NewShareHandler 创建分享页处理器
func NewShareHandler(share *service.ShareService, batch *service.BatchService) *ShareHandler {
	return &ShareHandler{
		share: share,
		batch: batch,
		page:  template.Must(template.New("share").Parse(sharePageTemplate)),
		task:  template.Must(template.New("task").Parse(taskPageTemplate)),
	}
}

// Consume 读取一次分享链接。
//
// 按配置的分享方式返回 JSON 或 HTML，?type= 可以临时覆盖；
// HTML 页面里的邮件正文先剥掉 script 标签再注入。
func (h *ShareHandler) Consume(c *gin.Context) {
	result, err := h.share.Consume(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if renderMode(c, result.ShareType) == domain.ShareTypeJSON {
		Success(c, result)
		return
	}
	h.renderPage(c, result)
}

// ShareTask 批量任务的匿名分享视图（账号清单，不消耗配额）。
func (h *ShareHandler) ShareTask(c *gin.Context) {
	task, err := h.batch.GetTaskPublic(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if renderMode(c, domain.ShareTypeHTML) == domain.ShareTypeJSON {
		Success(c, gin.H{
			"status":   task.Status,
			"count":    task.Count,
			"accounts": task.GeneratedAccounts,
		})
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	_ = h.task.Execute(c.Writer, task)
}

// renderMode 由 ?type= 查询参数覆盖默认渲染方式。
func renderMode(c *gin.Context, fallback domain.ShareType) domain.ShareType {
	switch c.Query("type") {
	case "json":
		return domain.ShareTypeJSON
	case "html":
		return domain.ShareTypeHTML
	}
	return fallback
}

// respondError 分享页的错误也要按分享方式渲染：浏览器用户
// 看到的是提示页而不是 JSON。
func (h *ShareHandler) respondError(c *gin.Context, err error) {
	if acceptsHTML(c) {
		status, message := shareErrorStatus(err)
		c.Data(status, "text/html; charset=utf-8", []byte(renderErrorPage(message)))
		return
	}
	RespondError(c, err)
}

func acceptsHTML(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	return len(accept) >= 9 && accept[:9] == "text/html"
}

var scriptTagRe = regexp.MustCompile(`(?is)<script.*?</script>|<script.*?/>|<script[^>]*>`)

// stripScripts 移除邮件正文里的 script 标签
func stripScripts(html string) string {
	return scriptTagRe.ReplaceAllString(html, "")
}

type sharePageData struct {
	TargetEmail string
	Remaining   int
	MaxCount    int
	ExpiresAt   string
	HasMessage  bool
	Subject     string
	From        string
	SendTime    string
	Body        template.HTML
	Text        string
}

func (h *ShareHandler) renderPage(c *gin.Context, result *service.ShareResult) {
	data := sharePageData{
		TargetEmail: result.TargetEmail,
		Remaining:   result.Remaining,
		MaxCount:    result.MaxCount,
		ExpiresAt:   result.ExpiresAt.Local().Format("2006-01-02 15:04"),
	}

	if result.Message != nil {
		data.HasMessage = true
		data.Subject = result.Message.Subject
		data.From = result.Message.From
		data.SendTime = result.Message.SendTime

		body := result.Message.HTML
		if body == "" {
			body = result.Message.Content
		}
		if body != "" {
			data.Body = template.HTML(stripScripts(body))
		} else {
			data.Text = result.Message.Text
		}
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	_ = h.page.Execute(c.Writer, data)
}

const taskPageTemplate = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>批量账号清单</title>
<style>
body { font-family: -apple-system, "PingFang SC", "Microsoft YaHei", sans-serif; margin: 0; background: #f5f6f8; }
.container { max-width: 720px; margin: 24px auto; padding: 0 16px; }
.card { background: #fff; border-radius: 8px; padding: 20px; box-shadow: 0 1px 3px rgba(0,0,0,.08); }
table { width: 100%; border-collapse: collapse; font-size: 14px; }
th, td { text-align: left; padding: 8px; border-bottom: 1px solid #eee; word-break: break-all; }
th { color: #888; font-weight: 500; }
.failed { color: #c0392b; }
</style>
</head>
<body>
<div class="container">
  <div class="card">
    <table>
      <tr><th>邮箱</th><th>密码</th><th>状态</th></tr>
      {{range .GeneratedAccounts}}
      <tr><td>{{.Email}}</td><td>{{.Password}}</td><td{{if eq .Status "failed"}} class="failed"{{end}}>{{.Status}}</td></tr>
      {{end}}
    </table>
  </div>
</div>
</body>
</html>`

func shareErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrShareExpired), errors.Is(err, service.ErrShareExhausted):
		return http.StatusGone, GetErrorMessage(err)
	case errors.Is(err, gateway.ErrUpstream):
		return http.StatusBadGateway, GetErrorMessage(err)
	default:
		return http.StatusNotFound, "分享链接不存在或已失效"
	}
}

func renderErrorPage(message string) string {
	return `<!DOCTYPE html><html lang="zh-CN"><head><meta charset="utf-8"><title>链接不可用</title></head>` +
		`<body style="font-family:sans-serif;text-align:center;padding-top:80px"><h2>` +
		template.HTMLEscapeString(message) + `</h2></body></html>`
}

const sharePageTemplate = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.TargetEmail}} 的最新邮件</title>
<style>
body { font-family: -apple-system, "PingFang SC", "Microsoft YaHei", sans-serif; margin: 0; background: #f5f6f8; }
.container { max-width: 720px; margin: 24px auto; padding: 0 16px; }
.card { background: #fff; border-radius: 8px; padding: 20px; box-shadow: 0 1px 3px rgba(0,0,0,.08); }
.meta { color: #888; font-size: 13px; margin-bottom: 12px; }
.subject { font-size: 18px; font-weight: 600; margin-bottom: 8px; }
.body { border-top: 1px solid #eee; padding-top: 16px; word-break: break-word; }
.empty { text-align: center; color: #999; padding: 48px 0; }
.footer { color: #aaa; font-size: 12px; text-align: center; margin: 16px 0; }
</style>
</head>
<body>
<div class="container">
  <div class="card">
    <div class="meta">邮箱：{{.TargetEmail}}　剩余次数：{{.Remaining}}/{{.MaxCount}}　有效期至：{{.ExpiresAt}}</div>
    {{if .HasMessage}}
    <div class="subject">{{.Subject}}</div>
    <div class="meta">发件人：{{.From}}{{if .SendTime}}　时间：{{.SendTime}}{{end}}</div>
    <div class="body">{{if .Body}}{{.Body}}{{else}}<pre>{{.Text}}</pre>{{end}}</div>
    {{else}}
    <div class="empty">邮箱里还没有邮件，稍后刷新重试（不消耗次数）</div>
    {{end}}
  </div>
  <div class="footer">本页面由邮件分享服务提供</div>
</div>
</body>
</html>`
