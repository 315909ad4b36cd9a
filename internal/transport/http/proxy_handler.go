package httptransport

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"maildash/backend/internal/service"
)

// 逐跳头不能透传给上游
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ProxyHandler 上游 API 透传接口（仅管理员，用于排查上游问题）。
type ProxyHandler struct {
	settings *service.SettingsService
	log      *zap.Logger
}

// NewProxyHandler 创建透传处理器
func NewProxyHandler(settings *service.SettingsService, log *zap.Logger) *ProxyHandler {
	return &ProxyHandler{settings: settings, log: log}
}

// Proxy 将请求原样转发到当前配置的上游网关。
//
// 路径取通配段，鉴权头替换为上游令牌，登录态的 Authorization
// 不会泄露给第三方服务。
func (h *ProxyHandler) Proxy(c *gin.Context) {
	snapshot, err := h.settings.Snapshot()
	if err != nil {
		RespondError(c, err)
		return
	}

	target, err := url.Parse(snapshot.BaseURL)
	if err != nil || target.Host == "" {
		BadGatewayError(c, "上游地址未配置")
		return
	}

	upstreamPath := c.Param("path")

	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = target.Scheme
			req.URL.Host = target.Host
			req.URL.Path = singleJoin(target.Path, upstreamPath)
			req.Host = target.Host

			for _, header := range hopByHopHeaders {
				req.Header.Del(header)
			}
			req.Header.Del("Cookie")

			if snapshot.Token != "" {
				req.Header.Set("Authorization", snapshot.Token)
			} else {
				req.Header.Del("Authorization")
			}
		},
		ModifyResponse: func(resp *http.Response) error {
			for _, header := range hopByHopHeaders {
				resp.Header.Del(header)
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			h.log.Warn("upstream proxy failed",
				zap.String("path", upstreamPath),
				zap.Error(err),
			)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"code":502,"msg":"上游邮件服务暂时不可用"}`))
		},
	}

	proxy.ServeHTTP(c.Writer, c.Request)
}

func singleJoin(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}
