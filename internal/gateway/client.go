package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrUpstream 上游网关不可用或返回了无法解释的响应。
// 调用方据此返回 502 且不消耗读取配额。
var ErrUpstream = errors.New("upstream gateway error")

// Message 上游返回的一封邮件。
//
// 字段原样透传给分享页，后端不解析邮件内容本身。
type Message struct {
	ID       string `json:"id,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Content  string `json:"content,omitempty"`
	HTML     string `json:"html,omitempty"`
	Text     string `json:"text,omitempty"`
	SendTime string `json:"sendTime,omitempty"`
}

// Account 提交给上游注册的一个账号。
type Account struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResult 单个账号的注册结果。
type RegisterResult struct {
	Email   string
	Success bool
	Message string
}

// Client 上游邮件网关客户端。
//
// 网关是第三方黑盒服务：不同部署版本的响应包络不一致，
// 这里对几种已知形态做宽松解析，解析不出就按 ErrUpstream 处理。
type Client struct {
	http    *resty.Client
	baseURL string
	log     *zap.Logger
}

// New 创建网关客户端
func New(baseURL, token string, timeout time.Duration, log *zap.Logger) *Client {
	// 不做自动重试：addUser 不幂等，超时后重发会在上游重复注册
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	if token != "" {
		http.SetHeader("Authorization", token)
	}

	return &Client{
		http:    http,
		baseURL: baseURL,
		log:     log,
	}
}

// BaseURL 返回客户端当前指向的网关地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchLatest 拉取目标邮箱的最新邮件。
//
// 返回 nil 表示上游正常响应但邮箱里没有邮件，调用方不应消耗配额。
func (c *Client) FetchLatest(ctx context.Context, targetEmail string) (*Message, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"toEmail": targetEmail}).
		Post("/emailList")
	if err != nil {
		c.log.Warn("gateway emailList request failed",
			zap.String("target_email", targetEmail),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.IsError() {
		c.log.Warn("gateway emailList returned error status",
			zap.String("target_email", targetEmail),
			zap.Int("status", resp.StatusCode()),
		)
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode())
	}

	messages, err := parseMessageList(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(messages) == 0 {
		return nil, nil
	}
	return &messages[0], nil
}

// RegisterBatch 向上游批量注册账号。
//
// 整批调用失败时返回 ErrUpstream；调用成功时逐条返回结果，
// 单条失败不影响同批其他账号。
func (c *Client) RegisterBatch(ctx context.Context, accounts []Account) ([]RegisterResult, error) {
	if len(accounts) == 0 {
		return nil, nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"list": accounts}).
		Post("/addUser")
	if err != nil {
		c.log.Warn("gateway addUser request failed",
			zap.Int("count", len(accounts)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.IsError() {
		c.log.Warn("gateway addUser returned error status",
			zap.Int("count", len(accounts)),
			zap.Int("status", resp.StatusCode()),
		)
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode())
	}

	return parseRegisterResults(resp.Body(), accounts)
}

// parseMessageList 解析邮件列表响应。
//
// 兼容两种形态：裸数组，或 {"data": [...]} / {"list": [...]} 包络。
func parseMessageList(body []byte) ([]Message, error) {
	var direct []Message
	if err := json.Unmarshal(body, &direct); err == nil {
		return direct, nil
	}

	var wrapped struct {
		Data []Message `json:"data"`
		List []Message `json:"list"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("unexpected emailList response: %v", err)
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}
	return wrapped.List, nil
}

// registerEnvelope addUser 的响应包络。
// code 在不同网关版本里可能是数字或字符串，用 RawMessage 延迟解析。
type registerEnvelope struct {
	Success *bool           `json:"success"`
	Code    json.RawMessage `json:"code"`
	Msg     string          `json:"msg"`
	Message string          `json:"message"`
}

// parseRegisterResults 解析注册响应并展开为逐账号结果。
//
// 上游只返回整批结论：success 为 true 或 code 属于 {0, 200, "0", "200"}
// 即视为整批成功，否则整批失败但调用本身算成功（错误进入逐条结果）。
func parseRegisterResults(body []byte, accounts []Account) ([]RegisterResult, error) {
	var envelope registerEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: unexpected addUser response: %v", ErrUpstream, err)
	}

	ok := false
	if envelope.Success != nil && *envelope.Success {
		ok = true
	}
	if !ok && len(envelope.Code) > 0 {
		switch string(envelope.Code) {
		case "0", "200", `"0"`, `"200"`:
			ok = true
		}
	}

	message := envelope.Msg
	if message == "" {
		message = envelope.Message
	}
	if message == "" && !ok {
		message = "upstream registration rejected"
	}

	results := make([]RegisterResult, 0, len(accounts))
	for _, account := range accounts {
		results = append(results, RegisterResult{
			Email:   account.Email,
			Success: ok,
			Message: message,
		})
	}
	return results, nil
}
