package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"maildash/backend/internal/auth"
	"maildash/backend/internal/auth/jwt"
	"maildash/backend/internal/gateway"
	"maildash/backend/internal/service"
	"maildash/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// 认证错误
	auth.ErrInvalidUsername:    "用户名格式无效",
	auth.ErrInvalidPassword:    "密码至少需要 8 个字符",
	auth.ErrUsernameExists:     "用户名已存在",
	auth.ErrInvalidCredentials: "用户名或密码错误",
	auth.ErrRegistrationClosed: "仅管理员可以创建新账号",
	jwt.ErrInvalidToken:        "无效的访问令牌",
	jwt.ErrExpiredToken:        "登录已过期，请重新登录",

	// 邮箱配置错误
	service.ErrForbidden:       "无权操作该资源",
	service.ErrDomainMismatch:  "邮箱不属于托管域名",
	service.ErrEmailTaken:      "该邮箱已存在配置",
	service.ErrNoEmails:        "没有可导入的邮箱",
	storage.ErrConfigNotFound:  "邮箱配置不存在",
	storage.ErrEmailExists:     "该邮箱已存在配置",
	storage.ErrQuotaExhausted:  "读取次数已用尽",
	storage.ErrUserNotFound:    "用户不存在",
	storage.ErrUsernameExists:  "用户名已存在",
	storage.ErrTaskNotFound:    "批量任务不存在",

	// 分享错误
	service.ErrShareExpired:   "分享链接已过期",
	service.ErrShareExhausted: "读取次数已用尽",

	// 批量生成错误
	service.ErrInvalidCount:      "生成数量超出范围（1-100）",
	service.ErrInvalidCharLength: "随机段长度超出范围（4-20）",
	service.ErrInvalidCharType:   "字符集仅支持 number 或 english",
	service.ErrInvalidPrefix:     "前缀只能包含小写字母、数字、点、横线与下划线，且不超过 20 位",
	service.ErrDuplicateEmails:   "生成的邮箱与现有配置冲突，请重试",

	// 系统设置错误
	service.ErrInvalidBaseURL: "上游地址必须是合法的 http(s) URL",

	// 用户管理错误
	service.ErrDeleteSelf: "不能删除当前登录账号",
	service.ErrLastAdmin:  "系统必须保留至少一个管理员",

	// 上游错误
	gateway.ErrUpstream: "上游邮件服务暂时不可用",
}

// 通用错误消息
const (
	MsgInvalidRequest = "请求参数格式错误"
	MsgInternalError  = "服务器内部错误"
)

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	for sentinel, msg := range errorMessages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return MsgInternalError
}

// RespondError 将业务错误映射为统一响应。
//
// 未识别的错误一律按 500 处理，不向客户端泄露内部细节。
func RespondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrConfigNotFound),
		errors.Is(err, storage.ErrUserNotFound),
		errors.Is(err, storage.ErrTaskNotFound):
		NotFound(c, GetErrorMessage(err))

	case errors.Is(err, service.ErrShareExpired),
		errors.Is(err, service.ErrShareExhausted),
		errors.Is(err, storage.ErrQuotaExhausted):
		Gone(c, GetErrorMessage(err))

	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrDeleteSelf),
		errors.Is(err, service.ErrLastAdmin):
		Forbidden(c, GetErrorMessage(err))

	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, storage.ErrEmailExists),
		errors.Is(err, auth.ErrUsernameExists),
		errors.Is(err, storage.ErrUsernameExists):
		Conflict(c, GetErrorMessage(err), nil)

	case errors.Is(err, service.ErrDuplicateEmails):
		var dup *service.DuplicateEmailsError
		if errors.As(err, &dup) {
			Conflict(c, GetErrorMessage(err), gin.H{"duplicates": dup.Duplicates})
			return
		}
		Conflict(c, GetErrorMessage(err), nil)

	case errors.Is(err, gateway.ErrUpstream):
		BadGatewayError(c, GetErrorMessage(err))

	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, jwt.ErrInvalidToken),
		errors.Is(err, jwt.ErrExpiredToken):
		Unauthorized(c, GetErrorMessage(err))

	case errors.Is(err, auth.ErrRegistrationClosed):
		Forbidden(c, GetErrorMessage(err))

	case errors.Is(err, auth.ErrInvalidUsername),
		errors.Is(err, auth.ErrInvalidPassword),
		errors.Is(err, service.ErrDomainMismatch),
		errors.Is(err, service.ErrNoEmails),
		errors.Is(err, service.ErrInvalidCount),
		errors.Is(err, service.ErrInvalidCharLength),
		errors.Is(err, service.ErrInvalidCharType),
		errors.Is(err, service.ErrInvalidPrefix),
		errors.Is(err, service.ErrInvalidBaseURL):
		BadRequest(c, GetErrorMessage(err))

	default:
		InternalError(c, MsgInternalError)
	}
}
