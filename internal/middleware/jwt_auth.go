package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"maildash/backend/internal/auth/jwt"
	"maildash/backend/internal/domain"
	"maildash/backend/internal/storage"
)

const (
	// ContextUserKey 存放当前登录用户的上下文键
	ContextUserKey = "currentUser"
)

// JWTAuth JWT 认证中间件
type JWTAuth struct {
	jwtManager *jwt.Manager
	users      storage.UserRepository
	log        *zap.Logger
}

// NewJWTAuth 创建 JWT 认证中间件
func NewJWTAuth(jwtManager *jwt.Manager, users storage.UserRepository, log *zap.Logger) *JWTAuth {
	return &JWTAuth{
		jwtManager: jwtManager,
		users:      users,
		log:        log,
	}
}

// RequireAuth 要求 JWT 认证。
//
// 校验令牌后重新加载用户并放入上下文，令牌签发后被删除的
// 用户立即失效。
func (ja *JWTAuth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ja.extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code": http.StatusUnauthorized,
				"msg":  "请先登录",
			})
			c.Abort()
			return
		}

		claims, err := ja.jwtManager.ValidateToken(token)
		if err != nil {
			ja.log.Warn("invalid token",
				zap.String("error", err.Error()),
				zap.String("ip", c.ClientIP()),
			)
			c.JSON(http.StatusUnauthorized, gin.H{
				"code": http.StatusUnauthorized,
				"msg":  "登录已过期，请重新登录",
			})
			c.Abort()
			return
		}

		user, err := ja.users.GetUserByID(claims.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code": http.StatusUnauthorized,
				"msg":  "用户不存在",
			})
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		c.Set("userID", user.ID)
		c.Next()
	}
}

// OptionalAuth 可选认证：令牌有效则填充上下文，缺失或无效直接放行。
//
// 注册接口使用：是否允许匿名由业务层按系统里有没有用户判定。
func (ja *JWTAuth) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ja.extractToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := ja.jwtManager.ValidateToken(token)
		if err != nil {
			c.Next()
			return
		}

		if user, err := ja.users.GetUserByID(claims.UserID); err == nil {
			c.Set(ContextUserKey, user)
			c.Set("userID", user.ID)
		}
		c.Next()
	}
}

// extractToken 从请求中提取 JWT token
func (ja *JWTAuth) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	// 兼容查询参数（导出下载链接无法带请求头）
	return c.Query("token")
}

// CurrentUser 从上下文取出当前登录用户。
func CurrentUser(c *gin.Context) *domain.User {
	val, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	user, ok := val.(*domain.User)
	if !ok {
		return nil
	}
	return user
}
