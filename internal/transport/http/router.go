package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"maildash/backend/internal/auth"
	"maildash/backend/internal/config"
	"maildash/backend/internal/health"
	"maildash/backend/internal/middleware"
	"maildash/backend/internal/monitoring"
	"maildash/backend/internal/ratelimit"
	"maildash/backend/internal/service"
	"maildash/backend/internal/storage"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config          *config.Config
	AuthService     *auth.Service
	ConfigService   *service.EmailConfigService
	ShareService    *service.ShareService
	BatchService    *service.BatchService
	SettingsService *service.SettingsService
	UserService     *service.UserService
	Store           storage.Store
	Metrics         *monitoring.Metrics
	Health          *health.Checker
	ShareLimiter    ratelimit.Limiter // 可为 nil（限流关闭）
	Logger          *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	monitor := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
	router.Use(monitor.PanicRecovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(monitor.HTTPMetrics())

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	// 允许所有来源时必须关闭凭证支持
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	jwtAuth := middleware.NewJWTAuth(deps.AuthService.Tokens(), deps.Store, deps.Logger)

	authHandler := NewAuthHandler(deps.AuthService, deps.UserService)
	configHandler := NewConfigHandler(deps.ConfigService, deps.Config)
	batchHandler := NewBatchHandler(deps.BatchService, deps.Config)
	shareHandler := NewShareHandler(deps.ShareService, deps.BatchService)
	settingsHandler := NewSettingsHandler(deps.SettingsService)
	userHandler := NewUserHandler(deps.UserService)
	proxyHandler := NewProxyHandler(deps.SettingsService, deps.Logger)

	// 运维端点
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	router.GET("/live", gin.WrapH(deps.Health.Handler()))
	router.GET("/ready", gin.WrapH(deps.Health.Handler()))
	router.GET("/health", func(c *gin.Context) {
		if err := deps.Store.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 匿名分享页（按 IP 限流）
	shareRoutes := router.Group("/share", middleware.ShareRateLimit(deps.ShareLimiter, deps.Metrics))
	{
		shareRoutes.GET("/email/:id", shareHandler.Consume)
		shareRoutes.GET("/batch/:id", shareHandler.ShareTask)
	}

	v1 := router.Group("/v1")
	{
		authRoutes := v1.Group("/auth")
		{
			authRoutes.GET("/status", authHandler.Status)
			authRoutes.POST("/register", jwtAuth.OptionalAuth(), authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh", authHandler.Refresh)
			authRoutes.GET("/me", jwtAuth.RequireAuth(), authHandler.Me)
			authRoutes.POST("/password", jwtAuth.RequireAuth(), authHandler.ChangePassword)
		}

		configRoutes := v1.Group("/configs", jwtAuth.RequireAuth())
		{
			configRoutes.POST("", configHandler.Create)
			configRoutes.GET("", configHandler.List)
			configRoutes.POST("/import", configHandler.Import)
			configRoutes.POST("/bulk-delete", configHandler.BulkDelete)
			configRoutes.POST("/bulk-share-type", configHandler.BulkShareType)
			configRoutes.GET("/:id", configHandler.Get)
			configRoutes.PUT("/:id", configHandler.Update)
			configRoutes.DELETE("/:id", configHandler.Delete)
			configRoutes.GET("/:id/latest", configHandler.FetchLatest)
		}

		// CSV 导出走独立前缀，避免与 /configs/:id 的路由冲突
		v1.GET("/export/configs", jwtAuth.RequireAuth(), configHandler.Export)

		batchRoutes := v1.Group("/batch-tasks", jwtAuth.RequireAuth())
		{
			batchRoutes.POST("", batchHandler.Generate)
			batchRoutes.GET("", batchHandler.List)
			batchRoutes.GET("/:id", batchHandler.Get)
			batchRoutes.GET("/:id/export", batchHandler.Export)
		}

		adminRoutes := v1.Group("/admin", jwtAuth.RequireAuth(), middleware.RequireAdmin())
		{
			adminRoutes.GET("/users", userHandler.List)
			adminRoutes.DELETE("/users/:id", userHandler.Delete)
			adminRoutes.PUT("/users/:id/role", userHandler.SetAdmin)
			adminRoutes.PUT("/users/:id/password", userHandler.ResetPassword)

			adminRoutes.GET("/settings", settingsHandler.Get)
			adminRoutes.PUT("/settings", settingsHandler.Update)

			adminRoutes.Any("/proxy/*path", proxyHandler.Proxy)
		}
	}

	return router
}
