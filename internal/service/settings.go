package service

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"maildash/backend/internal/cache"
	"maildash/backend/internal/config"
	"maildash/backend/internal/domain"
	"maildash/backend/internal/gateway"
	"maildash/backend/internal/storage"
)

var (
	// ErrInvalidBaseURL 上游地址不是合法的 http(s) URL
	ErrInvalidBaseURL = errors.New("invalid upstream base url")
)

const settingsCacheKey = "system-settings"

// UpstreamSnapshot 某一时刻生效的上游网关参数。
//
// 管理员在系统设置里保存的非空值覆盖部署配置的默认值。
type UpstreamSnapshot struct {
	BaseURL string
	Token   string
}

// SettingsService 管理系统设置与上游网关客户端。
//
// 设置读多写少，走本地 TTL 缓存；保存时同步失效缓存并重建
// 网关客户端，令牌轮换无需重启进程。
type SettingsService struct {
	repo  storage.SettingsRepository
	cfg   *config.Config
	cache *cache.Local
	log   *zap.Logger

	mu        sync.Mutex
	client    *gateway.Client
	clientKey string // baseURL::token，参数变了才重建客户端
}

// NewSettingsService 创建系统设置服务
func NewSettingsService(repo storage.SettingsRepository, cfg *config.Config, log *zap.Logger) *SettingsService {
	return &SettingsService{
		repo:  repo,
		cfg:   cfg,
		cache: cache.NewLocal(30 * time.Second),
		log:   log,
	}
}

// Get 返回系统设置（令牌脱敏由 JSON 标签处理）
func (s *SettingsService) Get() (*domain.SystemSettings, error) {
	if cached, ok := s.cache.Get(settingsCacheKey); ok {
		settings := cached.(domain.SystemSettings)
		return &settings, nil
	}

	settings, err := s.repo.GetSystemSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to load system settings: %w", err)
	}

	s.cache.Set(settingsCacheKey, *settings, 0)
	return settings, nil
}

// UpdateInput 系统设置更新输入
type UpdateInput struct {
	UpstreamBaseURL string
	UpstreamToken   string
}

// Update 保存系统设置。
//
// 先写持久层，成功后立即失效缓存，下一次读取看到新值。
func (s *SettingsService) Update(actor *domain.User, input UpdateInput) (*domain.SystemSettings, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(input.UpstreamBaseURL), "/")
	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return nil, ErrInvalidBaseURL
		}
	}

	settings := &domain.SystemSettings{
		ID:              domain.SystemSettingsID,
		UpstreamBaseURL: baseURL,
		UpstreamToken:   strings.TrimSpace(input.UpstreamToken),
		UpdatedBy:       actor.ID,
		UpdatedAt:       time.Now().UTC(),
	}

	if err := s.repo.SaveSystemSettings(settings); err != nil {
		return nil, fmt.Errorf("failed to save system settings: %w", err)
	}

	s.cache.Delete(settingsCacheKey)
	s.log.Info("system settings updated",
		zap.String("updated_by", actor.Username),
		zap.String("upstream_base_url", baseURL),
	)

	return settings, nil
}

// Snapshot 返回当前生效的上游参数（设置覆盖部署配置）
func (s *SettingsService) Snapshot() (UpstreamSnapshot, error) {
	snapshot := UpstreamSnapshot{
		BaseURL: s.cfg.Upstream.BaseURL,
		Token:   s.cfg.Upstream.Token,
	}

	settings, err := s.Get()
	if err != nil {
		return snapshot, err
	}

	if settings.UpstreamBaseURL != "" {
		snapshot.BaseURL = settings.UpstreamBaseURL
	}
	if settings.UpstreamToken != "" {
		snapshot.Token = settings.UpstreamToken
	}
	return snapshot, nil
}

// Gateway 返回指向当前上游的网关客户端。
//
// 客户端按 baseURL::token 缓存，参数变化时重建，
// 其余调用复用同一个连接池。
func (s *SettingsService) Gateway() (*gateway.Client, error) {
	snapshot, err := s.Snapshot()
	if err != nil {
		return nil, err
	}

	key := snapshot.BaseURL + "::" + snapshot.Token

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil && s.clientKey == key {
		return s.client, nil
	}

	s.client = gateway.New(snapshot.BaseURL, snapshot.Token, s.cfg.Upstream.Timeout, s.log)
	s.clientKey = key
	return s.client, nil
}
