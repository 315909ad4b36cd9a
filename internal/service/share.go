package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"maildash/backend/internal/domain"
	"maildash/backend/internal/gateway"
	"maildash/backend/internal/monitoring"
	"maildash/backend/internal/storage"
)

var (
	// ErrShareExpired 分享链接已过有效期
	ErrShareExpired = errors.New("share link expired")
	// ErrShareExhausted 读取次数已用尽
	ErrShareExhausted = errors.New("share quota exhausted")
)

// ShareResult 一次分享读取的结果。
type ShareResult struct {
	TargetEmail string           `json:"targetEmail"`
	ShareType   domain.ShareType `json:"-"`
	HasData     bool             `json:"hasData"`
	Message     *gateway.Message `json:"message"`
	Remaining   int              `json:"remaining"`
	MaxCount    int              `json:"maxCount"`
	ExpiresAt   time.Time        `json:"expiresAt"`
	RemainingMs int64            `json:"remainingMs"`
}

// ShareService 实现匿名分享链接的读取闸门。
type ShareService struct {
	repo     storage.ConfigRepository
	settings *SettingsService
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewShareService 创建分享服务
func NewShareService(repo storage.ConfigRepository, settings *SettingsService, metrics *monitoring.Metrics, log *zap.Logger) *ShareService {
	return &ShareService{
		repo:     repo,
		settings: settings,
		metrics:  metrics,
		log:      log,
	}
}

// Consume 执行一次分享读取。
//
// 闸门顺序：存在性、有效期、配额预检、上游拉取，最后才消耗配额。
// 三种情况不消耗配额：上游不可用（上层返回 502）、邮箱为空、
// 预检已失败。只有真的读到邮件才原子地加一，并发打到最后一个
// 配额时由存储层的条件自增保证只有一个请求成功。
func (s *ShareService) Consume(ctx context.Context, configID string) (*ShareResult, error) {
	config, err := s.repo.GetConfig(configID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if config.IsExpired(now) {
		s.metrics.ShareRejected.WithLabelValues("expired").Inc()
		return nil, ErrShareExpired
	}
	if config.IsExhausted() {
		s.metrics.ShareRejected.WithLabelValues("exhausted").Inc()
		return nil, ErrShareExhausted
	}

	client, err := s.settings.Gateway()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	message, err := client.FetchLatest(ctx, config.TargetEmail)
	s.metrics.GatewayRequestDuration.WithLabelValues("emailList").Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.GatewayErrors.WithLabelValues("emailList").Inc()
		return nil, err
	}

	result := &ShareResult{
		TargetEmail: config.TargetEmail,
		ShareType:   config.ShareType,
		MaxCount:    config.MaxCount,
		ExpiresAt:   config.ExpiresAt,
		RemainingMs: config.ExpiresAt.Sub(now).Milliseconds(),
	}

	// 空邮箱：正常返回但不消耗配额
	if message == nil {
		result.Remaining = config.Remaining()
		return result, nil
	}

	updated, err := s.repo.ConsumeQuota(config.ID)
	if err != nil {
		if errors.Is(err, storage.ErrQuotaExhausted) {
			s.metrics.ShareRejected.WithLabelValues("exhausted").Inc()
			return nil, ErrShareExhausted
		}
		return nil, err
	}

	s.metrics.ShareConsumed.Inc()
	s.log.Debug("share quota consumed",
		zap.String("config_id", config.ID),
		zap.Int("received_count", updated.ReceivedCount),
		zap.Int("max_count", updated.MaxCount),
	)

	result.HasData = true
	result.Message = message
	result.Remaining = updated.Remaining()
	return result, nil
}
