package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"maildash/backend/internal/config"
	"maildash/backend/internal/domain"
	"maildash/backend/internal/gateway"
	"maildash/backend/internal/monitoring"
	"maildash/backend/internal/storage"
)

var (
	// ErrInvalidCount 批量生成数量超出范围
	ErrInvalidCount = errors.New("count out of range")
	// ErrInvalidCharLength 随机段长度超出范围
	ErrInvalidCharLength = errors.New("char length out of range")
	// ErrInvalidCharType 不支持的字符集
	ErrInvalidCharType = errors.New("unsupported char type")
	// ErrInvalidPrefix 固定前缀含有非法字符或过长
	ErrInvalidPrefix = errors.New("invalid prefix")
	// ErrDuplicateEmails 生成的邮箱与现有配置冲突
	ErrDuplicateEmails = errors.New("generated emails conflict with existing configs")
)

const (
	numberAlphabet = "0123456789"
	letterAlphabet = "abcdefghijklmnopqrstuvwxyz"
	mixedAlphabet  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// DuplicateEmailsError 携带冲突邮箱列表的错误。
type DuplicateEmailsError struct {
	Duplicates []string
}

func (e *DuplicateEmailsError) Error() string {
	return fmt.Sprintf("generated emails conflict with existing configs: %s", strings.Join(e.Duplicates, ", "))
}

// Unwrap 支持 errors.Is(err, ErrDuplicateEmails)
func (e *DuplicateEmailsError) Unwrap() error {
	return ErrDuplicateEmails
}

// BatchService 封装批量账号生成流程。
type BatchService struct {
	tasks    storage.TaskRepository
	configs  storage.ConfigRepository
	settings *SettingsService
	cfg      *config.Config
	metrics  *monitoring.Metrics
	log      *zap.Logger

	mu     sync.Mutex
	random *rand.Rand
}

// NewBatchService 创建批量生成服务
func NewBatchService(
	tasks storage.TaskRepository,
	configs storage.ConfigRepository,
	settings *SettingsService,
	cfg *config.Config,
	metrics *monitoring.Metrics,
	log *zap.Logger,
) *BatchService {
	return &BatchService{
		tasks:    tasks,
		configs:  configs,
		settings: settings,
		cfg:      cfg,
		metrics:  metrics,
		log:      log,
		random:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GenerateInput 批量生成输入
type GenerateInput struct {
	CharType     string
	CharLength   int
	Count        int
	Prefix       string
	DurationDays int
	MaxCount     int
	ShareType    string
}

// Generate 批量生成账号并在上游注册。
//
// 流程：参数校验、本地撞名预检、上游注册、逐条落库。
// 上游是黑盒，单条失败不回滚其他账号；所有生成的配置都会落库，
// 注册失败的账号在任务里标记为 failed 供后续排查。
func (s *BatchService) Generate(ctx context.Context, actor *domain.User, input GenerateInput) (*domain.BatchTask, error) {
	charType, err := normalizeCharType(input.CharType)
	if err != nil {
		return nil, err
	}

	count := input.Count
	if count == 0 {
		count = domain.DefaultBatchCount
	}
	if count < domain.MinBatchCount || count > domain.MaxBatchCount {
		return nil, ErrInvalidCount
	}

	charLength := input.CharLength
	if charLength == 0 {
		charLength = domain.DefaultCharLength
	}
	if charLength < domain.MinCharLength || charLength > domain.MaxCharLength {
		return nil, ErrInvalidCharLength
	}

	prefix, err := normalizePrefix(input.Prefix)
	if err != nil {
		return nil, err
	}

	durationDays := domain.ClampDurationDays(input.DurationDays)
	maxCount := domain.ClampMaxCount(input.MaxCount)
	shareType := domain.NormalizeShareType(input.ShareType)

	// 生成账号，本批内去重
	accounts := s.generateAccounts(charType, charLength, count, prefix)

	// 撞名预检：与现有配置冲突直接整批拒绝
	emails := make([]string, 0, len(accounts))
	for _, account := range accounts {
		emails = append(emails, account.Email)
	}
	existing, err := s.configs.FindConfigsByTargetEmails(emails)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing emails: %w", err)
	}
	if len(existing) > 0 {
		duplicates := make([]string, 0, len(existing))
		for _, cfg := range existing {
			duplicates = append(duplicates, cfg.TargetEmail)
		}
		return nil, &DuplicateEmailsError{Duplicates: duplicates}
	}

	now := time.Now().UTC()
	task := &domain.BatchTask{
		ID:           uuid.New().String(),
		UserID:       actor.ID,
		CharType:     charType,
		CharLength:   charLength,
		Count:        count,
		Prefix:       prefix,
		DurationDays: durationDays,
		MaxCount:     maxCount,
		ShareType:    shareType,
		Status:       domain.TaskStatusProcessing,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// 上游注册
	results := s.register(ctx, accounts)

	succeeded := 0
	generated := make([]domain.GeneratedAccount, 0, len(accounts))
	for i, account := range accounts {
		entry := domain.GeneratedAccount{
			Email:    account.Email,
			Password: account.Password,
			Status:   domain.AccountStatusFailed,
		}
		if results[i].Success {
			entry.Status = domain.AccountStatusSuccess
			succeeded++
		}

		// 无论注册成败都落库，失败的账号可以修复后复用
		config := &domain.EmailConfig{
			ID:           uuid.New().String(),
			UserID:       actor.ID,
			TargetEmail:  account.Email,
			Password:     account.Password,
			Source:       domain.SourceGenerated,
			ShareType:    shareType,
			DurationDays: durationDays,
			MaxCount:     maxCount,
			ExpiresAt:    domain.ComputeExpiresAt(now, durationDays),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		// 配置落库失败说明存储层出了问题，整个请求按内部错误处理
		if err := s.configs.SaveConfig(config); err != nil {
			s.log.Error("failed to persist generated config",
				zap.String("target_email", account.Email),
				zap.Error(err),
			)
			return nil, fmt.Errorf("failed to persist generated config: %w", err)
		}
		entry.EmailConfigID = config.ID

		s.metrics.BatchAccountsTotal.WithLabelValues(string(entry.Status)).Inc()
		generated = append(generated, entry)
	}

	task.GeneratedAccounts = generated
	if succeeded == 0 {
		task.Status = domain.TaskStatusFailed
	} else {
		task.Status = domain.TaskStatusCompleted
	}
	task.UpdatedAt = time.Now().UTC()

	if err := s.tasks.CreateTask(task); err != nil {
		return nil, fmt.Errorf("failed to save batch task: %w", err)
	}

	s.metrics.BatchTasksTotal.Inc()
	s.log.Info("batch task finished",
		zap.String("task_id", task.ID),
		zap.String("user_id", actor.ID),
		zap.Int("count", count),
		zap.Int("succeeded", succeeded),
		zap.String("status", string(task.Status)),
	)
	return task, nil
}

// GetTask 获取批量任务，含归属检查。
func (s *BatchService) GetTask(actor *domain.User, id string) (*domain.BatchTask, error) {
	task, err := s.tasks.GetTask(id)
	if err != nil {
		return nil, err
	}
	if !domain.CanManage(actor, task.UserID) {
		return nil, ErrForbidden
	}
	return task, nil
}

// GetTaskPublic 匿名访问批量任务（任务分享页使用，不做归属检查）。
//
// 任务 ID 是不可猜测的 UUID，知道 ID 即视为持有分享链接。
func (s *BatchService) GetTaskPublic(id string) (*domain.BatchTask, error) {
	return s.tasks.GetTask(id)
}

// ListTasks 返回当前用户的批量任务。
func (s *BatchService) ListTasks(actor *domain.User) ([]domain.BatchTask, error) {
	return s.tasks.ListTasksByUserID(actor.ID)
}

// register 调用上游注册整批账号。
//
// 上游整体失败时不中断流程，所有账号按失败记录。
func (s *BatchService) register(ctx context.Context, accounts []gateway.Account) []gateway.RegisterResult {
	failAll := func(message string) []gateway.RegisterResult {
		results := make([]gateway.RegisterResult, 0, len(accounts))
		for _, account := range accounts {
			results = append(results, gateway.RegisterResult{
				Email:   account.Email,
				Success: false,
				Message: message,
			})
		}
		return results
	}

	client, err := s.settings.Gateway()
	if err != nil {
		s.log.Error("gateway unavailable for batch registration", zap.Error(err))
		return failAll("gateway unavailable")
	}

	start := time.Now()
	results, err := client.RegisterBatch(ctx, accounts)
	s.metrics.GatewayRequestDuration.WithLabelValues("addUser").Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.GatewayErrors.WithLabelValues("addUser").Inc()
		s.log.Error("batch registration failed", zap.Error(err))
		return failAll("upstream registration failed")
	}
	return results
}

// generateAccounts 生成本批内去重的随机账号，prefix 为固定前缀（可为空）。
func (s *BatchService) generateAccounts(charType domain.CharType, charLength, count int, prefix string) []gateway.Account {
	alphabet := numberAlphabet
	if charType == domain.CharTypeEnglish {
		alphabet = letterAlphabet
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, count)
	accounts := make([]gateway.Account, 0, count)
	for len(accounts) < count {
		email := prefix + s.randomString(alphabet, charLength) + "@" + s.cfg.Mail.Domain
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}

		accounts = append(accounts, gateway.Account{
			Email:    email,
			Password: s.randomString(mixedAlphabet, domain.PasswordLength),
		})
	}
	return accounts
}

// randomString 调用方需持有 s.mu
func (s *BatchService) randomString(alphabet string, length int) string {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(alphabet[s.random.Intn(len(alphabet))])
	}
	return b.String()
}

var prefixPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// normalizePrefix 归一化固定前缀：小写、去空白，空串合法。
// 前缀会直接拼进邮箱本地部分，限制为常见合法字符且不超过 20 位。
func normalizePrefix(v string) (string, error) {
	prefix := strings.ToLower(strings.TrimSpace(v))
	if prefix == "" {
		return "", nil
	}
	if len(prefix) > domain.MaxCharLength || !prefixPattern.MatchString(prefix) {
		return "", ErrInvalidPrefix
	}
	return prefix, nil
}

// normalizeCharType 校验字符集，空值回落为纯字母。
func normalizeCharType(v string) (domain.CharType, error) {
	switch domain.CharType(v) {
	case domain.CharTypeNumber:
		return domain.CharTypeNumber, nil
	case domain.CharTypeEnglish, "":
		return domain.CharTypeEnglish, nil
	default:
		return "", ErrInvalidCharType
	}
}
