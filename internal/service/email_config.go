package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"maildash/backend/internal/config"
	"maildash/backend/internal/domain"
	"maildash/backend/internal/gateway"
	"maildash/backend/internal/storage"
)

var (
	// ErrForbidden 当前用户无权操作该资源
	ErrForbidden = errors.New("forbidden")
	// ErrDomainMismatch 目标邮箱不属于托管域名
	ErrDomainMismatch = errors.New("email does not belong to managed domain")
	// ErrEmailTaken 目标邮箱已有配置
	ErrEmailTaken = errors.New("target email already configured")
	// ErrNoEmails 导入文本里没有任何可用邮箱
	ErrNoEmails = errors.New("no valid emails to import")
)

// 分页上限，单页最多返回 500 条
const maxPageSize = 500

// EmailConfigService 封装邮箱配置的增删改查与导入。
type EmailConfigService struct {
	repo     storage.ConfigRepository
	settings *SettingsService
	cfg      *config.Config
	log      *zap.Logger
}

// NewEmailConfigService 创建邮箱配置服务
func NewEmailConfigService(repo storage.ConfigRepository, settings *SettingsService, cfg *config.Config, log *zap.Logger) *EmailConfigService {
	return &EmailConfigService{
		repo:     repo,
		settings: settings,
		cfg:      cfg,
		log:      log,
	}
}

// CreateInput 创建单个邮箱配置的输入
type CreateInput struct {
	TargetEmail  string
	Password     string
	DurationDays int
	MaxCount     int
	ShareType    string
}

// Create 创建单个邮箱配置（来源标记为导入）。
func (s *EmailConfigService) Create(actor *domain.User, input CreateInput) (*domain.EmailConfig, error) {
	email := domain.NormalizeEmail(input.TargetEmail)
	if !domain.HasDomainSuffix(email, s.cfg.Mail.Domain) {
		return nil, ErrDomainMismatch
	}

	if _, err := s.repo.GetConfigByTargetEmail(email); err == nil {
		return nil, ErrEmailTaken
	}

	now := time.Now().UTC()
	durationDays := domain.ClampDurationDays(input.DurationDays)
	config := &domain.EmailConfig{
		ID:           uuid.New().String(),
		UserID:       actor.ID,
		TargetEmail:  email,
		Password:     input.Password,
		Source:       domain.SourceImport,
		ShareType:    domain.NormalizeShareType(input.ShareType),
		DurationDays: durationDays,
		MaxCount:     domain.ClampMaxCount(input.MaxCount),
		ExpiresAt:    domain.ComputeExpiresAt(now, durationDays),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.SaveConfig(config); err != nil {
		if errors.Is(err, storage.ErrEmailExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to save config: %w", err)
	}

	s.log.Info("email config created",
		zap.String("config_id", config.ID),
		zap.String("target_email", email),
		zap.String("user_id", actor.ID),
	)
	return config, nil
}

// Get 获取邮箱配置，含归属检查。
func (s *EmailConfigService) Get(actor *domain.User, id string) (*domain.EmailConfig, error) {
	config, err := s.repo.GetConfig(id)
	if err != nil {
		return nil, err
	}
	if !domain.CanManage(actor, config.UserID) {
		return nil, ErrForbidden
	}
	return config, nil
}

// List 分页查询邮箱配置。
//
// 普通用户只能看到自己的配置；管理员传入 allUsers 可以查看全部。
func (s *EmailConfigService) List(actor *domain.User, filter domain.ConfigFilter, allUsers bool) ([]domain.EmailConfig, int, error) {
	if allUsers && actor.IsAdmin {
		filter.UserID = ""
	} else {
		filter.UserID = actor.ID
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 100
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}
	if filter.OrderBy != "createdAt" {
		filter.OrderBy = "updatedAt"
	}
	if filter.Order != "asc" {
		filter.Order = "desc"
	}

	return s.repo.ListConfigs(filter)
}

// ExportList 返回导出范围内的全部配置，不受单页上限约束。
//
// 管理员传入 allUsers 时逐页拉取全库配置，普通用户直接取本人全量。
func (s *EmailConfigService) ExportList(actor *domain.User, allUsers bool) ([]domain.EmailConfig, error) {
	if !allUsers || !actor.IsAdmin {
		return s.repo.ListConfigsByUserID(actor.ID)
	}

	filter := domain.ConfigFilter{PageSize: maxPageSize, OrderBy: "createdAt", Order: "asc"}
	var all []domain.EmailConfig
	for page := 1; ; page++ {
		filter.Page = page
		configs, total, err := s.repo.ListConfigs(filter)
		if err != nil {
			return nil, err
		}
		all = append(all, configs...)
		if len(configs) == 0 || len(all) >= total {
			return all, nil
		}
	}
}

// UpdateConfigInput 更新邮箱配置的输入，nil 字段保持不变。
type UpdateConfigInput struct {
	Password      *string
	DurationDays  *int
	MaxCount      *int
	ShareType     *string
	ResetReceived bool
}

// Update 更新邮箱配置。
//
// 修改有效天数会从当前时间重新起算过期时刻。
func (s *EmailConfigService) Update(actor *domain.User, id string, input UpdateConfigInput) (*domain.EmailConfig, error) {
	config, err := s.Get(actor, id)
	if err != nil {
		return nil, err
	}

	if input.Password != nil {
		config.Password = *input.Password
	}
	if input.DurationDays != nil {
		config.DurationDays = domain.ClampDurationDays(*input.DurationDays)
		config.ExpiresAt = domain.ComputeExpiresAt(time.Now().UTC(), config.DurationDays)
	}
	if input.MaxCount != nil {
		config.MaxCount = domain.ClampMaxCount(*input.MaxCount)
	}
	if input.ShareType != nil {
		config.ShareType = domain.NormalizeShareType(*input.ShareType)
	}
	if input.ResetReceived {
		config.ReceivedCount = 0
	}

	if err := s.repo.UpdateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Delete 删除邮箱配置，含归属检查。
func (s *EmailConfigService) Delete(actor *domain.User, id string) error {
	if _, err := s.Get(actor, id); err != nil {
		return err
	}
	return s.repo.DeleteConfig(id)
}

// BulkDelete 批量删除，返回实际删除数量。
//
// 存储层按归属过滤，普通用户无法借批量接口删除他人配置。
func (s *EmailConfigService) BulkDelete(actor *domain.User, ids []string) (int, error) {
	ownerID := actor.ID
	if actor.IsAdmin {
		ownerID = ""
	}
	return s.repo.DeleteConfigsByIDs(ids, ownerID)
}

// BulkShareType 批量切换分享方式，返回实际修改数量。
func (s *EmailConfigService) BulkShareType(actor *domain.User, ids []string, shareType string) (int, error) {
	ownerID := actor.ID
	if actor.IsAdmin {
		ownerID = ""
	}
	return s.repo.UpdateShareTypeByIDs(ids, ownerID, domain.NormalizeShareType(shareType))
}

// ImportInput 批量导入输入
type ImportInput struct {
	Text         string
	DurationDays int
	MaxCount     int
	ShareType    string
}

// SkippedEmail 导入时被跳过的邮箱及原因
type SkippedEmail struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// ImportResult 批量导入结果
type ImportResult struct {
	Imported []domain.EmailConfig `json:"imported"`
	Skipped  []SkippedEmail       `json:"skipped"`
}

// Import 从自由文本批量导入邮箱配置。
//
// 文本按换行、逗号、分号与空白切分并去重；域名不符与已存在的
// 邮箱进入 skipped 列表，其余逐条创建。
func (s *EmailConfigService) Import(actor *domain.User, input ImportInput) (*ImportResult, error) {
	emails := domain.ParseEmails(input.Text)
	if len(emails) == 0 {
		return nil, ErrNoEmails
	}

	result := &ImportResult{
		Imported: make([]domain.EmailConfig, 0, len(emails)),
		Skipped:  make([]SkippedEmail, 0),
	}

	candidates := make([]string, 0, len(emails))
	for _, email := range emails {
		if !domain.HasDomainSuffix(email, s.cfg.Mail.Domain) {
			result.Skipped = append(result.Skipped, SkippedEmail{Email: email, Reason: "domain mismatch"})
			continue
		}
		candidates = append(candidates, email)
	}

	existing, err := s.repo.FindConfigsByTargetEmails(candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing emails: %w", err)
	}
	existingSet := make(map[string]struct{}, len(existing))
	for _, cfg := range existing {
		existingSet[cfg.TargetEmail] = struct{}{}
	}

	now := time.Now().UTC()
	durationDays := domain.ClampDurationDays(input.DurationDays)
	maxCount := domain.ClampMaxCount(input.MaxCount)
	shareType := domain.NormalizeShareType(input.ShareType)

	for _, email := range candidates {
		if _, ok := existingSet[email]; ok {
			result.Skipped = append(result.Skipped, SkippedEmail{Email: email, Reason: "already exists"})
			continue
		}

		config := &domain.EmailConfig{
			ID:           uuid.New().String(),
			UserID:       actor.ID,
			TargetEmail:  email,
			Source:       domain.SourceImport,
			ShareType:    shareType,
			DurationDays: durationDays,
			MaxCount:     maxCount,
			ExpiresAt:    domain.ComputeExpiresAt(now, durationDays),
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := s.repo.SaveConfig(config); err != nil {
			// 并发导入同一邮箱时可能撞唯一索引，按已存在处理
			if errors.Is(err, storage.ErrEmailExists) {
				result.Skipped = append(result.Skipped, SkippedEmail{Email: email, Reason: "already exists"})
				continue
			}
			return nil, fmt.Errorf("failed to save config: %w", err)
		}
		result.Imported = append(result.Imported, *config)
	}

	s.log.Info("emails imported",
		zap.String("user_id", actor.ID),
		zap.Int("imported", len(result.Imported)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

// FetchLatest 以登录身份拉取配置对应邮箱的最新邮件。
//
// 管理端预览用，不消耗读取配额也不检查过期。
func (s *EmailConfigService) FetchLatest(ctx context.Context, actor *domain.User, id string) (*gateway.Message, error) {
	config, err := s.Get(actor, id)
	if err != nil {
		return nil, err
	}

	client, err := s.settings.Gateway()
	if err != nil {
		return nil, err
	}
	return client.FetchLatest(ctx, config.TargetEmail)
}
