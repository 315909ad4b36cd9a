package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"maildash/backend/internal/domain"
	"maildash/backend/internal/storage"
)

// Store 使用内存保存全部数据，主要用于开发与测试。
type Store struct {
	mu         sync.RWMutex
	users      map[string]*domain.User
	byUsername map[string]string // username -> userID

	configs map[string]*domain.EmailConfig
	byEmail map[string]string // targetEmail -> configID

	tasks map[string]*domain.BatchTask

	settings *domain.SystemSettings
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		users:      make(map[string]*domain.User),
		byUsername: make(map[string]string),
		configs:    make(map[string]*domain.EmailConfig),
		byEmail:    make(map[string]string),
		tasks:      make(map[string]*domain.BatchTask),
	}
}

// ========== User Repository ==========

// CreateUser 创建用户。
func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(user.Username)
	if _, ok := s.byUsername[key]; ok {
		return storage.ErrUsernameExists
	}

	clone := *user
	s.users[user.ID] = &clone
	s.byUsername[key] = user.ID
	return nil
}

// GetUserByID 根据 ID 获取用户。
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

// GetUserByUsername 根据用户名获取用户（大小写不敏感）。
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	clone := *s.users[id]
	return &clone, nil
}

// UpdateUser 更新用户信息。
func (s *Store) UpdateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return storage.ErrUserNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

// ListUsers 返回按创建时间倒序排列的全部用户。
func (s *Store) ListUsers() ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// CountUsers 返回用户总数。
func (s *Store) CountUsers() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// CountAdmins 返回管理员数量。
func (s *Store) CountAdmins() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, u := range s.users {
		if u.IsAdmin {
			n++
		}
	}
	return n, nil
}

// DeleteUser 删除用户并级联删除其邮箱配置与批量任务。
func (s *Store) DeleteUser(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}

	delete(s.byUsername, strings.ToLower(user.Username))
	delete(s.users, userID)

	for id, cfg := range s.configs {
		if cfg.UserID == userID {
			delete(s.byEmail, cfg.TargetEmail)
			delete(s.configs, id)
		}
	}
	for id, task := range s.tasks {
		if task.UserID == userID {
			delete(s.tasks, id)
		}
	}
	return nil
}

// ========== EmailConfig Repository ==========

// SaveConfig 保存新的邮箱配置。
func (s *Store) SaveConfig(config *domain.EmailConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[config.TargetEmail]; ok {
		return storage.ErrEmailExists
	}

	clone := *config
	s.configs[config.ID] = &clone
	s.byEmail[config.TargetEmail] = config.ID
	return nil
}

// GetConfig 根据 ID 获取邮箱配置。
func (s *Store) GetConfig(id string) (*domain.EmailConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[id]
	if !ok {
		return nil, storage.ErrConfigNotFound
	}
	clone := *cfg
	return &clone, nil
}

// GetConfigByTargetEmail 根据目标邮箱获取配置。
func (s *Store) GetConfigByTargetEmail(email string) (*domain.EmailConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, storage.ErrConfigNotFound
	}
	clone := *s.configs[id]
	return &clone, nil
}

// FindConfigsByTargetEmails 返回给定邮箱中已有配置的那部分。
func (s *Store) FindConfigsByTargetEmails(emails []string) ([]domain.EmailConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.EmailConfig, 0)
	for _, email := range emails {
		if id, ok := s.byEmail[strings.ToLower(email)]; ok {
			out = append(out, *s.configs[id])
		}
	}
	return out, nil
}

// ListConfigs 按过滤条件分页查询邮箱配置。
func (s *Store) ListConfigs(filter domain.ConfigFilter) ([]domain.EmailConfig, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.EmailConfig, 0)
	for _, cfg := range s.configs {
		if filter.UserID != "" && cfg.UserID != filter.UserID {
			continue
		}
		if filter.Query != "" && !strings.Contains(cfg.TargetEmail, strings.ToLower(filter.Query)) {
			continue
		}
		if filter.CreatedFrom != nil && cfg.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && cfg.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		matched = append(matched, *cfg)
	}

	asc := filter.Order == "asc"
	byCreated := filter.OrderBy == "createdAt"
	sort.Slice(matched, func(i, j int) bool {
		var ti, tj time.Time
		if byCreated {
			ti, tj = matched[i].CreatedAt, matched[j].CreatedAt
		} else {
			ti, tj = matched[i].UpdatedAt, matched[j].UpdatedAt
		}
		if asc {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(matched)
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 100
	}
	start := (page - 1) * pageSize
	if start >= total {
		return []domain.EmailConfig{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// ListConfigsByUserID 返回用户的全部邮箱配置（按创建时间倒序）。
func (s *Store) ListConfigsByUserID(userID string) ([]domain.EmailConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.EmailConfig, 0)
	for _, cfg := range s.configs {
		if cfg.UserID == userID {
			out = append(out, *cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateConfig 更新邮箱配置。
func (s *Store) UpdateConfig(config *domain.EmailConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.configs[config.ID]
	if !ok {
		return storage.ErrConfigNotFound
	}
	if old.TargetEmail != config.TargetEmail {
		delete(s.byEmail, old.TargetEmail)
		s.byEmail[config.TargetEmail] = config.ID
	}
	config.UpdatedAt = time.Now().UTC()
	clone := *config
	s.configs[config.ID] = &clone
	return nil
}

// DeleteConfig 删除邮箱配置。
func (s *Store) DeleteConfig(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[id]
	if !ok {
		return storage.ErrConfigNotFound
	}
	delete(s.byEmail, cfg.TargetEmail)
	delete(s.configs, id)
	return nil
}

// DeleteConfigsByIDs 批量删除，返回实际删除数量。
func (s *Store) DeleteConfigsByIDs(ids []string, ownerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, id := range ids {
		cfg, ok := s.configs[id]
		if !ok {
			continue
		}
		if ownerID != "" && cfg.UserID != ownerID {
			continue
		}
		delete(s.byEmail, cfg.TargetEmail)
		delete(s.configs, id)
		n++
	}
	return n, nil
}

// UpdateShareTypeByIDs 批量修改分享方式，返回实际修改数量。
func (s *Store) UpdateShareTypeByIDs(ids []string, ownerID string, shareType domain.ShareType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	now := time.Now().UTC()
	for _, id := range ids {
		cfg, ok := s.configs[id]
		if !ok {
			continue
		}
		if ownerID != "" && cfg.UserID != ownerID {
			continue
		}
		cfg.ShareType = shareType
		cfg.UpdatedAt = now
		n++
	}
	return n, nil
}

// ConsumeQuota 原子地消耗一次读取配额。
//
// 整个判断-自增在写锁内完成，两个并发请求争抢最后一个配额时
// 必然只有一个成功，落败方拿到 ErrQuotaExhausted。
func (s *Store) ConsumeQuota(id string) (*domain.EmailConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[id]
	if !ok {
		return nil, storage.ErrConfigNotFound
	}
	if cfg.ReceivedCount >= cfg.MaxCount {
		return nil, storage.ErrQuotaExhausted
	}
	cfg.ReceivedCount++
	cfg.UpdatedAt = time.Now().UTC()
	clone := *cfg
	return &clone, nil
}

// ========== BatchTask Repository ==========

// CreateTask 保存批量任务。
func (s *Store) CreateTask(task *domain.BatchTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *task
	clone.GeneratedAccounts = append([]domain.GeneratedAccount(nil), task.GeneratedAccounts...)
	s.tasks[task.ID] = &clone
	return nil
}

// GetTask 根据 ID 获取批量任务。
func (s *Store) GetTask(id string) (*domain.BatchTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, storage.ErrTaskNotFound
	}
	clone := *task
	clone.GeneratedAccounts = append([]domain.GeneratedAccount(nil), task.GeneratedAccounts...)
	return &clone, nil
}

// ListTasksByUserID 返回用户的批量任务（按创建时间倒序）。
func (s *Store) ListTasksByUserID(userID string) ([]domain.BatchTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.BatchTask, 0)
	for _, task := range s.tasks {
		if task.UserID == userID {
			clone := *task
			clone.GeneratedAccounts = append([]domain.GeneratedAccount(nil), task.GeneratedAccounts...)
			out = append(out, clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ========== SystemSettings Repository ==========

// GetSystemSettings 获取系统设置，未设置时返回空记录。
func (s *Store) GetSystemSettings() (*domain.SystemSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil {
		return &domain.SystemSettings{ID: domain.SystemSettingsID}, nil
	}
	clone := *s.settings
	return &clone, nil
}

// SaveSystemSettings 保存系统设置。
func (s *Store) SaveSystemSettings(settings *domain.SystemSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *settings
	clone.ID = domain.SystemSettingsID
	s.settings = &clone
	return nil
}

// Close 关闭存储（内存存储为空操作）。
func (s *Store) Close() error { return nil }

// Health 存储健康检查（内存存储恒为健康）。
func (s *Store) Health() error { return nil }
