package gormstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"maildash/backend/internal/domain"
	"maildash/backend/internal/storage"
)

// Store 基于 GORM 的数据库存储实现（支持 MySQL、PostgreSQL 与 SQLite）
type Store struct {
	db         *gorm.DB
	driverName string // "mysql"、"postgres" 或 "sqlite"
}

// NewStore 创建数据库存储
func NewStore(
	driverName string,
	dsn string,
	maxOpenConns int,
	maxIdleConns int,
	connMaxLifetime time.Duration,
) (*Store, error) {
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var (
		db  *gorm.DB
		err error
	)
	switch driverName {
	case "mysql":
		db, err = gorm.Open(mysql.Open(dsn), gormConfig)
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(dsn), gormConfig)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres, sqlite)", driverName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 设置连接池参数
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access underlying connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db, driverName: driverName}

	// 自动执行数据库迁移
	if err := store.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 执行数据库迁移（使用 GORM AutoMigrate）
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.User{},
		&domain.EmailConfig{},
		&domain.BatchTask{},
		&domain.SystemSettings{},
	)
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// ========== User Repository ==========

// CreateUser 创建用户
func (s *Store) CreateUser(user *domain.User) error {
	var count int64
	if err := s.db.Model(&domain.User{}).
		Where("username = ?", user.Username).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return storage.ErrUsernameExists
	}
	return s.db.Create(user).Error
}

// GetUserByID 根据 ID 获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	var user domain.User
	err := s.db.First(&user, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, storage.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername 根据用户名获取用户
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	var user domain.User
	err := s.db.First(&user, "username = ?", strings.ToLower(username)).Error
	if err == gorm.ErrRecordNotFound {
		return nil, storage.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser 更新用户信息
func (s *Store) UpdateUser(user *domain.User) error {
	result := s.db.Model(&domain.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"username":      user.Username,
			"password_hash": user.PasswordHash,
			"is_admin":      user.IsAdmin,
			"updated_at":    time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// ListUsers 返回按创建时间倒序排列的全部用户
func (s *Store) ListUsers() ([]domain.User, error) {
	var users []domain.User
	if err := s.db.Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// CountUsers 返回用户总数
func (s *Store) CountUsers() (int, error) {
	var count int64
	if err := s.db.Model(&domain.User{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// CountAdmins 返回管理员数量
func (s *Store) CountAdmins() (int, error) {
	var count int64
	if err := s.db.Model(&domain.User{}).
		Where("is_admin = ?", true).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// DeleteUser 删除用户并级联删除其邮箱配置与批量任务
func (s *Store) DeleteUser(userID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&domain.User{}, "id = ?", userID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrUserNotFound
		}
		if err := tx.Delete(&domain.EmailConfig{}, "user_id = ?", userID).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.BatchTask{}, "user_id = ?", userID).Error
	})
}

// ========== EmailConfig Repository ==========

// SaveConfig 保存新的邮箱配置
func (s *Store) SaveConfig(config *domain.EmailConfig) error {
	var count int64
	if err := s.db.Model(&domain.EmailConfig{}).
		Where("target_email = ?", config.TargetEmail).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return storage.ErrEmailExists
	}
	return s.db.Create(config).Error
}

// GetConfig 根据 ID 获取邮箱配置
func (s *Store) GetConfig(id string) (*domain.EmailConfig, error) {
	var config domain.EmailConfig
	err := s.db.First(&config, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, storage.ErrConfigNotFound
	}
	if err != nil {
		return nil, err
	}
	return &config, nil
}

// GetConfigByTargetEmail 根据目标邮箱获取配置
func (s *Store) GetConfigByTargetEmail(email string) (*domain.EmailConfig, error) {
	var config domain.EmailConfig
	err := s.db.First(&config, "target_email = ?", strings.ToLower(email)).Error
	if err == gorm.ErrRecordNotFound {
		return nil, storage.ErrConfigNotFound
	}
	if err != nil {
		return nil, err
	}
	return &config, nil
}

// FindConfigsByTargetEmails 返回给定邮箱中已有配置的那部分
func (s *Store) FindConfigsByTargetEmails(emails []string) ([]domain.EmailConfig, error) {
	if len(emails) == 0 {
		return []domain.EmailConfig{}, nil
	}
	lowered := make([]string, 0, len(emails))
	for _, e := range emails {
		lowered = append(lowered, strings.ToLower(e))
	}
	var configs []domain.EmailConfig
	if err := s.db.Where("target_email IN ?", lowered).Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// ListConfigs 按过滤条件分页查询邮箱配置
func (s *Store) ListConfigs(filter domain.ConfigFilter) ([]domain.EmailConfig, int, error) {
	query := s.db.Model(&domain.EmailConfig{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Query != "" {
		query = query.Where("target_email LIKE ?", "%"+strings.ToLower(filter.Query)+"%")
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderColumn := "updated_at"
	if filter.OrderBy == "createdAt" {
		orderColumn = "created_at"
	}
	direction := "DESC"
	if filter.Order == "asc" {
		direction = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 100
	}

	var configs []domain.EmailConfig
	err := query.
		Order(orderColumn + " " + direction).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&configs).Error
	if err != nil {
		return nil, 0, err
	}
	return configs, int(total), nil
}

// ListConfigsByUserID 返回用户的全部邮箱配置（按创建时间倒序）
func (s *Store) ListConfigsByUserID(userID string) ([]domain.EmailConfig, error) {
	var configs []domain.EmailConfig
	err := s.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

// UpdateConfig 更新邮箱配置
func (s *Store) UpdateConfig(config *domain.EmailConfig) error {
	result := s.db.Model(&domain.EmailConfig{}).
		Where("id = ?", config.ID).
		Updates(map[string]interface{}{
			"target_email":   config.TargetEmail,
			"password":       config.Password,
			"source":         config.Source,
			"share_type":     config.ShareType,
			"duration_days":  config.DurationDays,
			"max_count":      config.MaxCount,
			"received_count": config.ReceivedCount,
			"expires_at":     config.ExpiresAt,
			"updated_at":     time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrConfigNotFound
	}
	return nil
}

// DeleteConfig 删除邮箱配置
func (s *Store) DeleteConfig(id string) error {
	result := s.db.Delete(&domain.EmailConfig{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrConfigNotFound
	}
	return nil
}

// DeleteConfigsByIDs 批量删除，返回实际删除数量
func (s *Store) DeleteConfigsByIDs(ids []string, ownerID string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := s.db.Where("id IN ?", ids)
	if ownerID != "" {
		query = query.Where("user_id = ?", ownerID)
	}
	result := query.Delete(&domain.EmailConfig{})
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// UpdateShareTypeByIDs 批量修改分享方式，返回实际修改数量
func (s *Store) UpdateShareTypeByIDs(ids []string, ownerID string, shareType domain.ShareType) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := s.db.Model(&domain.EmailConfig{}).Where("id IN ?", ids)
	if ownerID != "" {
		query = query.Where("user_id = ?", ownerID)
	}
	result := query.Updates(map[string]interface{}{
		"share_type": shareType,
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// ConsumeQuota 原子地消耗一次读取配额
//
// 条件自增 UPDATE ... WHERE received_count < max_count 在数据库侧
// 一条语句内完成，并发争抢最后一个配额时只有一个连接能改到行。
// RowsAffected 为 0 再区分"不存在"与"已用尽"。
func (s *Store) ConsumeQuota(id string) (*domain.EmailConfig, error) {
	result := s.db.Model(&domain.EmailConfig{}).
		Where("id = ? AND received_count < max_count", id).
		Updates(map[string]interface{}{
			"received_count": gorm.Expr("received_count + 1"),
			"updated_at":     time.Now().UTC(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		var config domain.EmailConfig
		err := s.db.First(&config, "id = ?", id).Error
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrConfigNotFound
		}
		if err != nil {
			return nil, err
		}
		return nil, storage.ErrQuotaExhausted
	}

	var config domain.EmailConfig
	if err := s.db.First(&config, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &config, nil
}

// ========== BatchTask Repository ==========

// CreateTask 保存批量任务
func (s *Store) CreateTask(task *domain.BatchTask) error {
	return s.db.Create(task).Error
}

// GetTask 根据 ID 获取批量任务
func (s *Store) GetTask(id string) (*domain.BatchTask, error) {
	var task domain.BatchTask
	err := s.db.First(&task, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, storage.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasksByUserID 返回用户的批量任务（按创建时间倒序）
func (s *Store) ListTasksByUserID(userID string) ([]domain.BatchTask, error) {
	var tasks []domain.BatchTask
	err := s.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// ========== SystemSettings Repository ==========

// GetSystemSettings 获取系统设置，未设置时返回空记录
func (s *Store) GetSystemSettings() (*domain.SystemSettings, error) {
	var settings domain.SystemSettings
	err := s.db.First(&settings, "id = ?", domain.SystemSettingsID).Error
	if err == gorm.ErrRecordNotFound {
		return &domain.SystemSettings{ID: domain.SystemSettingsID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// SaveSystemSettings 保存系统设置（UPSERT 单行记录）
func (s *Store) SaveSystemSettings(settings *domain.SystemSettings) error {
	settings.ID = domain.SystemSettingsID
	settings.UpdatedAt = time.Now().UTC()

	result := s.db.Model(&domain.SystemSettings{}).
		Where("id = ?", domain.SystemSettingsID).
		Updates(map[string]interface{}{
			"upstream_base_url": settings.UpstreamBaseURL,
			"upstream_token":    settings.UpstreamToken,
			"updated_by":        settings.UpdatedBy,
			"updated_at":        settings.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return s.db.Create(settings).Error
	}
	return nil
}
