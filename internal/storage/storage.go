package storage

import (
	"errors"

	"maildash/backend/internal/domain"
)

var (
	// ErrUserNotFound 用户未找到
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameExists 用户名已存在
	ErrUsernameExists = errors.New("username already exists")
	// ErrConfigNotFound 邮箱配置未找到
	ErrConfigNotFound = errors.New("email config not found")
	// ErrEmailExists 目标邮箱已存在
	ErrEmailExists = errors.New("target email already exists")
	// ErrQuotaExhausted 读取次数已用尽（ConsumeQuota 的条件自增失败）
	ErrQuotaExhausted = errors.New("quota exhausted")
	// ErrTaskNotFound 批量任务未找到
	ErrTaskNotFound = errors.New("batch task not found")
)

// UserRepository 定义用户数据存取操作。
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserByUsername(username string) (*domain.User, error)
	UpdateUser(user *domain.User) error
	ListUsers() ([]domain.User, error)
	CountUsers() (int, error)
	CountAdmins() (int, error)
	// DeleteUser 删除用户并级联删除其邮箱配置与批量任务
	DeleteUser(userID string) error
}

// ConfigRepository 定义邮箱配置数据存取操作。
type ConfigRepository interface {
	SaveConfig(config *domain.EmailConfig) error
	GetConfig(id string) (*domain.EmailConfig, error)
	GetConfigByTargetEmail(email string) (*domain.EmailConfig, error)
	// FindConfigsByTargetEmails 返回给定邮箱中已有配置的那部分（小写匹配）
	FindConfigsByTargetEmails(emails []string) ([]domain.EmailConfig, error)
	ListConfigs(filter domain.ConfigFilter) ([]domain.EmailConfig, int, error)
	ListConfigsByUserID(userID string) ([]domain.EmailConfig, error)
	UpdateConfig(config *domain.EmailConfig) error
	DeleteConfig(id string) error
	// DeleteConfigsByIDs 批量删除；ownerID 非空时仅删除该用户名下的记录
	DeleteConfigsByIDs(ids []string, ownerID string) (int, error)
	// UpdateShareTypeByIDs 批量修改分享方式；ownerID 语义同上
	UpdateShareTypeByIDs(ids []string, ownerID string, shareType domain.ShareType) (int, error)
	// ConsumeQuota 原子地执行 ReceivedCount+1，前提是仍低于 MaxCount。
	// 返回自增后的配置快照；配额已满返回 ErrQuotaExhausted。
	// 这是配额消耗的唯一入口，不存在先读后写的回退路径。
	ConsumeQuota(id string) (*domain.EmailConfig, error)
}

// TaskRepository 定义批量任务数据存取操作。
type TaskRepository interface {
	CreateTask(task *domain.BatchTask) error
	GetTask(id string) (*domain.BatchTask, error)
	ListTasksByUserID(userID string) ([]domain.BatchTask, error)
}

// SettingsRepository 定义系统设置数据存取操作。
type SettingsRepository interface {
	GetSystemSettings() (*domain.SystemSettings, error)
	SaveSystemSettings(settings *domain.SystemSettings) error
}

// Store 定义完整的存储接口。
type Store interface {
	UserRepository
	ConfigRepository
	TaskRepository
	SettingsRepository

	Close() error
	Health() error
}
