package domain

import "time"

// CharType 批量生成时随机段的字符集。
type CharType string

const (
	// CharTypeNumber 纯数字
	CharTypeNumber CharType = "number"
	// CharTypeEnglish 纯小写字母
	CharTypeEnglish CharType = "english"
)

// TaskStatus 批量任务的整体状态。
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// AccountStatus 单个生成账号的状态。
type AccountStatus string

const (
	AccountStatusPending AccountStatus = "pending"
	AccountStatusSuccess AccountStatus = "success"
	AccountStatusFailed  AccountStatus = "failed"
)

// GeneratedAccount 批量任务中的一个账号条目。
//
// EmailConfigID 弱引用对应的 EmailConfig（仅用于查询，配置的生命周期
// 由配置自身管理，删除配置不会回写任务）。
type GeneratedAccount struct {
	Email         string        `json:"email"`
	Password      string        `json:"password"`
	Status        AccountStatus `json:"status"`
	EmailConfigID string        `json:"emailConfigId,omitempty"`
}

// BatchTask 记录一次批量生成请求及其逐条结果。
//
// 任务创建时即完整落库，此后除级联删除外不再变更。
type BatchTask struct {
	ID                string             `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID            string             `json:"userId" gorm:"type:varchar(36);index"`
	CharType          CharType           `json:"charType" gorm:"type:varchar(16)"`
	CharLength        int                `json:"charLength"`
	Count             int                `json:"count"`
	Prefix            string             `json:"prefix" gorm:"type:varchar(32)"`
	DurationDays      int                `json:"durationDays"`
	MaxCount          int                `json:"maxCount"`
	ShareType         ShareType          `json:"shareType" gorm:"type:varchar(8)"`
	Status            TaskStatus         `json:"status" gorm:"type:varchar(16)"`
	GeneratedAccounts []GeneratedAccount `json:"generatedAccounts" gorm:"serializer:json;type:text"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}
