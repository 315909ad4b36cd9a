package domain

import "time"

// ConfigSource 邮箱配置的来源。
type ConfigSource string

const (
	// SourceImport 手工导入的已有账号（无密码）
	SourceImport ConfigSource = "import"
	// SourceGenerated 批量生成并在上游注册的账号
	SourceGenerated ConfigSource = "generated"
)

// ShareType 分享链接的渲染方式。
type ShareType string

const (
	// ShareTypeJSON 机器可读的 JSON 响应
	ShareTypeJSON ShareType = "json"
	// ShareTypeHTML 人类可读的 HTML 页面
	ShareTypeHTML ShareType = "html"
)

// EmailConfig 表示一条受管的目标邮箱配置。
//
// TargetEmail 全局唯一（创建与导入时预检 + 存储层唯一索引兜底）。
// ReceivedCount 只在成功读到邮件时加一，除显式重置外永不回退。
type EmailConfig struct {
	ID            string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID        string       `json:"userId" gorm:"type:varchar(36);index"`
	TargetEmail   string       `json:"targetEmail" gorm:"type:varchar(255);uniqueIndex"`
	Password      string       `json:"password,omitempty" gorm:"type:varchar(64)"`
	Source        ConfigSource `json:"source" gorm:"type:varchar(16)"`
	ShareType     ShareType    `json:"shareType" gorm:"type:varchar(8)"`
	DurationDays  int          `json:"durationDays"`
	MaxCount      int          `json:"maxCount"`
	ReceivedCount int          `json:"receivedCount"`
	ExpiresAt     time.Time    `json:"expiresAt"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// Remaining 剩余可读取次数。
func (c *EmailConfig) Remaining() int {
	r := c.MaxCount - c.ReceivedCount
	if r < 0 {
		return 0
	}
	return r
}

// IsExpired 是否已超过有效期。
func (c *EmailConfig) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// IsExhausted 读取次数是否已用尽。
func (c *EmailConfig) IsExhausted() bool {
	return c.ReceivedCount >= c.MaxCount
}

// ConfigFilter 分页查询邮箱配置的过滤条件。
type ConfigFilter struct {
	UserID      string // 必填：归属用户
	Query       string // 可选：目标邮箱子串（小写）
	OrderBy     string // createdAt | updatedAt（默认 updatedAt）
	Order       string // asc | desc（默认 desc）
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Page        int
	PageSize    int
}
