package domain

import "time"

// SystemSettingsID 系统设置的固定主键，全库只有一行。
const SystemSettingsID = "system"

// SystemSettings 管理员可在运行时修改的上游网关凭证。
//
// 非空字段优先于部署环境配置；令牌轮换后设置服务会同步失效缓存，
// 无需重启进程。
type SystemSettings struct {
	ID              string    `json:"id" gorm:"primaryKey;type:varchar(16)"`
	UpstreamBaseURL string    `json:"upstreamBaseUrl" gorm:"type:varchar(255)"`
	UpstreamToken   string    `json:"-" gorm:"type:varchar(255)"`
	UpdatedBy       string    `json:"updatedBy" gorm:"type:varchar(36)"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
