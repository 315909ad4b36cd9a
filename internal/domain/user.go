package domain

import "time"

// User 表示后台登录用户。
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username     string    `json:"username" gorm:"type:varchar(64);uniqueIndex"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255)"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CanManage 判断 actor 是否可以操作 ownerID 名下的资源。
//
// 规则：资源所有者本人或管理员。所有路由的归属检查都走这里，
// 避免在各个 handler 里散落 if 判断。
func CanManage(actor *User, ownerID string) bool {
	if actor == nil {
		return false
	}
	return actor.IsAdmin || actor.ID == ownerID
}
