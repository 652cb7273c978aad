package model

import "time"

// 用户状态
const (
	UserStatusDisabled = 0
	UserStatusActive   = 1
)

// User represents an administrator account of the console.
type User struct {
	ID            string     `json:"id" gorm:"primaryKey;size:36"`
	Username      string     `json:"username" gorm:"size:100;not null"`
	Email         *string    `json:"email" gorm:"uniqueIndex;size:255"`
	Password      string     `json:"-" gorm:"column:password;size:255;not null"` // bcrypt hash
	Status        int        `json:"status" gorm:"not null"`
	Avatar        *string    `json:"avatar" gorm:"size:512"`
	LastLoginTime *time.Time `json:"lastLoginTime"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// EmailValue returns the email or "" when the column is NULL.
func (u *User) EmailValue() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

// PublicUser is the password-free view returned by the API.
type PublicUser struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Email         *string    `json:"email"`
	Status        int        `json:"status"`
	Avatar        *string    `json:"avatar,omitempty"`
	LastLoginTime *time.Time `json:"lastLoginTime,omitempty"`
}

// Public 转换为响应格式
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Status:        u.Status,
		Avatar:        u.Avatar,
		LastLoginTime: u.LastLoginTime,
	}
}
