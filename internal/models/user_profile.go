package models

import "time"

type UserStatus string

const (
	UserActive  UserStatus = "active"
	UserInvited UserStatus = "invited"
)

// UserProfile mirrors the app's user_profiles table. Only the columns the
// admin portal reads or writes are mapped.
type UserProfile struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	Email           *string    `gorm:"size:255;index" json:"email"`
	Nickname        *string    `gorm:"size:120" json:"nickname"`
	Status          *string    `gorm:"size:16" json:"status"`
	DeletedAt       *time.Time `json:"deleted_at"` // plain timestamp, not gorm soft delete
	LastActiveAt    *time.Time `gorm:"index" json:"last_active_at"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (UserProfile) TableName() string { return "user_profiles" }

// Label is the email, then the nickname, then "-".
func (p UserProfile) Label() string {
	if p.Email != nil && *p.Email != "" {
		return *p.Email
	}
	if p.Nickname != nil && *p.Nickname != "" {
		return *p.Nickname
	}
	return "-"
}
