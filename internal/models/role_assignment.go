package models

import "time"

// RoleAssignment is one row of admin_user_roles. At most one per user.
type RoleAssignment struct {
	UserID    string    `gorm:"primaryKey;column:user_id;size:36" json:"user_id"`
	Role      string    `gorm:"size:16;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}

func (RoleAssignment) TableName() string { return "admin_user_roles" }
