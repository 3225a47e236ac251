package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"evenup_web/internal/models"
	"evenup_web/internal/rbac"
)

type RoleStore struct{ DB *gorm.DB }

func NewRoleStore(db *gorm.DB) *RoleStore { return &RoleStore{DB: db} }

// FindRole returns the stored role value for userID, nil when there is no
// row or the column is null. The value is not validated here.
func (s *RoleStore) FindRole(ctx context.Context, userID string) (*string, error) {
	var rows []struct{ Role *string }
	err := s.DB.WithContext(ctx).
		Model(&models.RoleAssignment{}).
		Select("role").
		Where("user_id = ?", userID).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, wrap("find role", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].Role, nil
}

// List returns assignments with recognized roles, most recently changed
// first.
func (s *RoleStore) List(ctx context.Context) ([]models.RoleAssignment, error) {
	var rows []models.RoleAssignment
	if err := s.DB.WithContext(ctx).Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, wrap("list roles", err)
	}
	out := rows[:0]
	for _, r := range rows {
		if rbac.IsRecognized(r.Role) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Upsert creates or replaces the user's assignment.
func (s *RoleStore) Upsert(ctx context.Context, userID string, role rbac.Role) error {
	now := time.Now().UTC()
	row := models.RoleAssignment{UserID: userID, Role: role.String(), CreatedAt: now, UpdatedAt: now}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "updated_at"}),
	}).Create(&row).Error
	return wrap("upsert role", err)
}

// Update changes an existing assignment; it reports whether a row matched.
func (s *RoleStore) Update(ctx context.Context, userID string, role rbac.Role) (bool, error) {
	res := s.DB.WithContext(ctx).
		Model(&models.RoleAssignment{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"role": role.String(), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, wrap("update role", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Revoke deletes the user's assignment.
func (s *RoleStore) Revoke(ctx context.Context, userID string) error {
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RoleAssignment{}).Error
	return wrap("revoke role", err)
}
