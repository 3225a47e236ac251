package store

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"evenup_web/internal/models"
)

const DefaultSearchLimit = 8

type ProfileStore struct{ DB *gorm.DB }

func NewProfileStore(db *gorm.DB) *ProfileStore { return &ProfileStore{DB: db} }

// ByIDs loads profiles keyed by id. Missing ids are absent from the map.
func (s *ProfileStore) ByIDs(ctx context.Context, ids []string) (map[string]models.UserProfile, error) {
	out := make(map[string]models.UserProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.UserProfile
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, wrap("load profiles", err)
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

// SanitizeSearch turns commas into spaces, drops % and trims.
func SanitizeSearch(term string) string {
	term = strings.ReplaceAll(term, ",", " ")
	term = strings.ReplaceAll(term, "%", "")
	return strings.TrimSpace(term)
}

// Search matches email or nickname case-insensitively.
func (s *ProfileStore) Search(ctx context.Context, term string, limit int) ([]models.UserProfile, error) {
	term = SanitizeSearch(term)
	if term == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	like := "%" + strings.ToLower(term) + "%"
	var rows []models.UserProfile
	err := s.DB.WithContext(ctx).
		Where("LOWER(email) LIKE ? OR LOWER(nickname) LIKE ?", like, like).
		Order("email ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrap("search profiles", err)
	}
	return rows, nil
}

func (s *ProfileStore) FindProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	var rows []models.UserProfile
	if err := s.DB.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, wrap("find profile", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *ProfileStore) FindProfileByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	var rows []models.UserProfile
	err := s.DB.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Where("deleted_at IS NULL").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, wrap("find profile by email", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *ProfileStore) CreateProfile(ctx context.Context, p *models.UserProfile) error {
	return wrap("create profile", s.DB.WithContext(ctx).Create(p).Error)
}

// MarkEmailVerified stamps email_verified_at once; later calls leave the
// first stamp in place. It reports whether a row changed.
func (s *ProfileStore) MarkEmailVerified(ctx context.Context, id string, at time.Time) (bool, error) {
	res := s.DB.WithContext(ctx).
		Model(&models.UserProfile{}).
		Where("id = ? AND email_verified_at IS NULL", id).
		Update("email_verified_at", at.UTC())
	if res.Error != nil {
		return false, wrap("mark email verified", res.Error)
	}
	return res.RowsAffected > 0, nil
}
