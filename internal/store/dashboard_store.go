package store

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"evenup_web/internal/models"
)

// Metrics are the dashboard counters.
type Metrics struct {
	ActiveUsers  int64
	InvitedUsers int64
	DeletedUsers int64
	Active24h    int64
	Active7d     int64
	TotalLogs    int64
	CriticalLogs int64
	HighLogs     int64
}

type DashboardStore struct{ DB *gorm.DB }

func NewDashboardStore(db *gorm.DB) *DashboardStore { return &DashboardStore{DB: db} }

// Load runs every count concurrently; the first failure cancels the rest.
func (s *DashboardStore) Load(ctx context.Context, now time.Time) (Metrics, error) {
	var m Metrics
	g, gctx := errgroup.WithContext(ctx)

	profiles := func() *gorm.DB { return s.DB.WithContext(gctx).Model(&models.UserProfile{}) }
	logs := func() *gorm.DB { return s.DB.WithContext(gctx).Model(&models.ErrorLog{}) }

	counts := []struct {
		dst *int64
		q   func() *gorm.DB
	}{
		{&m.ActiveUsers, func() *gorm.DB { return profiles().Where("status = ? AND deleted_at IS NULL", models.UserActive) }},
		{&m.InvitedUsers, func() *gorm.DB { return profiles().Where("status = ? AND deleted_at IS NULL", models.UserInvited) }},
		{&m.DeletedUsers, func() *gorm.DB { return profiles().Where("deleted_at IS NOT NULL") }},
		{&m.Active24h, func() *gorm.DB {
			return profiles().Where("deleted_at IS NULL AND last_active_at >= ?", now.Add(-24*time.Hour))
		}},
		{&m.Active7d, func() *gorm.DB {
			return profiles().Where("deleted_at IS NULL AND last_active_at >= ?", now.Add(-7*24*time.Hour))
		}},
		{&m.TotalLogs, logs},
		{&m.CriticalLogs, func() *gorm.DB { return logs().Where("severity = ?", models.SeverityCritical) }},
		{&m.HighLogs, func() *gorm.DB { return logs().Where("severity = ?", models.SeverityHigh) }},
	}
	for _, c := range counts {
		c := c
		g.Go(func() error {
			return c.q().Count(c.dst).Error
		})
	}
	if err := g.Wait(); err != nil {
		return Metrics{}, wrap("load metrics", err)
	}
	return m, nil
}
