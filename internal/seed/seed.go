package seed

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"evenup_web/internal/models"
	"evenup_web/internal/rbac"
	"evenup_web/internal/store"
)

type Options struct {
	OwnerEmail string
	// SampleLogs adds a handful of error reports so a fresh local
	// database has something to show on the dashboard and logs pages.
	SampleLogs bool
}

// FirstSetup makes sure the owner account exists and holds the owner
// role. It is safe to run repeatedly.
func FirstSetup(ctx context.Context, db *gorm.DB, opts Options) error {
	email := strings.ToLower(strings.TrimSpace(opts.OwnerEmail))
	if email == "" {
		return errors.New("seed: owner email is required")
	}

	// -------------------------
	// 1) Ensure owner profile
	// -------------------------
	profiles := store.NewProfileStore(db)
	owner, err := profiles.FindProfileByEmail(ctx, email)
	if err != nil {
		return err
	}
	if owner == nil {
		active := string(models.UserActive)
		now := time.Now().UTC()
		owner = &models.UserProfile{
			ID:              uuid.NewString(),
			Email:           &email,
			Status:          &active,
			EmailVerifiedAt: &now,
			CreatedAt:       now,
		}
		if err := profiles.CreateProfile(ctx, owner); err != nil {
			return err
		}
	}

	// -------------------------
	// 2) Ensure owner role
	// -------------------------
	if err := store.NewRoleStore(db).Upsert(ctx, owner.ID, rbac.RoleOwner); err != nil {
		return err
	}

	// -------------------------
	// 3) Optional sample logs
	// -------------------------
	samples := 0
	if opts.SampleLogs {
		rows := SampleLogs(time.Now().UTC())
		for i := range rows {
			rows[i].ID = uuid.NewString()
		}
		if err := db.WithContext(ctx).Create(&rows).Error; err != nil {
			return err
		}
		samples = len(rows)
	}

	log.Printf("✅ Seed OK | owner=%s id=%s | sample_logs=%d", email, owner.ID, samples)
	return nil
}

// SampleLogs returns error reports spread over the last day.
func SampleLogs(now time.Time) []models.ErrorLog {
	code := "NETWORK_TIMEOUT"
	return []models.ErrorLog{
		{
			Source: "mobile", ErrorKind: "network", Code: &code, Message: "Request timed out",
			Severity: string(models.SeverityHigh), DuplicateCount: 3, OccurredAt: now.Add(-2 * time.Hour),
			Extra: datatypes.JSON(`{"screen":"group_detail","retry":true}`),
		},
		{
			Source: "mobile", ErrorKind: "network", Code: &code, Message: "Request timed out",
			Severity: string(models.SeverityHigh), DuplicateCount: 1, OccurredAt: now.Add(-10 * time.Minute),
			Extra: datatypes.JSON(`{"screen":"expenses","retry":false}`),
		},
		{
			Source: "mobile", ErrorKind: "crash", Message: "Cannot read property 'amount' of undefined",
			Severity: string(models.SeverityCritical), DuplicateCount: 1, OccurredAt: now.Add(-20 * time.Hour),
			Extra: datatypes.JSON(`{"screen":"settle_up"}`),
		},
		{
			Source: "edge", ErrorKind: "validation", Message: "Invite token expired",
			Severity: string(models.SeverityLow), DuplicateCount: 5, OccurredAt: now.Add(-5 * time.Hour),
			Extra: datatypes.JSON(`{}`),
		},
	}
}
