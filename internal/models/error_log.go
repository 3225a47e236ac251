package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists the filterable severities, most severe first.
var Severities = []string{string(SeverityCritical), string(SeverityHigh), string(SeverityMedium), string(SeverityLow)}

// ErrorLog is a single error reported by the mobile app.
type ErrorLog struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	Source         string         `gorm:"size:64;not null;index" json:"source"`
	ErrorKind      string         `gorm:"size:64;not null" json:"error_kind"`
	Code           *string        `gorm:"size:64" json:"code"`
	Message        string         `gorm:"type:text;not null" json:"message"`
	Severity       string         `gorm:"size:16;not null;index" json:"severity"`
	Stack          *string        `gorm:"type:text" json:"stack"`
	Extra          datatypes.JSON `json:"extra"`
	DuplicateCount int            `gorm:"not null;default:1" json:"duplicate_count"`
	OccurredAt     time.Time      `gorm:"not null;index" json:"occurred_at"`
}

func (ErrorLog) TableName() string { return "app_error_logs" }

// GroupedErrorLog is a row of the app_error_logs_grouped view.
type GroupedErrorLog struct {
	Source            string    `json:"source"`
	ErrorKind         string    `json:"error_kind"`
	Code              *string   `json:"code"`
	Message           string    `json:"message"`
	Severity          string    `json:"severity"`
	Occurrences       int64     `json:"occurrences"`
	MaxDuplicateCount int64     `json:"max_duplicate_count"`
	LastSeenAt        time.Time `json:"last_seen_at"`
}

func (GroupedErrorLog) TableName() string { return "app_error_logs_grouped" }

// Key identifies a group across renders.
func (g GroupedErrorLog) Key() string {
	code := "null"
	if g.Code != nil {
		code = *g.Code
	}
	return strings.Join([]string{g.Source, g.ErrorKind, g.Severity, code, g.Message}, "::")
}

// All returns the tables managed by AutoMigrate.
func All() []any {
	return []any{&RoleAssignment{}, &UserProfile{}, &ErrorLog{}}
}
