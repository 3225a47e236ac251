package store

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"evenup_web/internal/models"
)

const DefaultPageSize = 25

// PageSizes are the page sizes the logs page offers.
var PageSizes = []int{10, 25, 50, 100}

// SortFields are the grouped-log columns the list may be ordered by.
var SortFields = []string{"last_seen_at", "occurrences", "max_duplicate_count", "severity", "source", "error_kind"}

// LogQuery filters and pages the grouped error logs.
type LogQuery struct {
	Source    string `form:"source"`
	ErrorKind string `form:"error_kind"`
	Severity  string `form:"severity"`
	Code      string `form:"code"`
	Search    string `form:"q"`
	SortBy    string `form:"sort"`
	Order     string `form:"order"` // asc or desc
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
}

// Normalize fills defaults and clamps unknown values.
func (q LogQuery) Normalize() LogQuery {
	q.Source = strings.TrimSpace(q.Source)
	q.ErrorKind = strings.TrimSpace(q.ErrorKind)
	q.Severity = strings.TrimSpace(q.Severity)
	q.Code = strings.TrimSpace(q.Code)
	q.Search = SanitizeSearch(q.Search)
	if !contains(SortFields, q.SortBy) {
		q.SortBy = "last_seen_at"
	}
	if q.Order != "asc" {
		q.Order = "desc"
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if !containsInt(PageSizes, q.PageSize) {
		q.PageSize = DefaultPageSize
	}
	return q
}

func (q LogQuery) Offset() int { return (q.Page - 1) * q.PageSize }

// LogPage is one page of grouped logs.
type LogPage struct {
	Rows  []models.GroupedErrorLog
	Total int64
	Query LogQuery
}

// TotalPages is ceil(total/size), at least 1.
func (p LogPage) TotalPages() int {
	if p.Total == 0 || p.Query.PageSize == 0 {
		return 1
	}
	return int((p.Total + int64(p.Query.PageSize) - 1) / int64(p.Query.PageSize))
}

type LogStore struct{ DB *gorm.DB }

func NewLogStore(db *gorm.DB) *LogStore { return &LogStore{DB: db} }

func (s *LogStore) filtered(ctx context.Context, q LogQuery) *gorm.DB {
	tx := s.DB.WithContext(ctx).Model(&models.GroupedErrorLog{})
	if q.Source != "" {
		tx = tx.Where("source = ?", q.Source)
	}
	if q.ErrorKind != "" {
		tx = tx.Where("error_kind = ?", q.ErrorKind)
	}
	if q.Severity != "" {
		tx = tx.Where("severity = ?", q.Severity)
	}
	if q.Code != "" {
		tx = tx.Where("LOWER(code) LIKE ? ESCAPE '!'", containsPattern(q.Code))
	}
	if q.Search != "" {
		like := containsPattern(q.Search)
		tx = tx.Where("LOWER(message) LIKE ? ESCAPE '!' OR LOWER(code) LIKE ? ESCAPE '!'", like, like)
	}
	return tx
}

func (s *LogStore) listPage(ctx context.Context, q LogQuery) *gorm.DB {
	return s.filtered(ctx, q).
		Order(clause.OrderByColumn{Column: clause.Column{Name: q.SortBy}, Desc: q.Order == "desc"}).
		Offset(q.Offset()).
		Limit(q.PageSize)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern is a lower-cased LIKE pattern matching v literally
// anywhere, for use with ESCAPE '!'.
func containsPattern(v string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(v)) + "%"
}

// ListGrouped returns one page of grouped logs with the total row count.
func (s *LogStore) ListGrouped(ctx context.Context, q LogQuery) (LogPage, error) {
	q = q.Normalize()
	page := LogPage{Query: q}

	if err := s.filtered(ctx, q).Count(&page.Total).Error; err != nil {
		return page, wrap("count logs", err)
	}
	if err := s.listPage(ctx, q).Find(&page.Rows).Error; err != nil {
		return page, wrap("list logs", err)
	}
	return page, nil
}

// LatestSample returns the newest raw log in the group, nil if none.
func (s *LogStore) LatestSample(ctx context.Context, g models.GroupedErrorLog) (*models.ErrorLog, error) {
	var rows []models.ErrorLog
	if err := s.sample(ctx, g).Find(&rows).Error; err != nil {
		return nil, wrap("load sample", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *LogStore) sample(ctx context.Context, g models.GroupedErrorLog) *gorm.DB {
	tx := s.DB.WithContext(ctx).Model(&models.ErrorLog{}).
		Where("source = ? AND error_kind = ? AND severity = ? AND message = ?", g.Source, g.ErrorKind, g.Severity, g.Message)
	if g.Code != nil {
		tx = tx.Where("code = ?", *g.Code)
	} else {
		tx = tx.Where("code IS NULL")
	}
	return tx.Order("occurred_at DESC").Limit(1)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsInt(list []int, v int) bool {
	for _, n := range list {
		if n == v {
			return true
		}
	}
	return false
}
