package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"evenup_web/internal/models"
	"evenup_web/internal/store"
)

// Logs renders one page of grouped error logs.
func Logs(logs LogReader, basePath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q store.LogQuery
		_ = c.ShouldBindQuery(&q)
		q = q.Normalize()

		view := adminView(c, PageLogs)
		view["Query"] = q
		view["Severities"] = models.Severities
		view["SortFields"] = store.SortFields
		view["PageSizes"] = store.PageSizes

		page, err := logs.ListGrouped(c.Request.Context(), q)
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "grouped logs failed", "error", err)
			view["Error"] = store.Message(err)
			page = store.LogPage{Query: q}
		}
		view["Rows"] = page.Rows
		view["Total"] = page.Total
		view["TotalPages"] = page.TotalPages()
		view["PrevURL"] = logsPageURL(basePath, q, q.Page-1)
		view["NextURL"] = logsPageURL(basePath, q, q.Page+1)
		c.HTML(http.StatusOK, "logs.tmpl", view)
	}
}

func logsPageURL(basePath string, q store.LogQuery, page int) string {
	v := url.Values{}
	for key, val := range map[string]string{
		"source":     q.Source,
		"error_kind": q.ErrorKind,
		"severity":   q.Severity,
		"code":       q.Code,
		"q":          q.Search,
	} {
		if val != "" {
			v.Set(key, val)
		}
	}
	v.Set("sort", q.SortBy)
	v.Set("order", q.Order)
	v.Set("page_size", strconv.Itoa(q.PageSize))
	v.Set("page", strconv.Itoa(page))
	return basePath + "/admin/logs?" + v.Encode()
}

type sampleQuery struct {
	Source    string `form:"source" binding:"required"`
	ErrorKind string `form:"error_kind" binding:"required"`
	Severity  string `form:"severity" binding:"required"`
	Message   string `form:"message"`
	HasCode   string `form:"has_code"`
	Code      string `form:"code"`
}

// LogSample returns the most recent raw row of a group as JSON.
func LogSample(logs LogReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q sampleQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "source, error_kind and severity are required"})
			return
		}
		group := models.GroupedErrorLog{
			Source:    q.Source,
			ErrorKind: q.ErrorKind,
			Severity:  q.Severity,
			Message:   q.Message,
		}
		if q.HasCode == "1" {
			code := q.Code
			group.Code = &code
		}

		sample, err := logs.LatestSample(c.Request.Context(), group)
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "log sample failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": store.Message(err)})
			return
		}
		if sample == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "No raw sample found for this group."})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sample": sample})
	}
}
