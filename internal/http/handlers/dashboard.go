package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"evenup_web/internal/store"
)

type metricCard struct {
	Label string
	Value int64
}

func metricCards(m store.Metrics) []metricCard {
	return []metricCard{
		{"Active users", m.ActiveUsers},
		{"Invited users", m.InvitedUsers},
		{"Deleted users", m.DeletedUsers},
		{"Active in last 24h", m.Active24h},
		{"Active in last 7d", m.Active7d},
		{"Total logs", m.TotalLogs},
		{"Critical logs", m.CriticalLogs},
		{"High logs", m.HighLogs},
	}
}

// Dashboard renders the metric cards. A failed load keeps the page up
// with zeroed cards and the database message.
func Dashboard(metrics MetricsLoader, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		view := adminView(c, PageDashboard)

		m, err := metrics.Load(c.Request.Context(), now())
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "dashboard metrics failed", "error", err)
			view["Error"] = store.Message(err)
			view["Cards"] = metricCards(store.Metrics{})
			c.HTML(http.StatusOK, "dashboard.tmpl", view)
			return
		}
		view["Cards"] = metricCards(m)
		view["LastUpdated"] = now()
		c.HTML(http.StatusOK, "dashboard.tmpl", view)
	}
}
