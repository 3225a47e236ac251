package seed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evenup_web/internal/models"
)

func TestSampleLogs(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := SampleLogs(now)
	require.NotEmpty(t, rows)

	var critical int
	for _, r := range rows {
		assert.NotEmpty(t, r.Source)
		assert.NotEmpty(t, r.Message)
		assert.True(t, r.OccurredAt.Before(now))
		assert.True(t, r.OccurredAt.After(now.Add(-24*time.Hour)))
		if r.Severity == string(models.SeverityCritical) {
			critical++
		}
	}
	assert.Equal(t, 1, critical)
}
