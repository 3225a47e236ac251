package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"evenup_web/internal/gate"
)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusFor(gate.StateAuthorized))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(gate.StateUnauthenticated))
	assert.Equal(t, http.StatusForbidden, StatusFor(gate.StateNoRole))
	assert.Equal(t, http.StatusForbidden, StatusFor(gate.StateInsufficientRole))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(gate.StateError))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(gate.StateLoading))
}

func TestWantsHTML(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[string]bool{
		"":                                  true,
		"text/html,application/xhtml+xml":   true,
		"application/json":                  false,
		"application/json, text/html;q=0.9": true,
		"*/*":                               true,
	}
	for accept, want := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/admin", nil)
		if accept != "" {
			c.Request.Header.Set("Accept", accept)
		}
		assert.Equal(t, want, wantsHTML(c), "accept=%q", accept)
	}
}

func TestSnapshot_MissingIsZero(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, gate.Snapshot{}, Snapshot(c))
}
