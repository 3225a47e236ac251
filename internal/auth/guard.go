package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"evenup_web/internal/gate"
	"evenup_web/internal/rbac"
)

const snapshotKey = "auth.gate"

// DenyFunc renders a page for a gate state other than authorized.
type DenyFunc func(c *gin.Context, status int, snap gate.Snapshot)

// StatusFor maps a gate state to the HTTP status of the page shown for it.
func StatusFor(s gate.State) int {
	switch s {
	case gate.StateAuthorized:
		return http.StatusOK
	case gate.StateUnauthenticated:
		return http.StatusUnauthorized
	case gate.StateNoRole, gate.StateInsufficientRole:
		return http.StatusForbidden
	default:
		return http.StatusServiceUnavailable
	}
}

// Require mounts a gate for the request and only lets authorized
// browsers through. The gate is unmounted when the request ends.
func Require(required rbac.Role, roles gate.RoleLookup, deny DenyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		g := gate.New(Client(c), roles, gate.WithRequiredRole(required))
		defer g.Unmount()

		snap := g.Mount(c.Request.Context())
		if snap.State == gate.StateAuthorized {
			c.Set(snapshotKey, snap)
			c.Next()
			return
		}

		status := StatusFor(snap.State)
		if !wantsHTML(c) {
			body := gin.H{"error": http.StatusText(status), "state": snap.State.String()}
			if snap.Err != nil {
				body["error"] = snap.ErrorMessage()
			}
			c.AbortWithStatusJSON(status, body)
			return
		}
		deny(c, status, snap)
		c.Abort()
	}
}

// Snapshot returns the authorized gate snapshot set by Require.
func Snapshot(c *gin.Context) gate.Snapshot {
	v, _ := c.Get(snapshotKey)
	snap, _ := v.(gate.Snapshot)
	return snap
}

func wantsHTML(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "text/html") || !strings.Contains(accept, "application/json")
}
