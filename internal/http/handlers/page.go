package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"evenup_web/internal/auth"
	"evenup_web/internal/backend"
	"evenup_web/internal/gate"
	"evenup_web/internal/models"
	"evenup_web/internal/rbac"
	"evenup_web/internal/store"
)

// RoleAdmin reads and changes admin role assignments.
type RoleAdmin interface {
	gate.RoleLookup
	List(ctx context.Context) ([]models.RoleAssignment, error)
	Upsert(ctx context.Context, userID string, role rbac.Role) error
	Update(ctx context.Context, userID string, role rbac.Role) (bool, error)
	Revoke(ctx context.Context, userID string) error
}

// ProfileDirectory reads app user profiles.
type ProfileDirectory interface {
	ByIDs(ctx context.Context, ids []string) (map[string]models.UserProfile, error)
	Search(ctx context.Context, term string, limit int) ([]models.UserProfile, error)
	MarkEmailVerified(ctx context.Context, id string, at time.Time) (bool, error)
}

type LogReader interface {
	ListGrouped(ctx context.Context, q store.LogQuery) (store.LogPage, error)
	LatestSample(ctx context.Context, g models.GroupedErrorLog) (*models.ErrorLog, error)
}

type MetricsLoader interface {
	Load(ctx context.Context, now time.Time) (store.Metrics, error)
}

// Page describes a protected admin page.
type Page struct {
	Title       string
	Description string
	Path        string
	Required    rbac.Role
}

var (
	PageDashboard = Page{"Dashboard", "Live overview of user lifecycle and production errors.", "/admin", rbac.RoleViewer}
	PageLogs      = Page{"Error Logs", "Grouped error signals by source and error kind.", "/admin/logs", rbac.RoleViewer}
	PageRoles     = Page{"Role Management", "Assign who can access the admin portal.", "/admin/roles", rbac.RoleAdmin}
)

type navLink struct {
	Label string
	Href  string
}

var nav = []navLink{
	{"Dashboard", "/admin"},
	{"Logs", "/admin/logs"},
	{"Roles", "/admin/roles"},
}

const (
	flashMessageKey = "flash.message"
	flashErrorKey   = "flash.error"
)

func setFlash(st backend.Storage, message, errMsg string) {
	if message != "" {
		st.Set(flashMessageKey, message)
	}
	if errMsg != "" {
		st.Set(flashErrorKey, errMsg)
	}
	_ = st.Save()
}

func popFlash(st backend.Storage) (message, errMsg string) {
	message, _ = st.Get(flashMessageKey)
	errMsg, _ = st.Get(flashErrorKey)
	if message != "" || errMsg != "" {
		st.Delete(flashMessageKey)
		st.Delete(flashErrorKey)
		_ = st.Save()
	}
	return message, errMsg
}

// adminView is the template data shared by every authorized admin page.
func adminView(c *gin.Context, p Page) gin.H {
	snap := auth.Snapshot(c)
	var user backend.User
	if snap.Session != nil {
		user = snap.Session.User
	}
	message, errMsg := popFlash(auth.Storage(c))
	return gin.H{
		"Title":       p.Title,
		"Description": p.Description,
		"Path":        p.Path,
		"Nav":         nav,
		"Gate":        snap,
		"User":        user,
		"Message":     message,
		"Error":       errMsg,
	}
}

// Deny renders the gate page for non-authorized states.
func Deny(basePath string) auth.DenyFunc {
	return func(c *gin.Context, status int, snap gate.Snapshot) {
		path := strings.TrimPrefix(c.Request.URL.Path, basePath)
		title := "Admin"
		if snap.State == gate.StateUnauthenticated {
			title = "Admin sign in"
		}
		c.HTML(status, "gate.tmpl", gin.H{
			"Title": title,
			"State": snap.State.String(),
			"Gate":  snap,
			"Flow":  gate.LoadSignInFlow(auth.Storage(c)),
			"Next":  path,
			"Path":  path,
		})
	}
}

// safeNext keeps post-sign-in redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/admin") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return "/admin"
	}
	return next
}
