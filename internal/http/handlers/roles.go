package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"evenup_web/internal/auth"
	"evenup_web/internal/rbac"
	"evenup_web/internal/store"
)

type assignmentRow struct {
	UserID       string
	Role         string
	Label        string
	Status       string
	LastActiveAt *time.Time
	UpdatedAt    time.Time
}

func roleNames() []string {
	names := make([]string, len(rbac.Roles))
	for i, r := range rbac.Roles {
		names[i] = r.String()
	}
	return names
}

// Roles lists current assignments joined with the users' profiles.
func Roles(roles RoleAdmin, profiles ProfileDirectory) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		view := adminView(c, PageRoles)
		view["RoleNames"] = roleNames()

		assignments, err := roles.List(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "list roles failed", "error", err)
			view["Error"] = store.Message(err)
			c.HTML(http.StatusOK, "roles.tmpl", view)
			return
		}

		ids := make([]string, len(assignments))
		for i, a := range assignments {
			ids[i] = a.UserID
		}
		byID, err := profiles.ByIDs(ctx, ids)
		if err != nil {
			slog.ErrorContext(ctx, "load profiles failed", "error", err)
			view["Error"] = store.Message(err)
		}

		rows := make([]assignmentRow, 0, len(assignments))
		for _, a := range assignments {
			row := assignmentRow{UserID: a.UserID, Role: a.Role, Label: "-", Status: "-", UpdatedAt: a.UpdatedAt}
			if p, ok := byID[a.UserID]; ok {
				row.Label = p.Label()
				if p.Status != nil && *p.Status != "" {
					row.Status = *p.Status
				}
				row.LastActiveAt = p.LastActiveAt
			}
			rows = append(rows, row)
		}
		view["Assignments"] = rows
		c.HTML(http.StatusOK, "roles.tmpl", view)
	}
}

type userHit struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Label    string `json:"label"`
}

// SearchUsers finds profiles by email or nickname, leaving out users
// that already hold a role.
func SearchUsers(roles RoleAdmin, profiles ProfileDirectory) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		term := store.SanitizeSearch(c.Query("q"))
		if len([]rune(term)) < 2 {
			c.JSON(http.StatusOK, gin.H{"users": []userHit{}})
			return
		}

		found, err := profiles.Search(ctx, term, store.DefaultSearchLimit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": store.Message(err)})
			return
		}
		assigned, err := roles.List(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": store.Message(err)})
			return
		}
		taken := make(map[string]bool, len(assigned))
		for _, a := range assigned {
			taken[a.UserID] = true
		}

		hits := make([]userHit, 0, len(found))
		for _, p := range found {
			if taken[p.ID] {
				continue
			}
			hit := userHit{ID: p.ID, Label: p.Label()}
			if p.Email != nil {
				hit.Email = *p.Email
			}
			if p.Nickname != nil {
				hit.Nickname = *p.Nickname
			}
			hits = append(hits, hit)
		}
		c.JSON(http.StatusOK, gin.H{"users": hits})
	}
}

type roleForm struct {
	UserID  string `form:"user_id"`
	Role    string `form:"role"`
	Current string `form:"current"`
}

// UpsertRole creates or replaces an assignment.
func UpsertRole(roles RoleAdmin, basePath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form roleForm
		_ = c.ShouldBind(&form)
		st := auth.Storage(c)
		back := basePath + PageRoles.Path

		userID := strings.TrimSpace(form.UserID)
		if userID == "" {
			setFlash(st, "", "User ID is required.")
			c.Redirect(http.StatusSeeOther, back)
			return
		}
		if _, err := uuid.Parse(userID); err != nil {
			setFlash(st, "", "User ID must be a valid UUID.")
			c.Redirect(http.StatusSeeOther, back)
			return
		}
		role, ok := rbac.ParseRole(form.Role)
		if !ok {
			setFlash(st, "", "Unknown role.")
			c.Redirect(http.StatusSeeOther, back)
			return
		}

		if err := roles.Upsert(c.Request.Context(), userID, role); err != nil {
			slog.ErrorContext(c.Request.Context(), "upsert role failed", "user_id", userID, "error", err)
			setFlash(st, "", store.Message(err))
			c.Redirect(http.StatusSeeOther, back)
			return
		}
		slog.InfoContext(c.Request.Context(), "role saved", "user_id", userID, "role", role.String(), "by", auth.Snapshot(c).UserID())
		setFlash(st, "Role saved successfully.", "")
		c.Redirect(http.StatusSeeOther, back)
	}
}

// UpdateRole changes the role of an existing assignment. Submitting the
// current role again is a no-op.
func UpdateRole(roles RoleAdmin, basePath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form roleForm
		_ = c.ShouldBind(&form)
		st := auth.Storage(c)
		back := basePath + PageRoles.Path
		userID := c.Param("userId")

		role, ok := rbac.ParseRole(form.Role)
		if !ok {
			setFlash(st, "", "Unknown role.")
			c.Redirect(http.StatusSeeOther, back)
			return
		}
		if form.Current == role.String() {
			c.Redirect(http.StatusSeeOther, back)
			return
		}

		found, err := roles.Update(c.Request.Context(), userID, role)
		switch {
		case err != nil:
			slog.ErrorContext(c.Request.Context(), "update role failed", "user_id", userID, "error", err)
			setFlash(st, "", store.Message(err))
		case !found:
			setFlash(st, "", "No role assignment for "+userID+".")
		default:
			slog.InfoContext(c.Request.Context(), "role updated", "user_id", userID, "role", role.String(), "by", auth.Snapshot(c).UserID())
			setFlash(st, "Role updated to "+role.String()+".", "")
		}
		c.Redirect(http.StatusSeeOther, back)
	}
}

// RevokeRole deletes an assignment.
func RevokeRole(roles RoleAdmin, basePath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := auth.Storage(c)
		userID := c.Param("userId")

		if err := roles.Revoke(c.Request.Context(), userID); err != nil {
			slog.ErrorContext(c.Request.Context(), "revoke role failed", "user_id", userID, "error", err)
			setFlash(st, "", store.Message(err))
		} else {
			slog.InfoContext(c.Request.Context(), "role revoked", "user_id", userID, "by", auth.Snapshot(c).UserID())
			setFlash(st, "Role removed for "+userID+".", "")
		}
		c.Redirect(http.StatusSeeOther, basePath+PageRoles.Path)
	}
}
