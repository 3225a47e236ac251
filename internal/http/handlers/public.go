package handlers

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"evenup_web/internal/auth"
	"evenup_web/internal/backend"
	"evenup_web/internal/config"
)

const inviteFallbackAfter = 1500 * time.Millisecond

var mobileUA = regexp.MustCompile(`(?i)android|iphone|ipad|ipod`)

// Home renders the marketing page.
func Home(links config.LinksConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "home.tmpl", gin.H{
			"Title":        "Split expenses the friendly way",
			"PlayStoreURL": links.PlayStoreURL,
		})
	}
}

// InviteLink builds the app deep link for an invite.
func InviteLink(scheme, token, friendID string) string {
	return scheme + "://invite?token=" + url.QueryEscape(token) + "&friend_id=" + url.QueryEscape(friendID)
}

// Invite tries the app first and falls back to the store listing.
func Invite(links config.LinksConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var deepLink template.URL
		if token := c.Query("token"); token != "" {
			deepLink = template.URL(InviteLink(links.AppScheme, token, c.Query("friend_id")))
		}
		c.HTML(http.StatusOK, "invite.tmpl", gin.H{
			"Title":           "You're invited",
			"DeepLink":        deepLink,
			"FallbackURL":     links.PlayStoreURL,
			"FallbackAfterMS": inviteFallbackAfter.Milliseconds(),
		})
	}
}

// EmailVerified shows the post-verification page, with an app button on
// phones.
func EmailVerified(links config.LinksConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "email_verified.tmpl", gin.H{
			"Title":  "Email verified",
			"Mobile": mobileUA.MatchString(c.GetHeader("User-Agent")),
			"AppURL": template.URL(links.AppScheme + "://(tabs)"),
		})
	}
}

// VerifyEmail completes an email link. The session comes from the link's
// token hash when present, otherwise from the browser. A confirmed user
// gets email_verified_at stamped once, with the provider's confirmation time.
func VerifyEmail(profiles ProfileDirectory, links config.LinksConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		client := auth.Client(c)

		if hash := c.Query("token_hash"); hash != "" {
			linkType := c.DefaultQuery("type", "email")
			if _, err := client.VerifyEmailLink(ctx, hash, linkType); err != nil && !errors.Is(err, backend.ErrUnsupported) {
				slog.WarnContext(ctx, "email link verify failed", "error", err)
			}
		}

		verified := false
		s, err := client.GetSession(ctx)
		if err != nil {
			slog.WarnContext(ctx, "session lookup failed", "error", err)
		}
		if s != nil && s.User.EmailConfirmedAt != nil {
			verified = true
			if _, err := profiles.MarkEmailVerified(ctx, s.User.ID, *s.User.EmailConfirmedAt); err != nil {
				slog.ErrorContext(ctx, "stamp email verified failed", "user_id", s.User.ID, "error", err)
			}
		}

		c.HTML(http.StatusOK, "verify_email.tmpl", gin.H{
			"Title":    "Verify email",
			"Verified": verified,
			"AppURL":   template.URL(links.AppScheme + "://auth/verified"),
		})
	}
}

// Health is the liveness probe.
func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
