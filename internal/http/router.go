package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-session/session/v3"

	"evenup_web/internal/auth"
	"evenup_web/internal/backend"
	"evenup_web/internal/config"
	"evenup_web/internal/http/handlers"
	"evenup_web/internal/logger"
	"evenup_web/internal/ui"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	BasePath string
	Links    config.LinksConfig
	Sessions *session.Manager
	Auth     *backend.ClientFactory
	Roles    handlers.RoleAdmin
	Profiles handlers.ProfileDirectory
	Logs     handlers.LogReader
	Metrics  handlers.MetricsLoader
	Logger   *slog.Logger
	Now      func() time.Time
}

func NewRouter(d Deps) (*gin.Engine, error) {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	tmpl, err := ui.Templates(d.BasePath)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(logger.Gin(d.Logger), gin.Recovery())
	r.SetHTMLTemplate(tmpl)

	base := r.Group(d.BasePath)
	base.StaticFS("/static", http.FS(ui.Static()))
	// favicon fix
	base.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	base.GET("/healthz", handlers.Health())

	site := base.Group("", auth.Session(d.Sessions, d.Auth))
	{
		site.GET("/", handlers.Home(d.Links))
		site.GET("/invite", handlers.Invite(d.Links))
		site.GET("/email-verified", handlers.EmailVerified(d.Links))
		site.GET("/auth/verify-email", handlers.VerifyEmail(d.Profiles, d.Links))
	}

	deny := handlers.Deny(d.BasePath)
	guard := func(p handlers.Page) gin.HandlerFunc {
		return auth.Require(p.Required, d.Roles, deny)
	}

	adm := site.Group("/admin")
	{
		adm.GET("", guard(handlers.PageDashboard), handlers.Dashboard(d.Metrics, d.Now))
		adm.GET("/logs", guard(handlers.PageLogs), handlers.Logs(d.Logs, d.BasePath))
		adm.GET("/logs/sample", guard(handlers.PageLogs), handlers.LogSample(d.Logs))

		roles := guard(handlers.PageRoles)
		adm.GET("/roles", roles, handlers.Roles(d.Roles, d.Profiles))
		adm.GET("/roles/search", roles, handlers.SearchUsers(d.Roles, d.Profiles))
		adm.POST("/roles", roles, handlers.UpsertRole(d.Roles, d.BasePath))
		adm.POST("/roles/:userId", roles, handlers.UpdateRole(d.Roles, d.BasePath))
		adm.POST("/roles/:userId/revoke", roles, handlers.RevokeRole(d.Roles, d.BasePath))

		adm.POST("/signin/email", handlers.SignInEmail(d.BasePath))
		adm.POST("/signin/otp", handlers.SignInOTP(d.BasePath))
		adm.POST("/signin/reset", handlers.SignInReset(d.BasePath))
		adm.POST("/signout", handlers.SignOut(d.BasePath))

		adm.GET("/ws/gate", handlers.GateStream(d.Sessions, d.Auth, d.Roles))
	}

	return r, nil
}
