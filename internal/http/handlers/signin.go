package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"evenup_web/internal/auth"
	"evenup_web/internal/gate"
)

type signInForm struct {
	Email string `form:"email"`
	Code  string `form:"code"`
	Next  string `form:"next"`
}

// SignInEmail sends a one-time code to an existing account and moves the
// browser's sign-in flow to the code step.
func SignInEmail(basePath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form signInForm
		_ = c.ShouldBind(&form)

		st := auth.Storage(c)
		flow := gate.LoadSignInFlow(st)
		if err := flow.SubmitEmail(c.Request.Context(), auth.Client(c), form.Email); err != nil {
			slog.WarnContext(c.Request.Context(), "otp send failed", "email", flow.Email, "error", err)
		}
		flow.Store(st)
		if err := st.Save(); err != nil {
			slog.ErrorContext(c.Request.Context(), "session save failed", "error", err)
		}
		c.Redirect(http.StatusSeeOther, basePath+safeNext(form.Next))
	}
}

// SignInOTP verifies the emailed code. A verified flow is dropped so the
// next visit starts fresh; the session itself is stored by the client.
func SignInOTP(basePath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form signInForm
		_ = c.ShouldBind(&form)

		st := auth.Storage(c)
		flow := gate.LoadSignInFlow(st)
		if err := flow.SubmitCode(c.Request.Context(), auth.Client(c), form.Code); err != nil {
			slog.WarnContext(c.Request.Context(), "otp verify failed", "email", flow.Email, "error", err)
			flow.Store(st)
		} else {
			slog.InfoContext(c.Request.Context(), "admin signed in", "email", flow.Email)
			gate.ClearSignInFlow(st)
		}
		if err := st.Save(); err != nil {
			slog.ErrorContext(c.Request.Context(), "session save failed", "error", err)
		}
		c.Redirect(http.StatusSeeOther, basePath+safeNext(form.Next))
	}
}

// SignInReset returns the flow to the email step.
func SignInReset(basePath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form signInForm
		_ = c.ShouldBind(&form)

		st := auth.Storage(c)
		flow := gate.LoadSignInFlow(st)
		flow.UseDifferentEmail()
		flow.Store(st)
		_ = st.Save()
		c.Redirect(http.StatusSeeOther, basePath+safeNext(form.Next))
	}
}

// SignOut ends the provider session and forgets the browser's tokens.
func SignOut(basePath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := auth.Storage(c)
		if err := auth.Client(c).SignOut(c.Request.Context()); err != nil {
			slog.WarnContext(c.Request.Context(), "sign out failed", "error", err)
		}
		gate.ClearSignInFlow(st)
		_ = st.Save()
		c.Redirect(http.StatusSeeOther, basePath+"/admin")
	}
}
