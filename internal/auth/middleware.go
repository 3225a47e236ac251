package auth

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-session/session/v3"

	"evenup_web/internal/backend"
)

const (
	storageKey = "auth.storage"
	clientKey  = "auth.client"
)

// Session starts (or resumes) the browser session cookie and attaches the
// browser's storage and auth client to the request.
func Session(mgr *session.Manager, factory *backend.ClientFactory) gin.HandlerFunc {
	return func(c *gin.Context) {
		store, err := mgr.Start(c.Request.Context(), c.Writer, c.Request)
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "session start failed", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
			return
		}
		storage := backend.NewCookieStorage(store)
		c.Set(storageKey, storage)
		c.Set(clientKey, factory.Client(storage))
		c.Next()
	}
}

// Storage returns the browser storage attached by Session.
func Storage(c *gin.Context) backend.Storage {
	v, _ := c.Get(storageKey)
	st, _ := v.(backend.Storage)
	return st
}

// Client returns the browser's auth client attached by Session.
func Client(c *gin.Context) *backend.AuthClient {
	v, _ := c.Get(clientKey)
	cl, _ := v.(*backend.AuthClient)
	return cl
}
