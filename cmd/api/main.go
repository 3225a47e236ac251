package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-session/session/v3"

	"evenup_web/internal/backend"
	"evenup_web/internal/backend/gotrue"
	"evenup_web/internal/backend/localauth"
	"evenup_web/internal/config"
	"evenup_web/internal/db"
	httpserver "evenup_web/internal/http"
	"evenup_web/internal/logger"
	"evenup_web/internal/mail"
	"evenup_web/internal/store"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	l := logger.New(cfg.Log, os.Stdout)
	slog.SetDefault(l)

	gdb, err := db.Connect(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(gdb); err != nil {
			log.Fatalf("❌ Auto-migrate failed: %v", err)
		}
	}

	profiles := store.NewProfileStore(gdb)
	tokens := backend.NewTokens(cfg.Auth.JWTSecret)

	api, closeAPI, err := authAPI(cfg, profiles, tokens, l)
	if err != nil {
		log.Fatalf("❌ Auth provider: %v", err)
	}
	defer closeAPI()

	sessions := session.NewManager(
		session.SetCookieName(cfg.Session.CookieName),
		session.SetSecure(cfg.Session.Secure),
		session.SetExpired(int64(cfg.Session.TTL.Seconds())),
	)

	r, err := httpserver.NewRouter(httpserver.Deps{
		BasePath: cfg.BasePath,
		Links:    cfg.Links,
		Sessions: sessions,
		Auth:     backend.NewClientFactory(api, tokens, backend.NewHub()),
		Roles:    store.NewRoleStore(gdb),
		Profiles: profiles,
		Logs:     store.NewLogStore(gdb),
		Metrics:  store.NewDashboardStore(gdb),
		Logger:   l,
	})
	if err != nil {
		log.Fatalf("❌ Router: %v", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.AppPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		l.Info("🚀 Server listening", "addr", srv.Addr, "base_path", cfg.BasePath, "auth", cfg.Auth.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("shutdown failed", "error", err)
	}
	l.Info("server stopped")
}

// authAPI builds the configured identity provider. The returned func
// releases anything the provider holds open.
func authAPI(cfg config.Config, profiles *store.ProfileStore, tokens *backend.Tokens, l *slog.Logger) (backend.AuthAPI, func(), error) {
	if cfg.Auth.Provider == "gotrue" {
		return gotrue.New(cfg.Auth.URL, cfg.Auth.AnonKey), func() {}, nil
	}

	codes, err := localauth.OpenCodeStore(cfg.Auth.CodeStore)
	if err != nil {
		return nil, nil, err
	}
	sender, err := mail.New(mail.Config{
		Driver:   cfg.Mail.Driver,
		From:     cfg.Mail.From,
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
	}, l)
	if err != nil {
		_ = codes.Close()
		return nil, nil, err
	}

	lc := localauth.DefaultConfig()
	if cfg.Auth.CodeTTL > 0 {
		lc.CodeTTL = cfg.Auth.CodeTTL
	}
	l.Warn("using local auth provider", "code_store", cfg.Auth.CodeStore, "mail", cfg.Mail.Driver)
	return localauth.New(profiles, codes, sender, tokens, lc), func() { _ = codes.Close() }, nil
}
