package config

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"evenup_web/internal/logger"
)

// GitHubPagesBasePath is the path prefix used when the portal is served
// under the project's GitHub Pages site.
const GitHubPagesBasePath = "/evenup-web"

type Config struct {
	Env      string         `koanf:"env"`
	AppPort  string         `koanf:"port"`
	BasePath string         `koanf:"base_path"`
	Log      logger.Config  `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Session  SessionConfig  `koanf:"session"`
	Mail     MailConfig     `koanf:"mail"`
	Links    LinksConfig    `koanf:"links"`
}

type DatabaseConfig struct {
	Driver      string `koanf:"driver"` // postgres or mysql
	DSN         string `koanf:"dsn"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

// AuthConfig selects the identity provider. "gotrue" talks to the hosted
// auth service, "local" issues codes and tokens in-process.
type AuthConfig struct {
	Provider  string        `koanf:"provider"`
	URL       string        `koanf:"url"`
	AnonKey   string        `koanf:"anon_key"`
	JWTSecret string        `koanf:"jwt_secret"`
	CodeStore string        `koanf:"code_store"` // memory, buntdb:<path>, valkey:<addr>
	CodeTTL   time.Duration `koanf:"code_ttl"`
}

type SessionConfig struct {
	CookieName string        `koanf:"cookie_name"`
	Secure     bool          `koanf:"secure"`
	TTL        time.Duration `koanf:"ttl"`
}

type MailConfig struct {
	Driver   string `koanf:"driver"` // console, smtp, noop
	From     string `koanf:"from"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// LinksConfig holds the mobile app deep-link targets.
type LinksConfig struct {
	AppScheme    string `koanf:"app_scheme"`
	PlayStoreURL string `koanf:"play_store_url"`
}

func Defaults() Config {
	return Config{
		Env:     "local",
		AppPort: "8080",
		Log:     logger.Config{Level: "info", Format: "json"},
		Database: DatabaseConfig{
			Driver: "postgres",
		},
		Auth: AuthConfig{
			Provider:  "gotrue",
			CodeStore: "memory",
			CodeTTL:   10 * time.Minute,
		},
		Session: SessionConfig{
			CookieName: "evenup_admin",
			TTL:        7 * 24 * time.Hour,
		},
		Mail: MailConfig{
			Driver: "console",
			From:   "EvenUp <no-reply@evenup.in>",
			Port:   587,
		},
		Links: LinksConfig{
			AppScheme:    "evenup",
			PlayStoreURL: "https://play.google.com/store/apps/details?id=in.evenup.app",
		},
	}
}

// Load reads, in order of increasing precedence: built-in defaults,
// config/config.yaml (or CONFIG_FILE), EVENUP_ environment variables with
// "__" separating nested keys, and finally the legacy flat variables.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ .env file not found, using system environment variables")
	} else {
		log.Println("✅ .env file loaded successfully!")
	}

	cfg, err := load(os.Getenv)
	if err != nil {
		log.Printf("config: %v", err)
	}
	return cfg
}

func load(getenv func(string) string) (Config, error) {
	k := koanf.New(".")
	cfg := Defaults()
	var errs []error

	path := getenv("CONFIG_FILE")
	if path == "" {
		path = filepath.Join("config", "config.yaml")
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			errs = append(errs, err)
		}
	}

	// EVENUP_AUTH__JWT_SECRET -> auth.jwt_secret
	if err := k.Load(env.Provider("EVENUP_", "__", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "EVENUP_"))
	}), nil); err != nil {
		errs = append(errs, err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		errs = append(errs, err)
	}
	applyLegacyEnv(&cfg, getenv)
	return cfg, errors.Join(errs...)
}

// applyLegacyEnv fills settings still unset from the variable names used
// by earlier deployments.
func applyLegacyEnv(cfg *Config, getenv func(string) string) {
	fallback := func(dst *string, keys ...string) {
		if *dst != "" {
			return
		}
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	fallback(&cfg.Database.DSN, "DATABASE_URL", "MYSQL_DSN")
	fallback(&cfg.Auth.URL, "SUPABASE_URL", "NEXT_PUBLIC_SUPABASE_URL")
	fallback(&cfg.Auth.AnonKey, "SUPABASE_ANON_KEY", "NEXT_PUBLIC_SUPABASE_ANON_KEY")
	fallback(&cfg.Auth.JWTSecret, "SUPABASE_JWT_SECRET", "JWT_SECRET")
	if v := getenv("APP_PORT"); v != "" && getenv("EVENUP_PORT") == "" {
		cfg.AppPort = v
	}
	if cfg.Database.DSN != "" && getenv("MYSQL_DSN") == cfg.Database.DSN && getenv("EVENUP_DATABASE__DRIVER") == "" {
		cfg.Database.Driver = "mysql"
	}
	if cfg.BasePath == "" && strings.EqualFold(getenv("GITHUB_PAGES"), "true") {
		cfg.BasePath = GitHubPagesBasePath
	}
	cfg.BasePath = strings.TrimRight(cfg.BasePath, "/")
	if cfg.Auth.JWTSecret == "" && cfg.Env == "local" {
		cfg.Auth.JWTSecret = "dev-secret-only"
	}
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database dsn not set (EVENUP_DATABASE__DSN or DATABASE_URL)"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth jwt secret not set (EVENUP_AUTH__JWT_SECRET or SUPABASE_JWT_SECRET)"))
	}
	switch c.Auth.Provider {
	case "gotrue":
		if c.Auth.URL == "" || c.Auth.AnonKey == "" {
			errs = append(errs, errors.New("gotrue provider needs auth url and anon key"))
		}
	case "local":
	default:
		errs = append(errs, errors.New("unknown auth provider "+c.Auth.Provider))
	}
	if c.BasePath != "" && !strings.HasPrefix(c.BasePath, "/") {
		errs = append(errs, errors.New("base path must start with /"))
	}
	return errors.Join(errs...)
}
