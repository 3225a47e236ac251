// Package ui embeds the portal's HTML templates and static assets.
package ui

import (
	"embed"
	"html/template"
	"io/fs"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed views/*.tmpl
var views embed.FS

//go:embed static
var static embed.FS

// Static returns the embedded static assets rooted at static/.
func Static() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

var printer = message.NewPrinter(language.English)

// Funcs are the template helpers. basePath prefixes every internal link.
func Funcs(basePath string) template.FuncMap {
	return template.FuncMap{
		"url": func(p string) string { return basePath + p },
		"num": func(n int64) string { return printer.Sprintf("%d", n) },
		"datetime": func(t any) string {
			switch v := t.(type) {
			case time.Time:
				if v.IsZero() {
					return "-"
				}
				return v.Local().Format("2 Jan 2006, 15:04:05")
			case *time.Time:
				if v == nil || v.IsZero() {
					return "-"
				}
				return v.Local().Format("2 Jan 2006, 15:04:05")
			default:
				return "-"
			}
		},
		"deref": func(s *string) string {
			if s == nil || *s == "" {
				return "-"
			}
			return *s
		},
		"severityTone": SeverityTone,
		"roleTone":     RoleTone,
		"navActive":    NavActive,
		"add":          func(a, b int) int { return a + b },
	}
}

// Templates parses every view with Funcs(basePath).
func Templates(basePath string) (*template.Template, error) {
	return template.New("").Funcs(Funcs(basePath)).ParseFS(views, "views/*.tmpl")
}

// SeverityTone is the CSS tone of a log row.
func SeverityTone(severity string) string {
	switch severity {
	case "critical":
		return "tone-critical"
	case "high":
		return "tone-high"
	case "medium":
		return "tone-medium"
	default:
		return "tone-low"
	}
}

// RoleTone is the CSS class of a role badge.
func RoleTone(role string) string {
	switch role {
	case "owner":
		return "badge-owner"
	case "admin":
		return "badge-admin"
	default:
		return "badge-viewer"
	}
}

// NavActive reports whether the nav link href is the current page. The
// dashboard link only matches exactly; the others also match sub-paths.
func NavActive(current, href string) bool {
	if current == href {
		return true
	}
	return href != "/admin" && strings.HasPrefix(current, href+"/")
}
