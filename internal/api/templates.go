package api

import (
	"embed"
	"html/template"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"
)

//go:embed templates/*
var templateFS embed.FS

// newTemplates creates and parses the HTML templates with custom functions.
func newTemplates() *template.Template {
	funcs := template.FuncMap{
		"ago": func(t time.Time) string {
			if t.IsZero() {
				return "never"
			}
			return humanize.Time(t)
		},
		// placeholder is the fallback image URL for a plot slot.
		"placeholder": func(base, caption string) string {
			return base + "?" + url.Values{"caption": {caption}}.Encode()
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}
