// Package view renders the embedded HTML templates used for proposal
// documents and outbound email.
package view

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/constructa/propostas/internal/format"
	"github.com/constructa/propostas/web"
)

// Engine renders HTML templates by file name, e.g. "proposal.html".
type Engine struct {
	templates *template.Template
}

// Funcs are the helpers available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"brl":      format.BRL,
		"percent":  format.Percent,
		"date":     format.Date,
		"dateTime": format.DateTime,
		"longDate": format.LongDate,
		"day":      format.Day,
		"longDay":  format.LongDay,
		"number":   format.Number,
		"qty": func(v float64) string {
			if v == float64(int64(v)) {
				return format.Number(v, 0)
			}
			return strings.TrimRight(strings.TrimRight(format.Number(v, 3), "0"), ",")
		},
		"upper": strings.ToUpper,
		"year":  func(t time.Time) int { return format.Local(t).Year() },
		"lines": func(s string) []string {
			return strings.Split(strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n")), "\n")
		},
	}
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	tpl, err := template.New("root").Funcs(Funcs()).ParseFS(web.Templates,
		"templates/proposals/*.html",
		"templates/mail/*.html",
	)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Engine{templates: tpl}, nil
}

// Render executes the named template into a string.
func (e *Engine) Render(name string, data any) (string, error) {
	if e == nil {
		return "", fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
