package notify

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// MessageKind selects which template a notification is rendered with.
type MessageKind string

// Message kinds.
const (
	KindEmergency  MessageKind = "emergency"
	KindLockdown   MessageKind = "lockdown"
	KindEvacuation MessageKind = "evacuation"
	KindAllClear   MessageKind = "all_clear"
)

// TemplateData is the context handed to notification templates.
type TemplateData struct {
	IncidentID     string
	Category       string
	Priority       string
	Title          string
	Location       string
	Level          string
	Areas          []string
	Zones          []string
	Routes         []string
	AssemblyPoints []string
	GeneratedAt    time.Time
}

// Renderer renders notification subjects and bodies from embedded templates.
type Renderer struct {
	templates map[MessageKind]*template.Template
}

// NewRenderer loads all message templates.
func NewRenderer() (*Renderer, error) {
	titleCaser := cases.Title(language.English)
	funcMap := template.FuncMap{
		"title": func(s string) string {
			return titleCaser.String(strings.ReplaceAll(s, "_", " "))
		},
		"upper":      strings.ToUpper,
		"join":       strings.Join,
		"formatTime": func(t time.Time) string { return t.Format("15:04 MST, 2 Jan 2006") },
	}

	r := &Renderer{templates: make(map[MessageKind]*template.Template)}

	for _, kind := range []MessageKind{KindEmergency, KindLockdown, KindEvacuation, KindAllClear} {
		name := string(kind) + ".tmpl"
		tmpl, err := template.New(name).Funcs(funcMap).ParseFS(templatesFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[kind] = tmpl
	}

	return r, nil
}

// Render produces the subject and body for a message kind. The first line of
// the rendered template is the subject, the remainder the body.
func (r *Renderer) Render(kind MessageKind, data TemplateData) (subject, body string, err error) {
	tmpl, ok := r.templates[kind]
	if !ok {
		return "", "", fmt.Errorf("no template for message kind %q", kind)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", kind, err)
	}

	subject, body, found := strings.Cut(buf.String(), "\n")
	if !found {
		return "", "", fmt.Errorf("template %s produced no body", kind)
	}
	return strings.TrimSpace(subject), strings.TrimSpace(body), nil
}
