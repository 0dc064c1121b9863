package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Renderer executes the page templates. Templates are parsed once.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("view: parsing templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// Render writes page to w.
func (r *Renderer) Render(w io.Writer, page Page) error {
	return r.templates.ExecuteTemplate(w, "base", page)
}
