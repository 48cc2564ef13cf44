package http

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"

	"github.com/labstack/echo/v4"
)

// TemplateRenderer implements echo.Renderer over html/template.
type TemplateRenderer struct {
	templates *template.Template
}

// NewTemplateRenderer parses every file matching patterns in fsys.
func NewTemplateRenderer(fsys fs.FS, patterns ...string) (*TemplateRenderer, error) {
	t, err := template.ParseFS(fsys, patterns...)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &TemplateRenderer{templates: t}, nil
}

func (r *TemplateRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

// Execute renders a named template outside of a request (e.g. websocket pushes).
func (r *TemplateRenderer) Execute(w io.Writer, name string, data interface{}) error {
	return r.templates.ExecuteTemplate(w, name, data)
}
