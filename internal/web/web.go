// Package web holds the screens rendered into the desktop window.
package web

import (
	"embed"
	"html/template"
	"io/fs"

	"github.com/ErlanBelekov/backup-desk/internal/password"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var funcs = template.FuncMap{
	"meterWidth":   password.Width,
	"meterMessage": password.Message,
	"showMeter":    password.ShowMeter,
}

// Templates parses every screen. Each screen is a named template that
// pulls in the shared "head" and "foot" blocks.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}

// Static is the asset tree served under /static/.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
