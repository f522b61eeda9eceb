// Package ui embeds the server-rendered admin console templates.
package ui

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var files embed.FS

// Templates holds the parsed console pages, looked up by file name
// ("login.html", "dashboard.html").
var Templates = template.Must(template.ParseFS(files, "templates/*.html"))
