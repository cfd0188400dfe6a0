// Package web holds the embedded page templates and the board's static
// assets (stylesheet and the drag, resize and zoom script).
package web

import (
	"embed"
	"io/fs"
)

//go:embed static templates
var content embed.FS

// StaticFS returns the static asset file system served under /static/.
func StaticFS() (fs.FS, error) {
	return fs.Sub(content, "static")
}

// TemplatesFS returns the templates file system.
func TemplatesFS() (fs.FS, error) {
	return fs.Sub(content, "templates")
}
