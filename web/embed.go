package web

import (
	"embed"
	"io/fs"
)

// StaticFS holds the single page client.
//
//go:embed static
var StaticFS embed.FS

// Static returns the client assets rooted at static/.
func Static() (fs.FS, error) {
	return fs.Sub(StaticFS, "static")
}
