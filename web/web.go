// Package web holds the admin console templates, embedded in the binary.
package web

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/template/html/v2"
)

//go:embed templates/*.html
var templates embed.FS

// Engine returns a view engine over the embedded templates.
func Engine() *html.Engine {
	sub, err := fs.Sub(templates, "templates")
	if err != nil {
		panic(err)
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	// won renders an amount as 22,000.
	engine.AddFunc("won", humanize.Comma)
	return engine
}
