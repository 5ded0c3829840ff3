// Package web embeds the browser client served by the HTTP layer.
package web

import "embed"

//go:embed templates/*.html
var Templates embed.FS

//go:embed static
var Static embed.FS
