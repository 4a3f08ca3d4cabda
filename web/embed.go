// Package web holds the HTML templates and static assets served by the
// MoneyWise web server.
package web

import "embed"

// FS embeds templates/*.html and static/*.
//
//go:embed templates static
var FS embed.FS
