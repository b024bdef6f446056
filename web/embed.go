// Package web holds the tracker's HTML templates and browser assets.
package web

import "embed"

// TemplatesFS holds the page, month, editor and login templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds app.js and app.css, served under /static/.
//
//go:embed static/*.js static/*.css
var StaticFS embed.FS
