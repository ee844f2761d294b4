// Package web holds the dashboard page and its stylesheet.
package web

import "embed"

// TemplatesFS holds dashboard.html and its "series" and "zones" blocks.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds app.css, served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
