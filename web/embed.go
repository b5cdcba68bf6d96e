// Package web embeds the dashboard templates and the static assets served
// under /static/.
package web

import "embed"

// TemplatesFS holds index.html and the article partial.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds tour.js and app.css.
//
//go:embed static/*
var StaticFS embed.FS
