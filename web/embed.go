// Package web holds the pages and browser assets of the viewer.
package web

import "embed"

// Templates holds the layout, the index and viewer pages, and the htmx
// partials for the assignment list and solution tabs
//
//go:embed templates/*.html templates/partials/*.html
var Templates embed.FS

// Static holds the Leaflet map renderer and the stylesheet, served under /static/
//
//go:embed static/css/app.css static/js/map.js
var Static embed.FS
