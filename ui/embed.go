// Package ui embeds the browser viewer page.
package ui

import (
	_ "embed"
	"net/http"
	"strconv"
)

//go:embed index.html
var indexHTML []byte

// Handler serves the viewer page. It shows the MJPEG preview and edits the
// view through the JSON API.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(indexHTML)))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(indexHTML)
	})
}
