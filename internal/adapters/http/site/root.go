// Package site serves the embedded progress dashboard.
package site

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Register attaches the dashboard at / to r.
func Register(r chi.Router) {
	if r == nil {
		panic("router is nil")
	}
	files := http.FileServer(FS())
	r.Handle("/", files)
	r.Handle("/assets/*", files)
}
