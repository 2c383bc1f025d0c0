package httpadapter

import (
	_ "embed"
	"net/http"
)

//go:embed index.html
var indexPage []byte

// ui serves the built-in single-page chat client.
func (rt *Router) ui(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(indexPage)
}
