package httpapi

import (
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// spaHandler serves files from a built frontend. Unknown paths get the
// index page so client-side routes survive a reload; missing /static/
// assets are a plain 404.
type spaHandler struct {
	dir   string
	index string
	log   *slog.Logger
}

func newSPAHandler(dir, index string, log *slog.Logger) *spaHandler {
	if index == "" {
		index = "index.html"
	}
	return &spaHandler{dir: dir, index: index, log: log}
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := path.Clean("/" + r.URL.Path)
	if p != "/" && serveFile(w, r, filepath.Join(h.dir, filepath.FromSlash(p))) {
		return
	}
	if strings.HasPrefix(p, "/static/") {
		writeJSONStatus(h.log, w, http.StatusNotFound, ErrorResponse{Error: "not found"})
		return
	}
	if !serveFile(w, r, filepath.Join(h.dir, h.index)) {
		writeJSONStatus(h.log, w, http.StatusNotFound, ErrorResponse{Error: "frontend not built"})
	}
}

// serveFile serves a regular file and reports whether it existed.
func serveFile(w http.ResponseWriter, r *http.Request, name string) bool {
	f, err := os.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		return false
	}
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
	return true
}
