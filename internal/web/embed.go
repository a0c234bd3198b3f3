// Package web serves the embedded single-page frontend.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed dist/*
var staticFiles embed.FS

// FileSystem returns the embedded filesystem with the dist folder as root.
func FileSystem() (fs.FS, error) {
	return fs.Sub(staticFiles, "dist")
}

// Handler serves embedded files. Paths that match no file get index.html so the
// frontend can route them.
func Handler() (http.Handler, error) {
	staticFS, err := FileSystem()
	if err != nil {
		return nil, err
	}
	index, err := fs.ReadFile(staticFS, "index.html")
	if err != nil {
		return nil, err
	}
	fileServer := http.FileServer(http.FS(staticFS))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" || name == "index.html" || !isFile(staticFS, name) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			_, _ = w.Write(index)
			return
		}
		fileServer.ServeHTTP(w, r)
	}), nil
}

func isFile(fsys fs.FS, name string) bool {
	st, err := fs.Stat(fsys, name)
	return err == nil && !st.IsDir()
}
