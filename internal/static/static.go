package static

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed web/*
var content embed.FS

// FileSystem returns an http.FileSystem for the embedded web UI.
func FileSystem() http.FileSystem {
	fsys, err := fs.Sub(content, "web")
	if err != nil {
		panic(err)
	}
	return http.FS(fsys)
}

// Handler serves the embedded web UI. Paths without an extension are
// rewritten to their .html counterpart so links like /reset-password work.
func Handler() http.Handler {
	fileServer := http.FileServer(FileSystem())
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/reset-password":
			r.URL.Path = "/reset-password.html"
		case "/account":
			r.URL.Path = "/account.html"
		}
		fileServer.ServeHTTP(w, r)
	})
}
