package main

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/frontenv/utils"
)

// Frontend serves a built single page application from distFS.
type Frontend struct {
	distFS   fs.FS
	index    string
	notFound string
}

// NewFrontend returns a Frontend serving distFS. index is served for "/"
// and for extensionless paths that do not exist; notFound is served with
// status 404 for other missing files.
func NewFrontend(distFS fs.FS, index, notFound string) *Frontend {
	return &Frontend{
		distFS:   distFS,
		index:    index,
		notFound: notFound,
	}
}

func (f *Frontend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	f.ServeStatic(w, r, strings.TrimPrefix(r.URL.Path, "/"))
}

// ServeStatic serves p, falling back to the index for client-side routes
// and to the not-found page for missing assets.
func (f *Frontend) ServeStatic(w http.ResponseWriter, r *http.Request, p string) {
	// Prevent directory traversal
	if strings.Contains(p, "..") {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	p = strings.TrimSuffix(p, "/")
	if p == "" {
		p = f.index
	}

	if f.serveFile(w, r, p, http.StatusOK) {
		return
	}
	if f.serveFile(w, r, path.Join(p, f.index), http.StatusOK) {
		return
	}

	if path.Ext(p) == "" {
		log.Debug().Str("path", p).Msg("[frontend] unknown route, serving index")
		if f.serveFile(w, r, f.index, http.StatusOK) {
			return
		}
	}

	log.Debug().Str("path", p).Msg("[frontend] static file not found")
	if f.notFound != "" && f.serveFile(w, r, f.notFound, http.StatusNotFound) {
		return
	}
	http.NotFound(w, r)
}

// serveFile writes the file at p with status and reports whether it
// existed. Directories count as missing.
func (f *Frontend) serveFile(w http.ResponseWriter, r *http.Request, p string, status int) bool {
	if !fs.ValidPath(p) {
		return false
	}
	file, err := f.distFS.Open(p)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", p).Msg("[frontend] failed to open file")
		}
		return false
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		log.Error().Err(err).Str("path", p).Msg("[frontend] failed to stat file")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return true
	}
	if info.IsDir() {
		return false
	}

	ct := utils.GetContentType(path.Ext(p))
	if ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if utils.IsHTMLContentType(ct) {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=3600")
	}
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return true
	}

	n, err := io.Copy(w, file)
	if err != nil {
		log.Debug().Err(err).Str("path", p).Int64("written", n).Msg("[frontend] copy aborted")
		return true
	}

	log.Debug().
		Str("path", p).
		Int64("size", info.Size()).
		Int("status", status).
		Msg("[frontend] served static file")
	return true
}
