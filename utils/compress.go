package utils

import (
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzip"
)

// CompressibleTypes are the content types NewCompressor encodes.
var CompressibleTypes = []string{
	"text/html",
	"text/css",
	"text/plain",
	"text/javascript",
	"application/javascript",
	"application/json",
	"application/manifest+json",
	"application/wasm",
	"image/svg+xml",
}

// NewCompressor returns a chi compression middleware that prefers brotli
// and falls back to gzip.
func NewCompressor(level int) func(http.Handler) http.Handler {
	c := middleware.NewCompressor(level, CompressibleTypes...)
	c.SetEncoder("gzip", func(w io.Writer, level int) io.Writer {
		gw, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil
		}
		return gw
	})
	c.SetEncoder("br", func(w io.Writer, level int) io.Writer {
		return brotli.NewWriterLevel(w, level)
	})
	return c.Handler
}
