package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/frontenv/frontenv"
	"github.com/gosuda/frontenv/utils"
)

type serverOptions struct {
	Escape          bool
	HTMLTypes       []string
	MaxBuffer       int
	CompressLevel   int // 0 disables compression
	Metrics         bool
	MetricsPublic   bool
	MetricsGatherer prometheus.Gatherer
	InjectMetrics   *frontenv.Metrics
}

// newRouter wires the frontend behind the environment interceptor.
func newRouter(frontend *Frontend, envSrc frontenv.EnvironmentSource, opts serverOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if opts.CompressLevel > 0 {
		r.Use(utils.NewCompressor(opts.CompressLevel))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{\"status\":\"ok\"}"))
	})

	r.Get("/env.js", envJSHandler(envSrc, opts.Escape))
	r.Options("/env.js", func(w http.ResponseWriter, r *http.Request) {
		utils.SetCORSHeaders(w)
		w.WriteHeader(http.StatusOK)
	})

	if opts.Metrics && opts.MetricsGatherer != nil {
		metricsHandler := promhttp.HandlerFor(opts.MetricsGatherer, promhttp.HandlerOpts{})
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			if !opts.MetricsPublic && !utils.IsLocalhost(r) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			metricsHandler.ServeHTTP(w, r)
		})
	}

	mwOpts := []frontenv.MiddlewareOption{
		frontenv.WithEscapedValues(opts.Escape),
		frontenv.WithInjectorOptions(frontenv.WithMaxBuffer(opts.MaxBuffer)),
		frontenv.WithMetrics(opts.InjectMetrics),
	}
	if len(opts.HTMLTypes) > 0 {
		mwOpts = append(mwOpts, frontenv.WithHTMLContentTypes(opts.HTMLTypes...))
	}

	r.Group(func(r chi.Router) {
		r.Use(frontenv.Middleware(envSrc, mwOpts...))
		r.Handle("/*", frontend)
	})

	return r
}

// envJSHandler serves the environment as a standalone script for pages
// that are not served through the interceptor.
func envJSHandler(envSrc frontenv.EnvironmentSource, escape bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.SetCORSHeaders(w)
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(frontenv.ScriptBody(envSrc.Environment(), escape)))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Msg("[server] request")
		}()
		next.ServeHTTP(ww, r)
	})
}

// serveHTTP starts an HTTP server on addr and returns it. cancel is called
// if the listener fails.
func serveHTTP(addr string, handler http.Handler, cancel context.CancelFunc) *http.Server {
	if addr == "" {
		addr = ":0"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Msgf("[server] http: %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("[server] http error")
			cancel()
		}
	}()

	return srv
}
