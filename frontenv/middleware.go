package frontenv

import (
	"errors"
	"io"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultHTMLContentTypes are the Content-Type values that mark a response
// as HTML. Matching is exact.
var DefaultHTMLContentTypes = []string{
	"text/html",
	"text/html; charset=utf-8",
}

// Decision is the interceptor's verdict for one response.
type Decision struct {
	// Transform is true when the body must go through the Injector.
	Transform bool
	// DropContentLength is true when the Content-Length header no longer
	// describes the body and must be removed.
	DropContentLength bool
}

// Decide inspects the headers and status a handler is about to send.
// Only responses whose Content-Type equals one of labels, that carry a
// full body and that are not already content-encoded are transformed.
func Decide(header http.Header, status int, labels []string) Decision {
	if !slices.Contains(labels, header.Get("Content-Type")) {
		return Decision{}
	}
	if !bodyAllowed(status) || status == http.StatusPartialContent {
		return Decision{}
	}
	if ce := header.Get("Content-Encoding"); ce != "" && ce != "identity" {
		return Decision{}
	}
	return Decision{Transform: true, DropContentLength: true}
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

type middlewareConfig struct {
	htmlTypes  []string
	escape     bool
	injectOpts []Option
	metrics    *Metrics
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

// WithHTMLContentTypes replaces DefaultHTMLContentTypes.
func WithHTMLContentTypes(types ...string) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.htmlTypes = slices.Clone(types)
	}
}

// WithEscapedValues makes the middleware inject BuildEscapedScriptBlock
// instead of BuildScriptBlock.
func WithEscapedValues(escape bool) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.escape = escape
	}
}

// WithInjectorOptions passes opts to every Injector the middleware creates.
func WithInjectorOptions(opts ...Option) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.injectOpts = append(c.injectOpts, opts...)
	}
}

// WithMetrics records the outcome of every response in m.
func WithMetrics(m *Metrics) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.metrics = m
	}
}

// Middleware returns an http middleware that injects the environment of
// src into HTML responses produced by the next handler. Non-HTML
// responses are written through untouched, headers included.
func Middleware(src EnvironmentSource, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{
		htmlTypes: DefaultHTMLContentTypes,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			env := src.Environment()
			script := env.ScriptBlock()
			if cfg.escape {
				script = env.EscapedScriptBlock()
			}

			iw := &injectWriter{
				rw:     w,
				cfg:    cfg,
				script: script,
			}
			defer iw.finish(r)

			next.ServeHTTP(iw, r)
		})
	}
}

// injectWriter decides on the first WriteHeader or Write whether the body
// is transformed. Transformed bodies flow through a pipe into a goroutine
// running Injector.Transform, which writes to the real ResponseWriter.
type injectWriter struct {
	rw     http.ResponseWriter
	cfg    *middlewareConfig
	script string

	decided bool
	pw      *io.PipeWriter
	done    chan struct{}
	started time.Time
	result  Result
	err     error

	// mu serializes the transform goroutine's writes with Flush calls
	// coming from the handler.
	mu sync.Mutex
}

func (iw *injectWriter) Header() http.Header {
	return iw.rw.Header()
}

func (iw *injectWriter) WriteHeader(status int) {
	if iw.decided {
		return
	}
	if status >= 100 && status <= 199 && status != http.StatusSwitchingProtocols {
		iw.rw.WriteHeader(status)
		return
	}
	iw.decided = true

	d := Decide(iw.rw.Header(), status, iw.cfg.htmlTypes)
	if d.DropContentLength {
		iw.rw.Header().Del("Content-Length")
	}
	iw.rw.WriteHeader(status)

	if !d.Transform {
		iw.cfg.metrics.observe(outcomeBypassed, 0)
		return
	}

	injector := NewInjector(iw.script, iw.cfg.injectOpts...)
	pr, pw := io.Pipe()
	iw.pw = pw
	iw.done = make(chan struct{})
	iw.started = time.Now()
	go func() {
		defer close(iw.done)
		iw.result, iw.err = injector.Transform(lockedWriter{iw}, pr)
		pr.CloseWithError(iw.err)
	}()
}

func (iw *injectWriter) Write(p []byte) (int, error) {
	if !iw.decided {
		iw.WriteHeader(http.StatusOK)
	}
	if iw.pw == nil {
		return iw.rw.Write(p)
	}
	return iw.pw.Write(p)
}

// Flush forwards to the underlying writer. Bytes of a token the injector
// is still recognizing are not flushed.
func (iw *injectWriter) Flush() {
	f, ok := iw.rw.(http.Flusher)
	if !ok {
		return
	}
	iw.mu.Lock()
	defer iw.mu.Unlock()
	f.Flush()
}

func (iw *injectWriter) Unwrap() http.ResponseWriter {
	return iw.rw
}

// finish closes the pipe and waits for the transform goroutine, so no
// write to the ResponseWriter outlives the handler.
func (iw *injectWriter) finish(r *http.Request) {
	if iw.pw == nil {
		return
	}
	if p := recover(); p != nil {
		iw.pw.CloseWithError(errors.New("frontenv: handler panicked"))
		<-iw.done
		panic(p)
	}
	iw.pw.Close()
	<-iw.done

	elapsed := time.Since(iw.started)
	switch {
	case iw.err != nil:
		iw.cfg.metrics.observe(outcomeError, elapsed)
		log.Debug().Err(iw.err).Str("path", r.URL.Path).Msg("[inject] transform aborted")
	case iw.result.Injected:
		iw.cfg.metrics.observe(outcomeInjected, elapsed)
		log.Debug().Str("path", r.URL.Path).Int64("written", iw.result.Written).Msg("[inject] environment injected")
	case iw.result.Overflow:
		iw.cfg.metrics.observe(outcomeOverflow, elapsed)
		log.Debug().Str("path", r.URL.Path).Msg("[inject] buffer limit reached before <head>")
	default:
		iw.cfg.metrics.observe(outcomeNoHead, elapsed)
		log.Debug().Str("path", r.URL.Path).Msg("[inject] no <head> found")
	}
}

type lockedWriter struct {
	iw *injectWriter
}

func (l lockedWriter) Write(p []byte) (int, error) {
	l.iw.mu.Lock()
	defer l.iw.mu.Unlock()
	return l.iw.rw.Write(p)
}
