package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/frontenv/frontenv"
	"github.com/gosuda/frontenv/frontenv/envload"
)

const testScriptBlock = "<script>\nwindow.API_URL = \"http://x\";\n</script>"

type routerTestHarness struct {
	handler http.Handler
	store   *envload.Store
}

func newRouterTestHarness(t *testing.T, opts serverOptions) *routerTestHarness {
	t.Helper()

	store := envload.NewStore(frontenv.NewEnvironment(map[string]string{"API_URL": "http://x"}))
	return &routerTestHarness{
		handler: newRouter(newTestFrontend(), store, opts),
		store:   store,
	}
}

func (h *routerTestHarness) serve(method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func injectedIndex(script string) string {
	return strings.Replace(testIndexHTML, "<head>", "<head>"+script, 1)
}

func TestRouterInjectsEnvironment(t *testing.T) {
	t.Parallel()

	h := newRouterTestHarness(t, serverOptions{MaxBuffer: frontenv.DefaultMaxBuffer})

	rec := h.serve(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, injectedIndex(testScriptBlock), rec.Body.String())
	assert.Empty(t, rec.Header().Get("Content-Length"))

	rec = h.serve(http.MethodGet, "/some/client/route", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, injectedIndex(testScriptBlock), rec.Body.String())

	rec = h.serve(http.MethodGet, "/assets/missing.png", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, strings.Replace(testNotFoundHTML, "<head>", "<head>"+testScriptBlock, 1), rec.Body.String())
}

func TestRouterLeavesAssetsAlone(t *testing.T) {
	t.Parallel()

	h := newRouterTestHarness(t, serverOptions{})

	rec := h.serve(http.MethodGet, "/assets/app.js", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testAppJS, rec.Body.String())
	assert.Equal(t, strconv.Itoa(len(testAppJS)), rec.Header().Get("Content-Length"))

	rec = h.serve(http.MethodGet, "/assets/logo.svg", nil)
	assert.NotContains(t, rec.Body.String(), "<script>")
}

func TestRouterReloadedEnvironment(t *testing.T) {
	t.Parallel()

	h := newRouterTestHarness(t, serverOptions{})
	h.store.Set(frontenv.NewEnvironment(map[string]string{"API_URL": "http://y", "MODE": "prod"}))

	rec := h.serve(http.MethodGet, "/", nil)
	assert.Equal(t, injectedIndex("<script>\nwindow.API_URL = \"http://y\";\nwindow.MODE = \"prod\";\n</script>"), rec.Body.String())
}

func TestRouterEscapedValues(t *testing.T) {
	t.Parallel()

	h := newRouterTestHarness(t, serverOptions{Escape: true})
	h.store.Set(frontenv.NewEnvironment(map[string]string{"MSG": "</script>"}))

	rec := h.serve(http.MethodGet, "/", nil)
	assert.Equal(t, injectedIndex("<script>\nwindow.MSG = \"\\u003c/script>\";\n</script>"), rec.Body.String())

	rec = h.serve(http.MethodGet, "/env.js", nil)
	assert.Equal(t, "window.MSG = \"\\u003c/script>\";\n", rec.Body.String())
}

func TestRouterEnvJS(t *testing.T) {
	t.Parallel()

	h := newRouterTestHarness(t, serverOptions{})

	rec := h.serve(http.MethodGet, "/env.js", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "window.API_URL = \"http://x\";\n", rec.Body.String())
	assert.Equal(t, "application/javascript; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = h.serve(http.MethodOptions, "/env.js", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestRouterHealthz(t *testing.T) {
	t.Parallel()

	rec := newRouterTestHarness(t, serverOptions{}).serve(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouterCompression(t *testing.T) {
	t.Parallel()

	h := newRouterTestHarness(t, serverOptions{CompressLevel: 5})

	rec := h.serve(http.MethodGet, "/", http.Header{"Accept-Encoding": {"gzip"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	gr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	defer gr.Close()
	body, err := io.ReadAll(gr)
	require.NoError(t, err)
	assert.Equal(t, injectedIndex(testScriptBlock), string(body))
}

func TestRouterMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := frontenv.NewMetrics(reg)
	require.NoError(t, err)

	opts := serverOptions{
		Metrics:         true,
		MetricsGatherer: reg,
		InjectMetrics:   m,
	}
	h := newRouterTestHarness(t, opts)
	h.serve(http.MethodGet, "/", nil)
	h.serve(http.MethodGet, "/assets/app.js", nil)

	// httptest requests come from 192.0.2.1, a public test address.
	rec := h.serve(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.serve(http.MethodGet, "/metrics", http.Header{"X-Real-Ip": {"127.0.0.1"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `frontenv_responses_total{outcome="injected"} 1`)
	assert.Contains(t, rec.Body.String(), `frontenv_responses_total{outcome="bypassed"} 1`)

	opts.MetricsPublic = true
	rec = newRouterTestHarness(t, opts).serve(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterMetricsDisabled(t *testing.T) {
	t.Parallel()

	rec := newRouterTestHarness(t, serverOptions{}).serve(http.MethodGet, "/metrics", nil)
	assert.NotContains(t, rec.Body.String(), "frontenv_responses_total")
}
