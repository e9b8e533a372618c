package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/frontenv/frontenv"
	"github.com/gosuda/frontenv/frontenv/envload"
	"github.com/gosuda/frontenv/utils"
)

var rootCmd = &cobra.Command{
	Use:   "frontenv-server",
	Short: "Serve a single page application with runtime configuration injected into its HTML",
	RunE:  runServer,
}

var (
	// Server
	flagAddr     string
	flagDist     string
	flagIndex    string
	flagNotFound string
	flagCompress int

	// Environment
	flagEnvFile   string
	flagEnvPrefix string
	flagVars      []string
	flagWatch     bool

	// Injection
	flagEscape    bool
	flagHTMLTypes []string
	flagMaxBuffer int

	// Metrics
	flagMetrics       bool
	flagMetricsPublic bool

	// Logging
	flagLogLevel string
	flagLogFile  string
	flagLogJSON  bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagAddr, "addr", envOrDefault("FRONTENV_ADDR", ":8080"), "HTTP listen address (env: FRONTENV_ADDR)")
	flags.StringVar(&flagDist, "dist", envOrDefault("FRONTENV_DIST", "./public"), "directory with the built frontend (env: FRONTENV_DIST)")
	flags.StringVar(&flagIndex, "index", "index.html", "page served for / and client-side routes")
	flags.StringVar(&flagNotFound, "not-found", "404.html", "page served with status 404 for missing assets")
	flags.IntVar(&flagCompress, "compress", envIntOrDefault("FRONTENV_COMPRESS", 5), "brotli/gzip compression level, 0 disables (env: FRONTENV_COMPRESS)")

	flags.StringVar(&flagEnvFile, "env-file", os.Getenv("FRONTENV_ENV_FILE"), ".env, .yaml or .json file with frontend variables (env: FRONTENV_ENV_FILE)")
	flags.StringVar(&flagEnvPrefix, "env-prefix", envOrDefault("FRONTENV_PREFIX", "FRONTEND_"), "expose process variables with this prefix, prefix stripped (env: FRONTENV_PREFIX)")
	flags.StringArrayVar(&flagVars, "var", nil, "frontend variable as KEY=VALUE, repeatable")
	flags.BoolVar(&flagWatch, "watch", parseBoolEnv("FRONTENV_WATCH"), "reload the env file when it changes (env: FRONTENV_WATCH)")

	flags.BoolVar(&flagEscape, "escape-values", parseBoolEnv("FRONTENV_ESCAPE"), "escape values for use inside <script> (env: FRONTENV_ESCAPE)")
	flags.StringSliceVar(&flagHTMLTypes, "html-type", utils.ParseList(os.Getenv("FRONTENV_HTML_TYPES")), "Content-Type values treated as HTML, exact match (env: FRONTENV_HTML_TYPES)")
	flags.IntVar(&flagMaxBuffer, "max-buffer", frontenv.DefaultMaxBuffer, "max bytes of one token held while looking for <head>, 0 = unlimited")

	flags.BoolVar(&flagMetrics, "metrics", parseBoolEnv("FRONTENV_METRICS"), "expose Prometheus metrics on /metrics (env: FRONTENV_METRICS)")
	flags.BoolVar(&flagMetricsPublic, "metrics-public", false, "serve /metrics to non-local clients")

	flags.StringVar(&flagLogLevel, "log-level", envOrDefault("LOG_LEVEL", "info"), "log level (env: LOG_LEVEL)")
	flags.StringVar(&flagLogFile, "log-file", os.Getenv("LOG_FILE"), "also write logs to this rotated file (env: LOG_FILE)")
	flags.BoolVar(&flagLogJSON, "log-json", parseBoolEnv("LOG_JSON"), "log JSON instead of console format (env: LOG_JSON)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute root command")
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	logCloser, err := utils.SetupLogger(utils.LogConfig{
		Level: flagLogLevel,
		File:  flagLogFile,
		JSON:  flagLogJSON,
	})
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envCfg := envload.Config{
		File:   flagEnvFile,
		Prefix: flagEnvPrefix,
		Vars:   flagVars,
	}
	env, err := envload.Load(envCfg)
	if err != nil {
		return fmt.Errorf("load frontend environment: %w", err)
	}
	store := envload.NewStore(env)

	log.Info().
		Str("dist", flagDist).
		Str("env_file", flagEnvFile).
		Str("env_prefix", flagEnvPrefix).
		Strs("vars", env.Keys()).
		Msg("[server] frontend configuration")

	if flagWatch && flagEnvFile != "" {
		go func() {
			if err := envload.Watch(ctx, store, envCfg, envload.DefaultDebounce); err != nil {
				log.Error().Err(err).Msg("[envload] watcher stopped")
			}
		}()
	}

	opts := serverOptions{
		Escape:        flagEscape,
		HTMLTypes:     flagHTMLTypes,
		MaxBuffer:     flagMaxBuffer,
		CompressLevel: flagCompress,
		Metrics:       flagMetrics,
		MetricsPublic: flagMetricsPublic,
	}
	if flagMetrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m, err := frontenv.NewMetrics(reg)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		opts.MetricsGatherer = reg
		opts.InjectMetrics = m
	}

	frontend := NewFrontend(os.DirFS(flagDist), flagIndex, flagNotFound)
	httpSrv := serveHTTP(flagAddr, newRouter(frontend, store, opts), stop)

	<-ctx.Done()
	log.Info().Msg("[server] shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("[server] http server shutdown error")
	}

	log.Info().Msg("[server] shutdown complete")
	return nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envIntOrDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func parseBoolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}
