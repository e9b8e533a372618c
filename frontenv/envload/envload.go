// Package envload builds frontend environments from files, process
// environment variables and command-line pairs.
package envload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gosuda/frontenv/frontenv"
)

var (
	// ErrInvalidKey is returned for names that cannot follow "window.".
	ErrInvalidKey = errors.New("envload: invalid variable name")
	// ErrInvalidPair is returned for command-line values without '='.
	ErrInvalidPair = errors.New("envload: expected KEY=VALUE")
)

var identRegex = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Config selects the sources of an environment. Later sources override
// earlier ones: File, then prefixed process variables, then Vars.
type Config struct {
	// File is a .env, .yaml, .yml or .json file. Empty means none.
	File string
	// Prefix selects process environment variables; the prefix is
	// stripped from the name. Empty disables process variables.
	Prefix string
	// Vars are KEY=VALUE pairs.
	Vars []string
	// Environ replaces os.Environ when non-nil.
	Environ []string
}

// ValidateKey reports whether key can be used as a global variable name.
func ValidateKey(key string) error {
	if !identRegex.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Load reads every source in cfg and returns the merged environment.
func Load(cfg Config) (*frontenv.Environment, error) {
	vars := make(map[string]string)

	if cfg.File != "" {
		fileVars, err := ReadFile(cfg.File)
		if err != nil {
			return nil, err
		}
		for k, v := range fileVars {
			vars[k] = v
		}
	}

	if cfg.Prefix != "" {
		environ := cfg.Environ
		if environ == nil {
			environ = os.Environ()
		}
		for k, v := range FromEnviron(cfg.Prefix, environ) {
			vars[k] = v
		}
	}

	pairs, err := ParsePairs(cfg.Vars)
	if err != nil {
		return nil, err
	}
	for k, v := range pairs {
		vars[k] = v
	}

	for k := range vars {
		if err := ValidateKey(k); err != nil {
			return nil, err
		}
	}
	return frontenv.NewEnvironment(vars), nil
}

// ReadFile parses path by extension: YAML and JSON documents must be a
// flat mapping, anything else is read as a dotenv file.
func ReadFile(path string) (map[string]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read env file: %w", err)
		}
		vars := make(map[string]string)
		if err := yaml.Unmarshal(data, &vars); err != nil {
			return nil, fmt.Errorf("parse env file %s: %w", path, err)
		}
		return vars, nil
	default:
		vars, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("read env file %s: %w", path, err)
		}
		return vars, nil
	}
}

// FromEnviron picks the entries of environ whose name starts with prefix
// and returns them with the prefix removed.
func FromEnviron(prefix string, environ []string) map[string]string {
	vars := make(map[string]string)
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, prefix) {
			continue
		}
		name := strings.TrimPrefix(k, prefix)
		if name == "" {
			continue
		}
		vars[name] = v
	}
	return vars
}

// ParsePairs parses KEY=VALUE strings. The value may itself contain '='.
func ParsePairs(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPair, p)
		}
		vars[k] = v
	}
	return vars, nil
}
