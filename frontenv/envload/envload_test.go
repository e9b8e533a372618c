package envload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestValidateKey(t *testing.T) {
	t.Parallel()

	for _, key := range []string{"API_URL", "_private", "$jq", "a1", "camelCase"} {
		assert.NoError(t, ValidateKey(key), key)
	}
	for _, key := range []string{"", "1ABC", "API-URL", "a.b", "a b", "x=y", "é"} {
		assert.ErrorIs(t, ValidateKey(key), ErrInvalidKey, key)
	}
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
		want    map[string]string
	}{
		{
			name:    "dotenv",
			file:    ".env",
			content: "# frontend\nAPI_URL=http://x\nexport FEATURE=on\nQUOTED=\"a b\"\n",
			want:    map[string]string{"API_URL": "http://x", "FEATURE": "on", "QUOTED": "a b"},
		},
		{
			name:    "yaml",
			file:    "env.yaml",
			content: "API_URL: http://x\nPORT: 8080\nDEBUG: true\n",
			want:    map[string]string{"API_URL": "http://x", "PORT": "8080", "DEBUG": "true"},
		},
		{
			name:    "yml",
			file:    "env.yml",
			content: "A: '1'\n",
			want:    map[string]string{"A": "1"},
		},
		{
			name:    "json",
			file:    "env.JSON",
			content: `{"API_URL": "http://x", "B": "2"}`,
			want:    map[string]string{"API_URL": "http://x", "B": "2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ReadFile(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadFileErrors(t *testing.T) {
	t.Parallel()

	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = ReadFile(writeFile(t, "nested.yaml", "A:\n  B: c\n"))
	assert.Error(t, err)
}

func TestFromEnviron(t *testing.T) {
	t.Parallel()

	got := FromEnviron("FRONTEND_", []string{
		"FRONTEND_API_URL=http://x",
		"FRONTEND_=skipped",
		"FRONTEND_EQ=a=b",
		"PATH=/usr/bin",
		"frontend_lower=no",
		"MALFORMED",
	})
	assert.Equal(t, map[string]string{"API_URL": "http://x", "EQ": "a=b"}, got)
}

func TestParsePairs(t *testing.T) {
	t.Parallel()

	got, err := ParsePairs([]string{"A=1", " B =x=y", "EMPTY="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y", "EMPTY": ""}, got)

	_, err = ParsePairs([]string{"NOEQUALS"})
	assert.ErrorIs(t, err, ErrInvalidPair)

	_, err = ParsePairs([]string{"=value"})
	assert.ErrorIs(t, err, ErrInvalidPair)
}

func TestLoadPrecedence(t *testing.T) {
	t.Parallel()

	file := writeFile(t, ".env", "A=file\nB=file\nC=file\n")
	env, err := Load(Config{
		File:    file,
		Prefix:  "FE_",
		Vars:    []string{"C=flag"},
		Environ: []string{"FE_B=environ", "FE_C=environ", "OTHER=x"},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"A": "file", "B": "environ", "C": "flag"}, env.Map())
	assert.Equal(t, "<script>\nwindow.A = \"file\";\nwindow.B = \"environ\";\nwindow.C = \"flag\";\n</script>", env.ScriptBlock())
}

func TestLoadNoPrefixIgnoresEnviron(t *testing.T) {
	t.Parallel()

	env, err := Load(Config{Environ: []string{"A=1"}})
	require.NoError(t, err)
	assert.Zero(t, env.Len())
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	_, err := Load(Config{Vars: []string{"not-an-identifier=1"}})
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = Load(Config{Prefix: "FE_", Environ: []string{"FE_BAD-NAME=1"}})
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = Load(Config{Vars: []string{"broken"}})
	assert.ErrorIs(t, err, ErrInvalidPair)

	_, err = Load(Config{File: filepath.Join(t.TempDir(), "missing.env")})
	assert.Error(t, err)
}
