package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dskow/fixturegen/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "../../.env", cfg.EnvFile)
	assert.Equal(t, "./postman-files/tests.postman_environment.json", cfg.Output)
	assert.Equal(t, "localhost", cfg.BaseHost)
	assert.Equal(t, "592af9d5-b95a-407b-ae6f-15aa35b4ffeb", cfg.Environment.ID)
	assert.Equal(t, "tests", cfg.Environment.Name)
	assert.Equal(t, "Postman/11.49.1", cfg.Environment.ExportedUsing)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, time.Second, cfg.Watch.MinInterval)
	assert.Equal(t, 300*time.Millisecond, cfg.Watch.Debounce)
	assert.Empty(t, cfg.Metrics.Textfile)
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Output, cfg.Output)
}

func TestLoadFromBytes_FullConfig(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
env_file: ` + filepath.Join(dir, ".env") + `
output: ` + filepath.Join(dir, "env.json") + `
base_host: api.local
environment:
  id: 0b7f7c2a-3f5e-4f8e-9a43-1d2c3b4a5f60
  name: staging-tests
  exported_using: Postman/12.0.0
logging:
  level: debug
  format: text
  output: stdout
metrics:
  textfile: /var/lib/node_exporter/fixturegen.prom
watch:
  min_interval: 5s
  debounce: 50ms
`)
	cfg, err := LoadFromBytes(yaml)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "env.json"), cfg.Output)
	assert.Equal(t, "api.local", cfg.BaseHost)
	assert.Equal(t, "staging-tests", cfg.Environment.Name)
	assert.Equal(t, "Postman/12.0.0", cfg.Environment.ExportedUsing)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.False(t, cfg.Logging.ToFile())
	assert.Equal(t, "/var/lib/node_exporter/fixturegen.prom", cfg.Metrics.Textfile)
	assert.Equal(t, 5*time.Second, cfg.Watch.MinInterval)
	assert.Equal(t, 50*time.Millisecond, cfg.Watch.Debounce)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromBytes_EnvExpansion(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FIXTURE_OUT_DIR", dir)

	cfg, err := LoadFromBytes([]byte(`output: ${FIXTURE_OUT_DIR}/tests.json`))
	require.NoError(t, err)
	assert.Equal(t, dir+"/tests.json", cfg.Output)
}

func TestLoadFromBytes_UnresolvedVariableWarns(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`output: ${FIXTUREGEN_SURELY_UNSET}/tests.json`))
	require.NoError(t, err)
	assert.Contains(t, cfg.Warnings, "path contains unresolved environment variable")
}

func TestLoadFromBytes_Warnings(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`output: /nonexistent-fixturegen-dir/env.txt`))
	require.NoError(t, err)
	require.Len(t, cfg.Warnings, 2)
	assert.Contains(t, cfg.Warnings[0], "does not end in .json")
	assert.Contains(t, cfg.Warnings[1], "does not exist")
}

func TestLoadFromBytes_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad uuid", "environment:\n  id: not-a-uuid\n", "environment.id"},
		{"bad level", "logging:\n  level: verbose\n", "logging.level"},
		{"bad format", "logging:\n  format: xml\n", "logging.format"},
		{"file output size", "logging:\n  output: /tmp/x.log\n  max_size_mb: -1\n", "logging.max_size_mb"},
		{"negative backups", "logging:\n  output: /tmp/x.log\n  max_backups: -2\n", "logging.max_backups"},
		{"negative interval", "watch:\n  min_interval: -1s\n", "watch.min_interval"},
		{"negative debounce", "watch:\n  debounce: -1s\n", "watch.debounce"},
		{"blank output", "output: \"   \"\n", "output must not be blank"},
		{"url as host", "base_host: http://x\n", "base_host"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, apperror.Is(err, apperror.InvalidConfiguration))
		})
	}
}

func TestLoadFromBytes_InvalidYAML(t *testing.T) {
	_, err := LoadFromBytes([]byte("output: [unclosed"))
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.InvalidConfiguration))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.InvalidConfiguration))
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixturegen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_host: 127.0.0.1\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.BaseHost)
}

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSecrets_FromEnvFile(t *testing.T) {
	path := writeEnvFile(t, "PORT=3000\nJWT_SECRET=from-file\n")

	s, warnings, err := LoadSecrets(path, nil)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "3000", s.Port)
	assert.Equal(t, "from-file", s.JWTSecret)
	assert.Equal(t, []byte("from-file"), s.Key())
}

func TestLoadSecrets_ProcessEnvWins(t *testing.T) {
	path := writeEnvFile(t, "PORT=3000\nJWT_SECRET=from-file\n")

	s, _, err := LoadSecrets(path, []string{"JWT_SECRET=from-process", "PORT=9999"})
	require.NoError(t, err)
	assert.Equal(t, "from-process", s.JWTSecret)
	assert.Equal(t, "9999", s.Port)
}

func TestLoadSecrets_DefaultPort(t *testing.T) {
	path := writeEnvFile(t, "JWT_SECRET=s3cret\n")

	s, _, err := LoadSecrets(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "8080", s.Port)
}

func TestLoadSecrets_MissingEnvFileWarns(t *testing.T) {
	missing := filepath.Join(t.TempDir(), ".env")

	s, warnings, err := LoadSecrets(missing, []string{"JWT_SECRET=abc"})
	require.NoError(t, err)
	assert.Equal(t, "abc", s.JWTSecret)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "not found")
}

func TestLoadSecrets_MissingSecret(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		process []string
	}{
		{"absent everywhere", "PORT=3000\n", nil},
		{"empty in file", "JWT_SECRET=\n", nil},
		{"empty in process", "JWT_SECRET=from-file\n", []string{"JWT_SECRET="}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeEnvFile(t, tt.file)

			s, _, err := LoadSecrets(path, tt.process)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.Equal(t, apperror.MissingConfiguration, apperror.CodeOf(err))
		})
	}
}

func TestLoadSecrets_UnreadableEnvFile(t *testing.T) {
	// A directory cannot be parsed as a dotenv file.
	_, _, err := LoadSecrets(t.TempDir(), nil)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.InvalidConfiguration))
}

func TestApplyOverrides(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFromBytes([]byte(`output: /nonexistent-fixturegen-dir/env.json`))
	require.NoError(t, err)
	require.Len(t, cfg.Warnings, 1)

	cfg.ApplyOverrides(filepath.Join(dir, ".env"), filepath.Join(dir, "env.json"))

	assert.Equal(t, filepath.Join(dir, ".env"), cfg.EnvFile)
	assert.Equal(t, filepath.Join(dir, "env.json"), cfg.Output)
	assert.Empty(t, cfg.Warnings)

	cfg.ApplyOverrides("", "")
	assert.Equal(t, filepath.Join(dir, "env.json"), cfg.Output)
}
