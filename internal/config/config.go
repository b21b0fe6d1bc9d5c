// Package config loads fixturegen settings: an optional YAML settings file
// with environment variable substitution, plus the PORT and JWT_SECRET
// values read from the process environment and a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dskow/fixturegen/internal/apperror"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults matching the layout of the API repository: the generator runs
// from tests/postman and the .env file lives at the repository root.
const (
	DefaultEnvFile       = "../../.env"
	DefaultOutput        = "./postman-files/tests.postman_environment.json"
	DefaultBaseHost      = "localhost"
	DefaultEnvironmentID = "592af9d5-b95a-407b-ae6f-15aa35b4ffeb"
	DefaultName          = "tests"
	DefaultExportedUsing = "Postman/11.49.1"
)

// Config is the top-level generator configuration.
type Config struct {
	EnvFile     string            `yaml:"env_file" json:"env_file"`
	Output      string            `yaml:"output" json:"output"`
	BaseHost    string            `yaml:"base_host" json:"base_host"`
	Environment EnvironmentConfig `yaml:"environment" json:"environment"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics" json:"metrics"`
	Watch       WatchConfig       `yaml:"watch" json:"watch"`

	// Warnings holds non-fatal issues detected during loading.
	Warnings []string `yaml:"-" json:"-"`
}

// EnvironmentConfig holds the Postman environment metadata.
type EnvironmentConfig struct {
	ID            string `yaml:"id" json:"id"`
	Name          string `yaml:"name" json:"name"`
	ExportedUsing string `yaml:"exported_using" json:"exported_using"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`             // "debug", "info", "warn", "error"; default: "info"
	Format     string `yaml:"format" json:"format"`           // "json" or "text"; default: "json"
	Output     string `yaml:"output" json:"output"`           // "stdout", "stderr", or file path; default: "stderr"
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"` // rotation size for file output; default: 10
	MaxBackups int    `yaml:"max_backups" json:"max_backups"` // rotated files kept; default: 3
}

// ToFile reports whether log output goes to a file path.
func (l LoggingConfig) ToFile() bool {
	return l.Output != "stdout" && l.Output != "stderr"
}

// MetricsConfig holds batch metrics settings. An empty Textfile disables
// metrics output.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" json:"textfile"`
}

// WatchConfig holds watch mode settings.
type WatchConfig struct {
	MinInterval time.Duration `yaml:"min_interval" json:"min_interval"` // minimum time between regenerations; default: 1s
	Debounce    time.Duration `yaml:"debounce" json:"debounce"`         // quiet period after a file event; default: 300ms
}

// ValidLogLevels are the accepted logging.level strings.
var ValidLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Default returns the configuration used when no settings file is given.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	cfg.Warnings = collectWarnings(&cfg)
	return &cfg
}

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns in s with the corresponding
// environment variable value.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		key := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return match
	})
}

// Load reads a YAML settings file, applies environment variable
// substitution, sets defaults, and validates the result. An empty path
// yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperror.New(apperror.InvalidConfiguration, "load config",
			fmt.Errorf("reading config file: %w", err))
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, apperror.New(apperror.InvalidConfiguration, "load config",
			fmt.Errorf("parsing config: %w", err))
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, apperror.New(apperror.InvalidConfiguration, "load config",
			fmt.Errorf("validating config: %w", err))
	}

	cfg.Warnings = collectWarnings(&cfg)

	return &cfg, nil
}

// ApplyOverrides sets non-empty command-line overrides and recomputes
// Warnings for the resulting paths.
func (c *Config) ApplyOverrides(envFile, output string) {
	if envFile != "" {
		c.EnvFile = envFile
	}
	if output != "" {
		c.Output = output
	}
	c.Warnings = collectWarnings(c)
}

func applyDefaults(cfg *Config) {
	if cfg.EnvFile == "" {
		cfg.EnvFile = DefaultEnvFile
	}
	if cfg.Output == "" {
		cfg.Output = DefaultOutput
	}
	if cfg.BaseHost == "" {
		cfg.BaseHost = DefaultBaseHost
	}

	meta := &cfg.Environment
	if meta.ID == "" {
		meta.ID = DefaultEnvironmentID
	}
	if meta.Name == "" {
		meta.Name = DefaultName
	}
	if meta.ExportedUsing == "" {
		meta.ExportedUsing = DefaultExportedUsing
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 10
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 3
	}

	if cfg.Watch.MinInterval == 0 {
		cfg.Watch.MinInterval = time.Second
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 300 * time.Millisecond
	}
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Output) == "" {
		return fmt.Errorf("output must not be blank")
	}
	if strings.ContainsAny(cfg.BaseHost, "/ ") {
		return fmt.Errorf("base_host must be a bare host name, got %q", cfg.BaseHost)
	}

	if _, err := uuid.Parse(cfg.Environment.ID); err != nil {
		return fmt.Errorf("environment.id: invalid UUID %q: %w", cfg.Environment.ID, err)
	}

	// Logging validation
	if !ValidLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be \"json\" or \"text\", got %q", cfg.Logging.Format)
	}
	if cfg.Logging.ToFile() {
		if cfg.Logging.MaxSizeMB < 1 {
			return fmt.Errorf("logging.max_size_mb must be positive when output is a file path")
		}
		if cfg.Logging.MaxBackups < 0 {
			return fmt.Errorf("logging.max_backups must be non-negative")
		}
	}

	if cfg.Watch.MinInterval < 0 {
		return fmt.Errorf("watch.min_interval must be non-negative")
	}
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must be non-negative")
	}

	return nil
}

func collectWarnings(cfg *Config) []string {
	var warnings []string
	if strings.Contains(cfg.Output, "${") || strings.Contains(cfg.EnvFile, "${") {
		warnings = append(warnings, "path contains unresolved environment variable")
	}
	if filepath.Ext(cfg.Output) != ".json" {
		warnings = append(warnings, fmt.Sprintf("output %q does not end in .json; Postman import expects JSON", cfg.Output))
	}
	if dir := filepath.Dir(cfg.Output); !dirExists(dir) {
		warnings = append(warnings, fmt.Sprintf("output directory %q does not exist", dir))
	}
	return warnings
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// Secrets holds the values read from the environment. JWTSecret is never
// logged.
type Secrets struct {
	Port      string `env:"PORT" envDefault:"8080"`
	JWTSecret string `env:"JWT_SECRET"`
}

// Key returns the signing key.
func (s *Secrets) Key() []byte {
	return []byte(s.JWTSecret)
}

// LoadSecrets reads PORT and JWT_SECRET from processEnv (KEY=VALUE pairs, as
// returned by os.Environ) layered over the dotenv file at envFile. Process
// variables win. A missing envFile is reported as a warning; a missing or
// empty JWT_SECRET is a MissingConfiguration error. The process environment
// itself is never modified.
func LoadSecrets(envFile string, processEnv []string) (*Secrets, []string, error) {
	var warnings []string

	vars, err := godotenv.Read(envFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		warnings = append(warnings, fmt.Sprintf("env file %q not found, using process environment only", envFile))
		vars = map[string]string{}
	case err != nil:
		return nil, warnings, apperror.New(apperror.InvalidConfiguration, "load env file",
			fmt.Errorf("reading %s: %w", envFile, err))
	}

	for k, v := range env.ToMap(processEnv) {
		vars[k] = v
	}

	var s Secrets
	if err := env.ParseWithOptions(&s, env.Options{Environment: vars}); err != nil {
		return nil, warnings, apperror.New(apperror.InvalidConfiguration, "parse environment", err)
	}

	if s.JWTSecret == "" {
		return nil, warnings, apperror.Missing("JWT_SECRET")
	}

	return &s, warnings, nil
}
