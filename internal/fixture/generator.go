package fixture

import (
	"log/slog"
	"time"

	"github.com/dskow/fixturegen/internal/apperror"
	"github.com/dskow/fixturegen/internal/config"
	"github.com/dskow/fixturegen/internal/metrics"
)

// Generator runs the load secrets → build → write sequence. Each Run
// re-reads the env file, so a long-lived Generator picks up a rotated
// secret.
type Generator struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Recorder
	environ func() []string
	now     func() time.Time
}

// NewGenerator creates a Generator. environ supplies the process
// environment (normally os.Environ); rec may be nil.
func NewGenerator(cfg *config.Config, logger *slog.Logger, rec *metrics.Recorder, environ func() []string) *Generator {
	return &Generator{
		cfg:     cfg,
		logger:  logger,
		metrics: rec,
		environ: environ,
		now:     time.Now,
	}
}

// Run generates the environment and writes it to the configured output.
// Any error aborts the run before the output file is touched, except a
// failure of the final rename, which leaves the previous file in place.
func (g *Generator) Run() (*Environment, error) {
	start := g.now()

	secrets, warnings, err := config.LoadSecrets(g.cfg.EnvFile, g.environ())
	for _, w := range warnings {
		g.logger.Warn("config warning", "message", w)
	}
	if err != nil {
		return nil, g.fail(err, start)
	}

	env, err := Build(g.cfg, secrets, start)
	if err != nil {
		return nil, g.fail(err, start)
	}

	if err := Write(g.cfg.Output, env); err != nil {
		return nil, g.fail(err, start)
	}

	if g.metrics != nil {
		g.metrics.ObserveSuccess(len(env.Values), len(Identities), g.now().Sub(start), start)
		g.flushMetrics()
	}

	base, _ := env.Lookup(BaseURLKey)
	g.logger.Info("environment written",
		"path", g.cfg.Output,
		"values", len(env.Values),
		"base_url", base,
		"exported_at", env.ExportedAt,
	)
	return env, nil
}

func (g *Generator) fail(err error, start time.Time) error {
	if g.metrics != nil {
		g.metrics.ObserveFailure(string(apperror.CodeOf(err)), g.now().Sub(start))
		g.flushMetrics()
	}
	return err
}

func (g *Generator) flushMetrics() {
	path := g.cfg.Metrics.Textfile
	if path == "" {
		return
	}
	if err := g.metrics.WriteTextfile(path); err != nil {
		g.logger.Warn("writing metrics textfile failed", "path", path, "error", err)
	}
}
