// Package main is the entry point for fixturegen. It writes the Postman
// environment used by the API test collection: a base URL, validly signed
// tokens for the seeded users, and tampered tokens the API must reject.
//
// With -watch it keeps running and regenerates the file whenever the .env
// or settings file changes. With -verify it checks an existing file instead.
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dskow/fixturegen/internal/apperror"
	"github.com/dskow/fixturegen/internal/config"
	"github.com/dskow/fixturegen/internal/fixture"
	"github.com/dskow/fixturegen/internal/logging"
	"github.com/dskow/fixturegen/internal/metrics"
	"github.com/dskow/fixturegen/internal/watch"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Environ, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configPath string
	envFile    string
	output     string
	watch      bool
	verify     bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("fixturegen", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.configPath, "config", "", "path to an optional YAML settings file")
	fs.StringVar(&o.envFile, "env-file", "", "path to the .env file (default "+config.DefaultEnvFile+")")
	fs.StringVar(&o.output, "out", "", "environment file to write (default "+config.DefaultOutput+")")
	fs.BoolVar(&o.watch, "watch", false, "keep running and regenerate when the .env or settings file changes")
	fs.BoolVar(&o.verify, "verify", false, "verify the tokens of an existing environment file instead of generating")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return &o, nil
}

func loadConfig(o *options) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyOverrides(o.envFile, o.output)
	return cfg, nil
}

func run(ctx context.Context, args []string, environ func() []string, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	boot := slog.New(slog.NewJSONHandler(stderr, nil))

	cfg, err := loadConfig(o)
	if err != nil {
		boot.Error("failed to load config", "error", err)
		return apperror.ExitCode(err)
	}

	logger, closer, err := logging.New(cfg.Logging, stderr)
	if err != nil {
		boot.Error("failed to set up logging", "error", err)
		return 1
	}
	defer closer.Close()

	for _, w := range cfg.Warnings {
		logger.Warn("config warning", "message", w)
	}

	if o.verify {
		return verify(cfg, environ, logger)
	}

	rec := metrics.NewRecorder()
	_, err = fixture.NewGenerator(cfg, logger, rec, environ).Run()
	if err != nil {
		logger.Error("generation failed", "code", apperror.CodeOf(err), "error", err)
		if !o.watch {
			return apperror.ExitCode(err)
		}
	}
	if !o.watch {
		return 0
	}

	watched := []string{cfg.EnvFile}
	if o.configPath != "" {
		watched = append(watched, o.configPath)
	}

	// Settings are reloaded on every regeneration; an invalid edit keeps
	// the previous output and waits for the next change.
	regen := func() error {
		next, err := loadConfig(o)
		if err != nil {
			return err
		}
		_, err = fixture.NewGenerator(next, logger, rec, environ).Run()
		return err
	}

	w := watch.New(watched, cfg.Watch, regen, logger)
	if err := w.Run(ctx); err != nil {
		logger.Error("watch failed", "error", err)
		return 1
	}
	logger.Info("watch stopped")
	return 0
}

func verify(cfg *config.Config, environ func() []string, logger *slog.Logger) int {
	secrets, warnings, err := config.LoadSecrets(cfg.EnvFile, environ())
	for _, w := range warnings {
		logger.Warn("config warning", "message", w)
	}
	if err != nil {
		logger.Error("verification failed", "code", apperror.CodeOf(err), "error", err)
		return apperror.ExitCode(err)
	}

	report, err := fixture.VerifyFile(cfg.Output, secrets.Key())
	if report != nil {
		for _, r := range report.Results {
			level := slog.LevelInfo
			if !r.OK() {
				level = slog.LevelWarn
			}
			logger.Log(context.Background(), level, "token checked",
				"key", r.Key,
				"valid", r.Valid,
				"expected_valid", r.WantValid,
				"role", r.Role,
				"reason", r.Reason,
			)
		}
	}
	if err != nil {
		logger.Error("verification failed", "code", apperror.CodeOf(err), "error", err)
		return apperror.ExitCode(err)
	}

	logger.Info("environment verified", "path", cfg.Output, "tokens", len(report.Results))
	return 0
}
