package grove

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/grovekit/grove/flags"
)

// Config holds the service configuration.
type Config struct {
	ManifestFile   string        // optional run manifest selecting suites and overriding defaults
	MaxConcurrency int           // worker pool width for each group's test batch
	DefaultTimeout time.Duration // deadline for hooks and unannotated tests
	RunInterval    time.Duration // interval between runs; 0 means run once
	RunOnce        bool          // exit after a single run
	LogCrashes     bool          // write crash diagnostics to the debug log
	ShowProgress   bool          // log each test completion
	Log            log.Logger
}

// NewConfig creates a new Config from the cli context.
func NewConfig(ctx *cli.Context, logger log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)

	cfg := &Config{
		ManifestFile:   ctx.String(flags.Manifest.Name),
		MaxConcurrency: ctx.Int(flags.Concurrency.Name),
		DefaultTimeout: ctx.Duration(flags.DefaultTimeout.Name),
		RunInterval:    runInterval,
		RunOnce:        runInterval == 0,
		LogCrashes:     ctx.Bool(flags.LogCrashes.Name),
		ShowProgress:   ctx.Bool(flags.ShowProgress.Name),
		Log:            logger,
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.MaxConcurrency)
	}
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("default timeout must be positive, got %v", c.DefaultTimeout)
	}
	if c.RunInterval < 0 {
		return fmt.Errorf("run interval cannot be negative, got %v", c.RunInterval)
	}
	return nil
}
