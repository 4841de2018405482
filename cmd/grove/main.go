package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	grove "github.com/grovekit/grove"
	"github.com/grovekit/grove/exitcodes"
	"github.com/grovekit/grove/flags"
	"github.com/grovekit/grove/registry"
	"github.com/grovekit/grove/types"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "grove"
	app.Usage = "Grove test-execution service"
	app.Description = "grove runs the suites registered with it: bounded-concurrency tests, lifecycle hooks, deterministic result order"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if grove.IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			} else {
				// Test failures and anything unspecified exit with code 1.
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			}
		}
	}

	if err := app.Run(os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(ctx *cli.Context) error {
	logger, err := newLogger(ctx.String(flags.LogLevel.Name))
	if err != nil {
		return &grove.RuntimeError{Err: err}
	}

	cfg, err := grove.NewConfig(ctx, logger)
	if err != nil {
		return &grove.RuntimeError{Err: fmt.Errorf("invalid configuration: %w", err)}
	}

	reg, err := registry.NewRegistry(registry.Config{
		Log:          logger,
		ManifestFile: cfg.ManifestFile,
	})
	if err != nil {
		return &grove.RuntimeError{Err: fmt.Errorf("failed to create registry: %w", err)}
	}
	if err := reg.Register(smokeSuite()); err != nil {
		return &grove.RuntimeError{Err: err}
	}

	svc, err := grove.New(ctx.Context, cfg, ctx.App.Version, reg, nil)
	if err != nil {
		return &grove.RuntimeError{Err: err}
	}

	if err := svc.Start(ctx.Context); err != nil {
		return err
	}
	return svc.WaitForShutdown(ctx.Context)
}

func newLogger(level string) (log.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, true)), nil
}

// smokeCtx is the context value threaded through the built-in smoke suite.
type smokeCtx struct {
	Base int
}

// smokeSuite is a built-in end-to-end exercise of the engine: a before_all
// transforming context, tests that run in parallel, and an explicit skip.
func smokeSuite() registry.Suite {
	tree := types.Group[smokeCtx]{
		Name: "smoke",
		Tags: []string{"builtin"},
		Children: []types.Node[smokeCtx]{
			types.BeforeAll[smokeCtx]{Fn: func(c smokeCtx) (smokeCtx, error) {
				c.Base += 10
				return c, nil
			}},
			types.Test[smokeCtx]{Name: "context is threaded", Run: func(c smokeCtx) (types.AssertionResult, error) {
				if c.Base != 10 {
					return types.AssertFailed(types.AssertionFailure{
						Operator: "equal",
						Message:  fmt.Sprintf("expected base 10, got %d", c.Base),
					}), nil
				}
				return types.AssertOk(), nil
			}},
			types.Test[smokeCtx]{Name: "parallel work completes", Run: func(smokeCtx) (types.AssertionResult, error) {
				time.Sleep(10 * time.Millisecond)
				return types.AssertOk(), nil
			}},
			types.Test[smokeCtx]{Name: "skips are explicit", Run: func(smokeCtx) (types.AssertionResult, error) {
				return types.AssertSkipped(), nil
			}},
		},
	}
	return registry.NewSuite("smoke", []string{"builtin"}, types.Root[smokeCtx]{Tree: tree})
}
