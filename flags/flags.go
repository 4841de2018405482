package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "GROVE"

func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	Manifest = &cli.StringFlag{
		Name:    "manifest",
		Value:   "",
		EnvVars: prefixEnvVars("MANIFEST"),
		Usage:   "Path to the run manifest file (eg. 'grove.yaml'). Empty runs every registered suite.",
	}
	Concurrency = &cli.IntFlag{
		Name:    "concurrency",
		Value:   4,
		EnvVars: prefixEnvVars("CONCURRENCY"),
		Usage:   "Maximum number of one group's tests running at once. 1 runs tests serially.",
	}
	DefaultTimeout = &cli.DurationFlag{
		Name:    "default-timeout",
		Value:   30 * time.Second,
		EnvVars: prefixEnvVars("DEFAULT_TIMEOUT"),
		Usage:   "Deadline for hooks and for tests without their own timeout override",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVars("RUN_INTERVAL"),
		Usage:   "Interval between runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	LogCrashes = &cli.BoolFlag{
		Name:    "log-crashes",
		Value:   false,
		EnvVars: prefixEnvVars("LOG_CRASHES"),
		Usage:   "Write crash diagnostics (panic value and stack) to the debug log",
	}
	ShowProgress = &cli.BoolFlag{
		Name:    "progress",
		Value:   false,
		EnvVars: prefixEnvVars("PROGRESS"),
		Usage:   "Log each test completion as it is surfaced",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log.level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "The lowest log level that will be output",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	Manifest,
	Concurrency,
	DefaultTimeout,
	RunInterval,
	LogCrashes,
	ShowProgress,
	LogLevel,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

// CheckRequired verifies that all required flags are set.
func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
