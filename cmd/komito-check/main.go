// Command komito-check replays a tracking scenario against stub analytics
// backends and prints every call the dispatch engine makes.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/okian/komito/internal/dryrun"
	"github.com/okian/komito/pkg/logger"
)

const defaultTimeout = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	var (
		scenario = flag.String("scenario", "", "Path to the YAML scenario file")
		logLevel = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
		timeout  = flag.Duration("timeout", defaultTimeout, "Overall run timeout")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help || *scenario == "" {
		showHelp()
		if *help {
			return 0
		}
		return 2
	}

	if err := logger.InitWithWriter(os.Stderr); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return 1
	}
	if err := logger.SetLevelString(*logLevel); err != nil {
		os.Stderr.WriteString("invalid log level: " + err.Error() + "\n")
		return 2
	}
	log := logger.Named("komito-check")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sc, err := dryrun.LoadScenario(*scenario)
	if err != nil {
		log.Error(ctx, "failed to load scenario", logger.String("path", *scenario), logger.Error(err))
		return 1
	}

	report, err := dryrun.Run(ctx, sc, log)
	if report != nil {
		if werr := dryrun.WriteReport(os.Stdout, report); werr != nil {
			log.Error(ctx, "failed to write report", logger.Error(werr))
			return 1
		}
	}
	switch {
	case errors.Is(err, dryrun.ErrMismatch):
		log.Warn(ctx, "scenario expectations failed", logger.Error(err))
		return 3
	case err != nil:
		log.Error(ctx, "scenario run failed", logger.Error(err))
		return 1
	}
	return 0
}

func showHelp() {
	os.Stdout.WriteString(`komito-check
============

Replays track calls from a scenario file through the dispatch engine with
stubbed analytics backends, then prints each backend call, the console debug
output and a metrics summary.

Usage:
  komito-check -scenario page.yaml [options]

Options:
  -scenario string
        Path to the YAML scenario file (required)
  -log-level string
        Log level: debug, info, warn, error (default "warn")
  -timeout duration
        Overall run timeout (default 30s)
  -help
        Show this help message

The engine configuration is layered as in the browser: defaults, the file
named by KOMITO_CONFIG, KOMITO_* environment variables, then the scenario's
config section.

Exit codes:
  0  all calls dispatched as expected
  1  the scenario could not be loaded or run
  2  bad command line
  3  at least one expect list did not match
`)
}
