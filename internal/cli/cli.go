package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/tickflow/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("tickflow", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
tickflow - Evaluates dataflow graphs tick by tick.

Usage:
  tickflow [options] [GRAPH_PATH]

Arguments:
  GRAPH_PATH
    Path to a single .hcl/.yaml file or a directory containing them.

Options:
`)
		flagSet.PrintDefaults()
	}

	graphFlag := flagSet.String("graph", "", "Path to the graph file or directory.")
	gFlag := flagSet.String("g", "", "Path to the graph file or directory (shorthand).")
	ticksFlag := flagSet.Int("ticks", 0, "Number of ticks to evaluate. 0 defers to the graph file (1 when unset and unpaced).")
	intervalFlag := flagSet.Duration("interval", 0, "Minimum time between ticks, e.g. '100ms'. 0 runs unpaced.")
	strategyFlag := flagSet.String("strategy", "", "Execution strategy. Options: 'synchronous', 'islands', 'parallel'.")
	cullingFlag := flagSet.Bool("culling", true, "Skip nodes whose outputs nobody observes.")
	workersFlag := flagSet.Int("workers", 0, "Goroutines used by the parallel strategies. 0 picks GOMAXPROCS.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check and metrics server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "auto", "Log output format. Options: 'text', 'json' or 'auto'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	publishURLFlag := flagSet.String("publish-url", "", "socket.io server receiving observed values, e.g. 'http://localhost:3000/socket.io/'.")
	publishEventFlag := flagSet.String("publish-event", "tick", "Event name used when publishing observed values.")
	traceFlag := flagSet.Bool("trace", false, "Export tick and node spans to stderr.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *graphFlag != "" {
		path = *graphFlag
	} else if *gFlag != "" {
		path = *gFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Graph path determined.", "path", path)

	if path == "" {
		slog.Debug("No graph path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	// Only an explicit --culling overrides the graph file.
	var culling *bool
	flagSet.Visit(func(f *flag.Flag) {
		if f.Name == "culling" {
			culling = cullingFlag
		}
	})

	config, err := app.NewConfig(app.Config{
		GraphPath:       path,
		Ticks:           *ticksFlag,
		Interval:        *intervalFlag,
		Strategy:        strings.ToLower(*strategyFlag),
		Culling:         culling,
		Workers:         *workersFlag,
		LogFormat:       strings.ToLower(*logFormatFlag),
		LogLevel:        strings.ToLower(*logLevelFlag),
		HealthcheckPort: *healthPortFlag,
		PublishURL:      *publishURLFlag,
		PublishEvent:    *publishEventFlag,
		Trace:           *traceFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
