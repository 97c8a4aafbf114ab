package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"

	"github.com/specialistvlad/aotgraph/internal/app"
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

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("aotgraph", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
aotgraph - Ahead-of-time compiler driven by a dependency graph.

Usage:
  aotgraph [options] -o OUTPUT [INPUT]

Arguments:
  INPUT
    Path to the assembly description (.hcl).

Options:
`)
		flagSet.PrintDefaults()
	}

	inputFlag := flagSet.String("input", "", "Path to the assembly description.")
	iFlag := flagSet.String("i", "", "Path to the assembly description (shorthand).")
	outFlag := flagSet.String("out", "", "Path of the image to write.")
	oFlag := flagSet.String("o", "", "Path of the image to write (shorthand).")
	parallelismFlag := flagSet.Int("parallelism", runtime.NumCPU(), "Number of methods compiled concurrently.")
	resilientFlag := flagSet.Bool("resilient", false, "Leave methods that fail to compile to the runtime instead of aborting.")
	mapFlag := flagSet.Bool("map", false, "Write a map file next to the image.")
	depLogFlag := flagSet.String("dependency-log", "", "Write the dependency graph as DGML to this path.")
	traceFlag := flagSet.String("trace", "", "Write OpenTelemetry spans of the run as JSON lines to this path.")
	verboseFlag := flagSet.Bool("verbose", false, "Log every method as it is compiled.")
	var instrumented stringList
	flagSet.Var(&instrumented, "instrument", "Module whose methods get enter/leave hooks. Repeatable.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health and status server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	neo4jURIFlag := flagSet.String("neo4j-uri", "", "Export the dependency graph to this Neo4j instance.")
	neo4jUserFlag := flagSet.String("neo4j-user", "neo4j", "Neo4j user name.")
	neo4jPassFlag := flagSet.String("neo4j-pass", "", "Neo4j password.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	input := firstNonEmpty(*inputFlag, *iFlag)
	if input == "" && flagSet.NArg() > 0 {
		input = flagSet.Arg(0)
	}
	slog.Debug("Input path determined.", "path", input)

	if input == "" {
		slog.Debug("No input provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	outPath := firstNonEmpty(*outFlag, *oFlag)
	if outPath == "" {
		return nil, false, &ExitError{Code: 2, Message: "an output path is required: use --out"}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		InputPath:           input,
		OutputPath:          outPath,
		Parallelism:         *parallelismFlag,
		Resilient:           *resilientFlag,
		Verbose:             *verboseFlag,
		MapFile:             *mapFlag,
		DependencyLogPath:   *depLogFlag,
		TracePath:           *traceFlag,
		InstrumentedModules: instrumented,
		LogFormat:           logFormat,
		LogLevel:            logLevel,
		HealthcheckPort:     *healthPortFlag,
		Neo4jURI:            *neo4jURIFlag,
		Neo4jUser:           *neo4jUserFlag,
		Neo4jPass:           *neo4jPassFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
