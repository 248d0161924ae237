package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/specialistvlad/tensorgrid/internal/app"
	"github.com/specialistvlad/tensorgrid/internal/watch"
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

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// Sub-command names.
const (
	CommandServe   = "serve"
	CommandCompile = "compile"
	CommandWatch   = "watch"
)

// Command is a parsed invocation.
type Command struct {
	Name   string
	Config *app.Config
	// GraphPath is the argument of compile.
	GraphPath string
	// Watch is set for watch.
	Watch watch.Options
}

const usage = `
tensorgrid - compile canvas graphs into neural networks and train them.

Usage:
  tensorgrid [serve] [options]        run the API and progress server
  tensorgrid compile [options] FILE   compile a graph JSON file and print its summary
  tensorgrid watch [options] URL      print the progress stream of a server

Options:
`

// Parse processes command-line arguments. It returns the parsed Command, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*Command, bool, error) {
	slog.Debug("CLI parser started.")
	name := CommandServe
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		name, args = args[0], args[1:]
	}
	switch name {
	case CommandServe, CommandCompile, CommandWatch:
	default:
		return nil, false, usageError("unknown command %q: must be serve, compile or watch", name)
	}

	flagSet := flag.NewFlagSet("tensorgrid "+name, flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, usage)
		flagSet.PrintDefaults()
	}

	def := app.DefaultConfig()
	configFlag := flagSet.String("config", "", "Path to a YAML configuration file.")
	listenFlag := flagSet.String("addr", def.ListenAddr, "Address the API server listens on.")
	healthPortFlag := flagSet.Int("healthcheck-port", def.HealthcheckPort, "Port for a dedicated HTTP health check server. 0 is disabled.")
	originFlag := flagSet.String("cors-origin", def.AllowedOrigin, "Allowed CORS origin for the API and progress stream.")
	dbFlag := flagSet.String("db", def.DatabasePath, "Path to the SQLite database.")
	artifactsFlag := flagSet.String("artifacts", def.ArtifactDir, "Directory compiled model specs are written to.")
	dataFlag := flagSet.String("data", def.DataDir, "Directory holding uploaded datasets.")
	manifestsFlag := flagSet.String("manifests", def.ManifestDir, "Directory of layer manifests. Empty uses the built-in manifests.")
	logFormatFlag := flagSet.String("log-format", def.LogFormat, "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", def.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	logFileFlag := flagSet.String("log-file", def.LogFile, "Also write logs to this rotating file.")
	workersFlag := flagSet.Int("workers", def.WorkerCount, "Maximum number of concurrent training runs.")
	progressTimeoutFlag := flagSet.Duration("progress-timeout", def.ProgressTimeout, "How long a progress event may wait for delivery before it is dropped.")
	runFlag := flagSet.String("run", "", "watch: only print events of this run id.")
	untilDoneFlag := flagSet.Bool("until-done", false, "watch: exit after the first run finishes or fails.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, usageError("%s", err.Error())
	}
	slog.Debug("Arguments parsed successfully.", "command", name)

	cfg := def
	if *configFlag != "" {
		var err error
		if cfg, err = app.LoadConfigFile(*configFlag, def); err != nil {
			return nil, false, usageError("%s", err.Error())
		}
	}

	// Flags given explicitly override the file.
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.ListenAddr = *listenFlag
		case "healthcheck-port":
			cfg.HealthcheckPort = *healthPortFlag
		case "cors-origin":
			cfg.AllowedOrigin = *originFlag
		case "db":
			cfg.DatabasePath = *dbFlag
		case "artifacts":
			cfg.ArtifactDir = *artifactsFlag
		case "data":
			cfg.DataDir = *dataFlag
		case "manifests":
			cfg.ManifestDir = *manifestsFlag
		case "log-format":
			cfg.LogFormat = *logFormatFlag
		case "log-level":
			cfg.LogLevel = *logLevelFlag
		case "log-file":
			cfg.LogFile = *logFileFlag
		case "workers":
			cfg.WorkerCount = *workersFlag
		case "progress-timeout":
			cfg.ProgressTimeout = *progressTimeoutFlag
		}
	})

	config, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, usageError("%s", err.Error())
	}
	cmd := &Command{Name: name, Config: config}

	switch name {
	case CommandServe:
		if flagSet.NArg() > 0 {
			return nil, false, usageError("serve takes no arguments, got %q", flagSet.Arg(0))
		}
	case CommandCompile:
		if flagSet.NArg() != 1 {
			slog.Debug("No graph path provided, printing usage and exiting.")
			flagSet.Usage()
			return nil, true, nil
		}
		cmd.GraphPath = flagSet.Arg(0)
	case CommandWatch:
		if flagSet.NArg() != 1 {
			flagSet.Usage()
			return nil, true, nil
		}
		cmd.Watch = watch.Options{
			URL:            flagSet.Arg(0),
			RunID:          *runFlag,
			UntilDone:      *untilDoneFlag,
			ConnectTimeout: 10 * time.Second,
		}
	}

	slog.Debug("CLI parser finished successfully.", "command", name)
	return cmd, false, nil
}
