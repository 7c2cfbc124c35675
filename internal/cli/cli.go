package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/chemrig/internal/app"
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
	flagSet := flag.NewFlagSet("chemrig", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
chemrig - Run automated synthesis scripts against a modular rig.

Usage:
  chemrig [options] SCRIPT_PATH

Arguments:
  SCRIPT_PATH
    Path to the .chasm script to execute.

Options:
`)
		flagSet.PrintDefaults()
	}

	rigFlag := flagSet.String("rig", "", "Path to the rig .hcl file or a directory of them.")
	scriptFlag := flagSet.String("script", "", "Path to the script to execute.")
	simulationFlag := flagSet.Bool("simulation", false, "Run against simulated hardware instead of the real rig.")
	resumeFlag := flagSet.Bool("resume", false, "Restore vessel volumes from the snapshot before running.")
	snapshotFlag := flagSet.String("snapshot", "snapshot.json", "Where vessel volumes are dumped after each instruction. Empty disables snapshots.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	videoFlag := flagSet.String("video-endpoint", "", "socket.io endpoint of the video logger. Empty is disabled.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	scriptPath := *scriptFlag
	if scriptPath == "" && flagSet.NArg() > 0 {
		scriptPath = flagSet.Arg(0)
	}
	slog.Debug("Script path determined.", "path", scriptPath)

	if scriptPath == "" {
		slog.Debug("No script path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}
	if *rigFlag == "" {
		return nil, false, &ExitError{Code: 2, Message: "missing required -rig flag"}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		RigPath:         *rigFlag,
		ScriptPath:      scriptPath,
		Simulation:      *simulationFlag,
		Resume:          *resumeFlag,
		SnapshotPath:    *snapshotFlag,
		HealthcheckPort: *healthPortFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		VideoEndpoint:   *videoFlag,
	})

	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
