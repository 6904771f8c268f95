package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log *zap.SugaredLogger

	// Command line flags
	debugMode bool
	quietMode bool
)

// errFindings makes the process exit with status 1 without printing an error.
var errFindings = errors.New("vulnerabilities found")

func init() {
	log = zap.NewNop().Sugar()
}

var rootCmd = &cobra.Command{
	Use:   "mcpscan",
	Short: "mcpscan - rule-based vulnerability scanner for MCP servers and plugins",
	Long: `mcpscan runs a fixed set of detectors (memory, filesystem, plugin trust,
network and configuration) against a described environment.

The "serve" command exposes the engine over WebSocket; the "scan" command
submits a local project to a running server and prints the report.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(debugMode, quietMode)
		if err != nil {
			return err
		}
		log = logger.Sugar()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quietMode, "quiet", "q", false, "minimal output")

	rootCmd.AddCommand(newServeCmd(), newScanCmd())
}

func newLogger(debug, quiet bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	switch {
	case debug:
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case quiet:
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) (code int) {
	// Ensure proper cleanup on exit
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic: %v", r)
			code = 1
		}
		_ = log.Sync()
	}()

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errFindings) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return 1
	}
	return 0
}
