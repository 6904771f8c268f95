package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/25smoking/mcpscan/internal/config"
	"github.com/25smoking/mcpscan/internal/core"
	"github.com/25smoking/mcpscan/internal/report"
	"github.com/25smoking/mcpscan/internal/source"
	"github.com/25smoking/mcpscan/internal/transport"
	"github.com/spf13/cobra"
)

type scanOptions struct {
	host          string
	port          int
	profile       string
	jsonOutput    bool
	pluginDir     string
	publicKeyFile string
	scannerConfig string
	outputDir     string
	timeout       time.Duration
}

func newScanCmd() *cobra.Command {
	opts := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan [options] <path>",
		Short: "Scan a project through a running scanner server",
		Example: `  mcpscan scan /path/to/project
  mcpscan scan --port 3001 /path/to/project
  mcpscan scan --json /path/to/project > results.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.host, "host", "localhost", "server host")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 3000, "server port")
	cmd.Flags().StringVarP(&opts.profile, "config", "c", "", "scan profile (YAML scan context)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "output results in JSON format")
	cmd.Flags().StringVar(&opts.pluginDir, "plugins", "", "directory of plugin sources to verify")
	cmd.Flags().StringVar(&opts.publicKeyFile, "public-key", "", "public key used for plugins without a .pub file")
	cmd.Flags().StringVar(&opts.scannerConfig, "scanner-config", "", "scanner config providing plugin walk settings")
	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "also write JSON, CSV and HTML reports to this directory")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", transport.DefaultResponseTimeout, "time to wait for the report")
	return cmd
}

func runScan(ctx context.Context, stdout, stderr io.Writer, target string, opts *scanOptions) error {
	sc, err := buildScanContext(ctx, target, opts)
	if err != nil {
		return err
	}

	client := transport.NewClient(
		transport.ServerURL(opts.host, opts.port),
		transport.WithResponseTimeout(opts.timeout),
		transport.WithClientLogger(log.Desugar().Named("client")),
	)

	progress(stderr, "Connecting to scanner server...")
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	progress(stderr, "Starting security scan...")
	rep, err := client.Scan(ctx, sc)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		out, err := report.FormatJSON(rep)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, out)
	} else {
		fmt.Fprint(stdout, report.Formatter{Color: isTerminal(stdout)}.Format(rep))
	}

	if opts.outputDir != "" {
		files, err := report.SaveReports(opts.outputDir, rep)
		for _, f := range files {
			progress(stderr, "Report saved: "+f)
		}
		if err != nil {
			return err
		}
	}

	if rep.HasFindings() {
		return errFindings
	}
	return nil
}

// buildScanContext merges the optional profile, the scan root and any local
// plugin sources into one context.
func buildScanContext(ctx context.Context, target string, opts *scanOptions) (*core.ScanContext, error) {
	root, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	sc := &core.ScanContext{}
	if opts.profile != "" {
		if sc, err = config.LoadProfile(opts.profile); err != nil {
			return nil, err
		}
	}
	sc.BasePath = root

	if opts.pluginDir == "" {
		return sc, nil
	}

	cfg, err := config.LoadScannerConfig(opts.scannerConfig)
	if err != nil {
		return nil, err
	}
	var collectorOpts []source.Option
	collectorOpts = append(collectorOpts, source.WithLogger(log.Desugar().Named("source")))
	if opts.publicKeyFile != "" {
		key, err := os.ReadFile(opts.publicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
		collectorOpts = append(collectorOpts, source.WithPublicKey(string(key)))
	}

	plugins, err := source.NewCollector(cfg.Engine, collectorOpts...).Collect(ctx, opts.pluginDir)
	if err != nil {
		return nil, err
	}
	sc.Plugins = append(sc.Plugins, plugins...)
	log.Debugf("collected %d plugin sources from %s", len(plugins), opts.pluginDir)
	return sc, nil
}

func progress(w io.Writer, msg string) {
	if quietMode {
		return
	}
	fmt.Fprintln(w, msg)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
