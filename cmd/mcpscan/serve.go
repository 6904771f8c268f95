package main

import (
	"context"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/25smoking/mcpscan/internal/config"
	"github.com/25smoking/mcpscan/internal/engine"
	"github.com/25smoking/mcpscan/internal/transport"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type serveOptions struct {
	configPath string
	rulesPath  string
	host       string
	port       int
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scanner server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "scanner config file (default: config/scanner.yaml or embedded)")
	cmd.Flags().StringVar(&opts.rulesPath, "rules", "", "detection rules file (default: config/rules.yaml or embedded)")
	cmd.Flags().StringVar(&opts.host, "host", "", "listen host (overrides config)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "listen port (overrides config)")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts *serveOptions) error {
	cfg, err := config.LoadScannerConfig(opts.configPath)
	if err != nil {
		return err
	}
	rules, err := config.LoadRules(opts.rulesPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = opts.host
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = opts.port
	}

	logHostInfo(ctx)

	logger := log.Desugar()
	eng := engine.New(cfg.Engine, rules, engine.WithLogger(logger.Named("engine")))
	log.Infow("engine ready",
		"detectors", eng.Detectors(),
		"timeout", eng.Timeout(),
		"probe_local_ports", cfg.Engine.ProbeLocalPorts,
	)

	srv := transport.NewServer(eng, cfg.Server, logger.Named("server"))
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("shutdown incomplete", zap.Error(err))
	}
	return <-errCh
}

// logHostInfo 记录运行环境
func logHostInfo(ctx context.Context) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		log.Debugf("host info unavailable: %v", err)
		return
	}
	log.Infow("host",
		"hostname", info.Hostname,
		"platform", info.Platform,
		"platform_version", info.PlatformVersion,
		"kernel", info.KernelVersion,
		"arch", runtime.GOARCH,
		"uptime", (time.Duration(info.Uptime) * time.Second).String(),
	)
}
