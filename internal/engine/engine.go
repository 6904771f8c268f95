// Package engine runs the fixed detector set against a scan context and folds
// their outcomes into a single report.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/25smoking/mcpscan/internal/config"
	"github.com/25smoking/mcpscan/internal/core"
	"github.com/25smoking/mcpscan/internal/detectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrScanTimeout is returned when a scan exceeds its time budget.
var ErrScanTimeout = errors.New("scan timed out")

// Engine owns an immutable detector list. It holds no per-scan state, so one Engine
// can serve concurrent scans.
type Engine struct {
	detectors []core.Detector
	timeout   time.Duration
	logger    *zap.Logger
}

type options struct {
	logger      *zap.Logger
	timeout     time.Duration
	memoryProbe detectors.MemoryProbe
	portProbe   detectors.PortProbe
	verifier    detectors.SignatureVerifier
	detectors   []core.Detector
}

// Option customizes an Engine.
type Option func(*options)

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTimeout overrides the configured per-scan timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func WithMemoryProbe(p detectors.MemoryProbe) Option {
	return func(o *options) { o.memoryProbe = p }
}

func WithPortProbe(p detectors.PortProbe) Option {
	return func(o *options) { o.portProbe = p }
}

func WithVerifier(v detectors.SignatureVerifier) Option {
	return func(o *options) { o.verifier = v }
}

// WithDetectors replaces the built-in detector list.
func WithDetectors(ds ...core.Detector) Option {
	return func(o *options) { o.detectors = append([]core.Detector{}, ds...) }
}

// New builds an engine running Memory, Filesystem, PluginTrust, Network and
// Configuration, in that order.
func New(cfg config.EngineConfig, rules *config.Rules, opts ...Option) *Engine {
	o := options{timeout: cfg.Timeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.timeout <= 0 {
		o.timeout = 30 * time.Second
	}
	if o.portProbe == nil && cfg.ProbeLocalPorts {
		o.portProbe = detectors.ListeningPorts
	}

	list := o.detectors
	if list == nil {
		list = []core.Detector{
			detectors.NewMemoryDetector(cfg, o.memoryProbe),
			detectors.NewFilesystemDetector(),
			detectors.NewPluginTrustDetector(rules, o.verifier),
			detectors.NewNetworkDetector(rules, o.portProbe),
			detectors.NewConfigurationDetector(rules),
		}
	}

	return &Engine{detectors: list, timeout: o.timeout, logger: o.logger}
}

// Detectors returns the detector names in execution order.
func (e *Engine) Detectors() []string {
	names := make([]string, len(e.detectors))
	for i, d := range e.detectors {
		names[i] = d.Name()
	}
	return names
}

// Timeout is the per-scan time budget.
func (e *Engine) Timeout() time.Duration {
	return e.timeout
}

type outcome struct {
	findings []core.Finding
	faults   error
}

// Scan runs every detector against sc. A detector fault is recorded in
// Report.Error and the remaining detectors still run. An error is returned only
// when the scan is abandoned because ctx ended or the timeout expired.
func (e *Engine) Scan(ctx context.Context, sc *core.ScanContext) (*core.Report, error) {
	if sc == nil {
		sc = &core.ScanContext{}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	ctx = core.WithLogger(ctx, e.logger)

	start := time.Now()
	report := core.NewReport(start)

	done := make(chan outcome, 1)
	go func() {
		done <- e.run(ctx, sc)
	}()

	select {
	case out := <-done:
		if err := ctx.Err(); err != nil {
			return nil, e.abandoned(err)
		}
		report.Vulnerabilities = append(report.Vulnerabilities, out.findings...)
		report.Error = scanError(out.faults)
	case <-ctx.Done():
		return nil, e.abandoned(ctx.Err())
	}

	report.ScanDuration = time.Since(start).Milliseconds()
	e.logger.Debug("scan finished",
		zap.Int("findings", len(report.Vulnerabilities)),
		zap.Int64("duration_ms", report.ScanDuration),
		zap.Bool("faulted", report.Error != nil),
	)
	return report, nil
}

func (e *Engine) run(ctx context.Context, sc *core.ScanContext) outcome {
	var out outcome
	for _, d := range e.detectors {
		if ctx.Err() != nil {
			return out
		}

		started := time.Now()
		findings, err := core.SafeRun(ctx, d, sc)
		if err != nil {
			if ctx.Err() != nil {
				return out
			}
			e.logger.Warn("detector faulted", zap.String("detector", d.Name()), zap.Error(err))
			out.faults = multierr.Append(out.faults, err)
			continue
		}

		e.logger.Debug("detector finished",
			zap.String("detector", d.Name()),
			zap.Int("findings", len(findings)),
			zap.Duration("elapsed", time.Since(started)),
		)
		out.findings = append(out.findings, findings...)
	}
	return out
}

func (e *Engine) abandoned(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		e.logger.Warn("scan abandoned", zap.Duration("timeout", e.timeout))
		return fmt.Errorf("%w after %s", ErrScanTimeout, e.timeout)
	}
	e.logger.Info("scan cancelled", zap.Error(err))
	return err
}

// scanError flattens every detector fault into one message and one trace.
func scanError(faults error) *core.ScanError {
	errs := multierr.Errors(faults)
	if len(errs) == 0 {
		return nil
	}

	messages := make([]string, 0, len(errs))
	var stack strings.Builder
	for _, err := range errs {
		messages = append(messages, err.Error())

		var fault *core.DetectorFault
		if errors.As(err, &fault) && fault.Stack != "" {
			if stack.Len() > 0 {
				stack.WriteString("\n")
			}
			fmt.Fprintf(&stack, "%s\n%s", fault.Error(), fault.Stack)
		}
	}
	return &core.ScanError{Message: strings.Join(messages, "; "), Stack: stack.String()}
}
