package core

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
)

// DetectorFault is an unexpected failure inside one detector.
type DetectorFault struct {
	Detector string
	Err      error
	Stack    string
}

func (f *DetectorFault) Error() string {
	return fmt.Sprintf("detector %s: %v", f.Detector, f.Err)
}

func (f *DetectorFault) Unwrap() error { return f.Err }

// SafeRun runs a detector, turning both returned errors and panics into a
// *DetectorFault. Findings are discarded when the detector faults.
func SafeRun(ctx context.Context, d Detector, sc *ScanContext) (findings []Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			LoggerFrom(ctx).Error("detector panic",
				zap.String("detector", d.Name()),
				zap.Any("panic", r),
				zap.String("stack", stack),
			)
			findings = nil
			err = &DetectorFault{Detector: d.Name(), Err: fmt.Errorf("panic: %v", r), Stack: stack}
		}
	}()

	findings, err = d.Detect(ctx, sc)
	if err != nil {
		return nil, &DetectorFault{Detector: d.Name(), Err: err, Stack: string(debug.Stack())}
	}
	return findings, nil
}
