package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/25smoking/mcpscan/internal/core"
)

// ANSI 颜色代码
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorWhite  = "\033[37m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
)

// NoFindingsLine is printed for a report without vulnerabilities.
const NoFindingsLine = "No vulnerabilities found."

// Formatter renders reports as human-readable text.
type Formatter struct {
	// Color enables ANSI escape sequences.
	Color bool
}

// Format renders r without colors.
func Format(r *core.Report) string {
	return Formatter{}.Format(r)
}

// Format renders one block per finding followed by a severity summary. The
// report is not modified.
func (f Formatter) Format(r *core.Report) string {
	var b strings.Builder

	if !r.HasFindings() {
		b.WriteString(f.paint(ColorGreen, NoFindingsLine))
		b.WriteString("\n")
		f.writeError(&b, r)
		return b.String()
	}

	total := len(r.Vulnerabilities)
	fmt.Fprintf(&b, "%s\n\n", f.paint(ColorBold, fmt.Sprintf("Found %d vulnerabilities:", total)))

	for i, v := range r.Vulnerabilities {
		color := levelColor(v.Severity)
		fmt.Fprintf(&b, "%s %s\n", f.paint(ColorBold, fmt.Sprintf("(%d/%d)", i+1, total)), f.paint(color, string(v.Type)))
		fmt.Fprintf(&b, "  %s %s\n", f.paint(ColorDim, "Severity:"), f.paint(color, string(v.Severity)))
		fmt.Fprintf(&b, "  %s %s\n", f.paint(ColorDim, "Details:"), v.Details)
		fmt.Fprintf(&b, "  %s %s\n", f.paint(ColorDim, "Location:"), v.Location)
		fmt.Fprintf(&b, "  %s %s\n", f.paint(ColorDim, "Recommendation:"), f.paint(ColorYellow, v.Recommendation))
		b.WriteString("\n")
	}

	// 按级别统计
	counts := r.CountBySeverity()
	parts := make([]string, 0, len(core.Severities))
	for _, s := range core.Severities {
		parts = append(parts, f.paint(levelColor(s), fmt.Sprintf("%s: %d", s, counts[s])))
	}
	fmt.Fprintf(&b, "Summary: %s\n", strings.Join(parts, "  "))
	if r.Timestamp != "" {
		fmt.Fprintf(&b, "Scanned at %s in %dms\n", r.Timestamp, r.ScanDuration)
	}
	f.writeError(&b, r)
	return b.String()
}

func (f Formatter) writeError(b *strings.Builder, r *core.Report) {
	if r == nil || r.Error == nil {
		return
	}
	fmt.Fprintf(b, "%s %s\n", f.paint(ColorRed+ColorBold, "Scan error:"), r.Error.Message)
}

func (f Formatter) paint(color, text string) string {
	if !f.Color {
		return text
	}
	return color + text + ColorReset
}

func levelColor(s core.Severity) string {
	switch s {
	case core.SeverityCritical:
		return ColorRed + ColorBold
	case core.SeverityHigh:
		return ColorRed
	case core.SeverityMedium:
		return ColorYellow
	case core.SeverityLow:
		return ColorCyan
	default:
		return ColorWhite
	}
}

// FormatJSON renders the report as indented JSON.
func FormatJSON(r *core.Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	return string(data), nil
}
