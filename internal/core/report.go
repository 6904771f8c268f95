package core

import (
	"time"
)

// TimestampLayout is the ISO-8601 layout used for report timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Report is the aggregated output of one scan.
type Report struct {
	Vulnerabilities []Finding  `json:"vulnerabilities"`
	Timestamp       string     `json:"timestamp"`
	ScanDuration    int64      `json:"scanDuration"`
	Error           *ScanError `json:"error,omitempty"`
}

// ScanError carries the message and trace of the faults hit during a scan.
type ScanError struct {
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

// NewReport starts an empty report stamped with the given time.
func NewReport(at time.Time) *Report {
	return &Report{
		Vulnerabilities: make([]Finding, 0),
		Timestamp:       at.UTC().Format(TimestampLayout),
	}
}

// HasFindings reports whether any vulnerability was found.
func (r *Report) HasFindings() bool {
	return r != nil && len(r.Vulnerabilities) > 0
}

// CountBySeverity tallies findings per severity.
func (r *Report) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int, len(Severities))
	for _, s := range Severities {
		counts[s] = 0
	}
	if r == nil {
		return counts
	}
	for _, f := range r.Vulnerabilities {
		counts[f.Severity]++
	}
	return counts
}
