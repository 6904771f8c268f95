package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/25smoking/mcpscan/internal/core"
)

func sampleReport() *core.Report {
	return &core.Report{
		Vulnerabilities: []core.Finding{
			{
				Type:           core.VulnUnsafeEval,
				Severity:       core.SeverityCritical,
				Details:        "Plugin demo uses eval() (line 3)",
				Location:       "plugins/demo.js",
				Recommendation: "Remove eval() usage",
			},
			{
				Type:           core.VulnDebugMode,
				Severity:       core.SeverityMedium,
				Details:        "Debug mode is enabled in production",
				Location:       "configuration",
				Recommendation: "Disable debug mode in production",
			},
		},
		Timestamp:    "2024-05-06T07:08:09.010Z",
		ScanDuration: 12,
	}
}

func TestFormatEmptyReport(t *testing.T) {
	got := Format(core.NewReport(time.Now()))
	if strings.TrimSpace(got) != NoFindingsLine {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestFormatRendersEveryFinding(t *testing.T) {
	r := sampleReport()
	before := *r
	before.Vulnerabilities = append([]core.Finding(nil), r.Vulnerabilities...)

	out := Format(r)

	for _, v := range r.Vulnerabilities {
		for _, want := range []string{string(v.Type), string(v.Severity), v.Details, v.Location, v.Recommendation} {
			if !strings.Contains(out, want) {
				t.Fatalf("output missing %q:\n%s", want, out)
			}
		}
	}
	if !strings.Contains(out, "CRITICAL: 1") || !strings.Contains(out, "MEDIUM: 1") || !strings.Contains(out, "HIGH: 0") {
		t.Fatalf("missing severity summary:\n%s", out)
	}
	if strings.Contains(out, NoFindingsLine) {
		t.Fatalf("non-empty report rendered as clean:\n%s", out)
	}
	if strings.Contains(out, "\033[") {
		t.Fatalf("plain formatter emitted ANSI codes")
	}
	if !reflect.DeepEqual(before, *r) {
		t.Fatal("Format mutated the report")
	}
}

func TestFormatColorAndError(t *testing.T) {
	r := sampleReport()
	r.Error = &core.ScanError{Message: "detector Memory: boom", Stack: "trace"}

	out := Formatter{Color: true}.Format(r)
	if !strings.Contains(out, ColorRed) || !strings.Contains(out, ColorReset) {
		t.Fatalf("expected ANSI colors:\n%q", out)
	}
	if !strings.Contains(out, "detector Memory: boom") {
		t.Fatalf("scan error not rendered:\n%s", out)
	}
}

func TestFormatJSONIsIndented(t *testing.T) {
	out, err := FormatJSON(sampleReport())
	if err != nil {
		t.Fatalf("format json: %v", err)
	}
	if !strings.Contains(out, "\n  \"vulnerabilities\": [") {
		t.Fatalf("expected indented JSON:\n%s", out)
	}

	var decoded core.Report
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(*sampleReport(), decoded) {
		t.Fatalf("decoded report differs: %#v", decoded)
	}
}

func TestWriteHTML(t *testing.T) {
	r := sampleReport()
	r.Vulnerabilities[0].Details = "<script>alert(1)</script>"

	var buf bytes.Buffer
	if err := WriteHTML(&buf, r); err != nil {
		t.Fatalf("write html: %v", err)
	}
	page := buf.String()
	if strings.Contains(page, "<script>alert(1)</script>") {
		t.Fatal("details were not escaped")
	}
	for _, want := range []string{"UNSAFE_EVAL", "finding-card critical", "finding-card medium", r.Timestamp} {
		if !strings.Contains(page, want) {
			t.Fatalf("page missing %q", want)
		}
	}

	buf.Reset()
	if err := WriteHTML(&buf, core.NewReport(time.Now())); err != nil {
		t.Fatalf("write empty html: %v", err)
	}
	if !strings.Contains(buf.String(), NoFindingsLine) {
		t.Fatal("empty report page missing clean message")
	}
}

func TestSaveReports(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	files, err := SaveReports(dir, sampleReport())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %v", files)
	}
	for i, ext := range []string{".json", ".csv", ".html"} {
		if filepath.Ext(files[i]) != ext || !strings.Contains(files[i], "20240506_070809") {
			t.Fatalf("unexpected file name %s", files[i])
		}
	}

	raw, err := os.ReadFile(files[1])
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte("\xEF\xBB\xBF")) {
		t.Fatal("csv missing BOM")
	}
	rows, err := csv.NewReader(bytes.NewReader(raw[3:])).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 || rows[1][0] != "UNSAFE_EVAL" || rows[2][3] != "configuration" {
		t.Fatalf("unexpected csv rows %v", rows)
	}
}

func TestSaveReportsUnknownFormat(t *testing.T) {
	files, err := SaveReports(t.TempDir(), sampleReport(), "excel", FormatJSONFile)
	if err == nil || !strings.Contains(err.Error(), `"excel"`) {
		t.Fatalf("expected unknown format error, got %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("json export should still be written, got %v", files)
	}
}
