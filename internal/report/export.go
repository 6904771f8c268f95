package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/25smoking/mcpscan/internal/core"
	"go.uber.org/multierr"
)

// Export formats understood by SaveReports.
const (
	FormatJSONFile = "json"
	FormatCSVFile  = "csv"
	FormatHTMLFile = "html"
)

// AllFormats is used when SaveReports is called without formats.
var AllFormats = []string{FormatJSONFile, FormatCSVFile, FormatHTMLFile}

// SaveReports writes the report to dir once per format and returns the created
// files. A failing format does not stop the others.
func SaveReports(dir string, r *core.Report, formats ...string) ([]string, error) {
	if len(formats) == 0 {
		formats = AllFormats
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	stamp := fileStamp(r)
	var (
		written []string
		errs    error
	)
	for _, format := range formats {
		var save func(string, *core.Report) error
		switch format {
		case FormatJSONFile:
			save = saveJSON
		case FormatCSVFile:
			save = saveCSV
		case FormatHTMLFile:
			save = saveHTML
		default:
			errs = multierr.Append(errs, fmt.Errorf("unknown report format %q", format))
			continue
		}

		filename := filepath.Join(dir, fmt.Sprintf("mcpscan_report_%s.%s", stamp, format))
		if err := save(filename, r); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("write %s: %w", filename, err))
			continue
		}
		written = append(written, filename)
	}
	return written, errs
}

func fileStamp(r *core.Report) string {
	t, err := time.Parse(core.TimestampLayout, r.Timestamp)
	if err != nil {
		t = time.Now()
	}
	return t.Format("20060102_150405")
}

func saveJSON(filename string, r *core.Report) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

func saveCSV(filename string, r *core.Report) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	// BOM 防止 Excel 乱码
	if _, err := f.Write([]byte("\xEF\xBB\xBF")); err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Type", "Severity", "Details", "Location", "Recommendation"}); err != nil {
		return err
	}
	for _, v := range r.Vulnerabilities {
		row := []string{string(v.Type), string(v.Severity), v.Details, v.Location, v.Recommendation}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func saveHTML(filename string, r *core.Report) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteHTML(f, r)
}
