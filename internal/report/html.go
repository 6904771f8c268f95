package report

import (
	"html/template"
	"io"
	"strings"

	"github.com/25smoking/mcpscan/internal/core"
)

const reportTemplate = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Vulnerability Scan Report</title>
    <style>
        :root {
            --bg-color: #f8f9fa;
            --card-bg: #ffffff;
            --text-color: #333;
            --critical: #dc3545;
            --high: #fd7e14;
            --medium: #ffc107;
            --low: #28a745;
            --border-color: #dee2e6;
        }
        body { font-family: 'Segoe UI', sans-serif; background: var(--bg-color); color: var(--text-color); margin: 0; padding: 20px; }
        .container { max-width: 1200px; margin: 0 auto; }
        .header { text-align: center; margin-bottom: 30px; }
        .stats { display: flex; gap: 20px; margin-bottom: 20px; }
        .stat-card { flex: 1; background: var(--card-bg); padding: 20px; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); text-align: center; }
        .stat-num { font-size: 2em; font-weight: bold; }
        .critical { color: var(--critical); }
        .high { color: var(--high); }
        .medium { color: var(--medium); }
        .low { color: var(--low); }
        
        .finding-card { background: var(--card-bg); border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); margin-bottom: 15px; border-left: 5px solid #ccc; overflow: hidden; }
        .finding-card.critical { border-left-color: var(--critical); }
        .finding-card.high { border-left-color: var(--high); }
        .finding-card.medium { border-left-color: var(--medium); }
        .finding-card.low { border-left-color: var(--low); }
        
        .finding-header { padding: 15px; background: rgba(0,0,0,0.02); display: flex; justify-content: space-between; align-items: center; cursor: pointer; }
        .finding-title { font-weight: bold; display: flex; align-items: center; gap: 10px; }
        .badge { padding: 4px 8px; border-radius: 4px; color: white; font-size: 0.8em; text-transform: uppercase; }
        .bg-critical { background: var(--critical); }
        .bg-high { background: var(--high); }
        .bg-medium { background: var(--medium); color: black; }
        .bg-low { background: var(--low); }
        
        .finding-body { padding: 15px; display: none; border-top: 1px solid var(--border-color); }
        .finding-body.open { display: block; }
        .detail-row { margin-bottom: 10px; }
        .label { font-weight: bold; color: #666; }
        code { background: #eee; padding: 2px 5px; border-radius: 3px; word-break: break-all; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Vulnerability Scan Report</h1>
            <p>Scanned at {{ .Report.Timestamp }} in {{ .Report.ScanDuration }}ms</p>
        </div>

        <div class="stats">
            <div class="stat-card">
                <div class="stat-num critical">{{ index .Stats "CRITICAL" }}</div>
                <div>Critical</div>
            </div>
            <div class="stat-card">
                <div class="stat-num high">{{ index .Stats "HIGH" }}</div>
                <div>High</div>
            </div>
            <div class="stat-card">
                <div class="stat-num medium">{{ index .Stats "MEDIUM" }}</div>
                <div>Medium</div>
            </div>
            <div class="stat-card">
                <div class="stat-num low">{{ index .Stats "LOW" }}</div>
                <div>Low</div>
            </div>
        </div>

        {{ with .Report.Error }}
        <div class="finding-card critical">
            <div class="finding-header"><div class="finding-title">Scan error: {{ .Message }}</div></div>
        </div>
        {{ end }}

        <div id="findings">
            {{ range .Report.Vulnerabilities }}
            <div class="finding-card {{ lower .Severity }}">
                <div class="finding-header" onclick="this.nextElementSibling.classList.toggle('open')">
                    <div class="finding-title">
                        <span class="badge bg-{{ lower .Severity }}">{{ .Severity }}</span>
                        [{{ .Type }}] {{ .Details }}
                    </div>
                    <div>&#9660;</div>
                </div>
                <div class="finding-body">
                    <div class="detail-row"><span class="label">Location:</span> <code>{{ .Location }}</code></div>
                    {{ if .Recommendation }}
                    <div class="detail-row"><span class="label">Recommendation:</span> {{ .Recommendation }}</div>
                    {{ end }}
                </div>
            </div>
            {{ else }}
            <div style="text-align: center; padding: 40px; color: #666;">
                No vulnerabilities found.
            </div>
            {{ end }}
        </div>
    </div>
</body>
</html>
`

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"lower": func(s core.Severity) string { return strings.ToLower(string(s)) },
}).Parse(reportTemplate))

type htmlData struct {
	Report *core.Report
	Stats  map[string]int
}

// WriteHTML renders the report as a standalone HTML page.
func WriteHTML(w io.Writer, r *core.Report) error {
	stats := make(map[string]int, len(core.Severities))
	for s, n := range r.CountBySeverity() {
		stats[string(s)] = n
	}
	return htmlTemplate.Execute(w, htmlData{Report: r, Stats: stats})
}
