package core

// Severity ranks a finding.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// VulnType tags the category of a finding.
type VulnType string

const (
	VulnMemoryLeak        VulnType = "MEMORY_LEAK"
	VulnBufferOverflow    VulnType = "BUFFER_OVERFLOW"
	VulnInsecureFilePerms VulnType = "INSECURE_FILE_PERMISSIONS"
	VulnPathTraversal     VulnType = "PATH_TRAVERSAL"
	VulnUnsignedPlugin    VulnType = "UNSIGNED_PLUGIN"
	VulnUnsafeEval        VulnType = "UNSAFE_EVAL"
	VulnDangerousImport   VulnType = "DANGEROUS_IMPORT"
	VulnInsecureConn      VulnType = "INSECURE_CONNECTION"
	VulnOpenPort          VulnType = "OPEN_PORT"
	VulnWeakCredentials   VulnType = "WEAK_CREDENTIALS"
	VulnDebugMode         VulnType = "DEBUG_MODE"
	VulnMissingCSRF       VulnType = "MISSING_CSRF"
)

// Finding is one discovered issue.
type Finding struct {
	Type           VulnType `json:"type"`
	Severity       Severity `json:"severity"`
	Details        string   `json:"details"`
	Location       string   `json:"location"`
	Recommendation string   `json:"recommendation"`
}
