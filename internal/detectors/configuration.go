package detectors

import (
	"context"
	"fmt"
	"sort"

	"github.com/25smoking/mcpscan/internal/config"
	"github.com/25smoking/mcpscan/internal/core"
)

type ConfigurationDetector struct {
	rules *config.Rules
}

func NewConfigurationDetector(rules *config.Rules) *ConfigurationDetector {
	return &ConfigurationDetector{rules: rules}
}

func (d *ConfigurationDetector) Name() string {
	return "Configuration"
}

func (d *ConfigurationDetector) Detect(ctx context.Context, sc *core.ScanContext) ([]core.Finding, error) {
	var findings []core.Finding

	// 1. 弱口令, sorted so reports are reproducible
	if d.rules != nil && len(sc.Credentials) > 0 {
		users := make([]string, 0, len(sc.Credentials))
		for user := range sc.Credentials {
			users = append(users, user)
		}
		sort.Strings(users)

		for _, user := range users {
			if !d.rules.IsWeakPassword(sc.Credentials[user]) {
				continue
			}
			findings = append(findings, core.Finding{
				Type:           core.VulnWeakCredentials,
				Severity:       core.SeverityHigh,
				Details:        fmt.Sprintf("Weak password detected for user: %s", user),
				Location:       "authentication",
				Recommendation: "Implement strong password requirements",
			})
		}
	}

	// 2. 不安全配置
	if sc.Config == nil {
		return findings, nil
	}
	if sc.Config.Debug() {
		findings = append(findings, core.Finding{
			Type:           core.VulnDebugMode,
			Severity:       core.SeverityMedium,
			Details:        "Debug mode is enabled in production",
			Location:       "configuration",
			Recommendation: "Disable debug mode in production",
		})
	}
	if !sc.Config.CSRFProtection() {
		findings = append(findings, core.Finding{
			Type:           core.VulnMissingCSRF,
			Severity:       core.SeverityHigh,
			Details:        "CSRF protection is not enabled",
			Location:       "configuration",
			Recommendation: "Enable CSRF protection",
		})
	}

	return findings, nil
}
