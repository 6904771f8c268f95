package detectors

import (
	"context"
	"fmt"
	"strings"

	"github.com/25smoking/mcpscan/internal/config"
	"github.com/25smoking/mcpscan/internal/core"
	"go.uber.org/zap"
)

type PluginTrustDetector struct {
	rules    *config.Rules
	verifier SignatureVerifier
}

// NewPluginTrustDetector builds the detector; a nil verifier means DefaultVerifier.
func NewPluginTrustDetector(rules *config.Rules, verifier SignatureVerifier) *PluginTrustDetector {
	if verifier == nil {
		verifier = DefaultVerifier{}
	}
	return &PluginTrustDetector{rules: rules, verifier: verifier}
}

func (d *PluginTrustDetector) Name() string {
	return "PluginTrust"
}

func (d *PluginTrustDetector) Detect(ctx context.Context, sc *core.ScanContext) ([]core.Finding, error) {
	var findings []core.Finding
	logger := core.LoggerFrom(ctx)

	for _, plugin := range sc.Plugins {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		location := plugin.Path
		if location == "" {
			location = plugin.Name
		}

		// 1. 签名校验
		if err := d.verifier.Verify(plugin); err != nil {
			logger.Debug("plugin not verified", zap.String("plugin", plugin.Name), zap.Error(err))
			findings = append(findings, core.Finding{
				Type:           core.VulnUnsignedPlugin,
				Severity:       core.SeverityHigh,
				Details:        fmt.Sprintf("Plugin %s is not properly signed", plugin.Name),
				Location:       location,
				Recommendation: "Implement plugin signing and verification",
			})
		}

		// 2. 代码规则 (eval, child_process ...)
		if plugin.Code == "" || d.rules == nil {
			continue
		}
		for i := range d.rules.CodeRules {
			rule := &d.rules.CodeRules[i]
			line, ok := rule.Match(plugin.Code)
			if !ok {
				continue
			}
			findings = append(findings, core.Finding{
				Type:           rule.Type,
				Severity:       rule.Severity,
				Details:        fmt.Sprintf("%s (line %d)", ruleDetails(rule, plugin.Name), line),
				Location:       location,
				Recommendation: rule.Recommendation,
			})
		}
	}

	return findings, nil
}

func ruleDetails(rule *config.CodeRule, pluginName string) string {
	if strings.Contains(rule.Details, "%s") {
		return fmt.Sprintf(rule.Details, pluginName)
	}
	if rule.Details == "" {
		return fmt.Sprintf("Plugin %s matched rule %s", pluginName, rule.Name)
	}
	return rule.Details
}
