package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/25smoking/mcpscan/internal/core"
)

// ========== Detection Rules ==========

type Rules struct {
	WeakPasswords      []string   `yaml:"weak_passwords"`
	PlaintextProtocols []string   `yaml:"plaintext_protocols"`
	CodeRules          []CodeRule `yaml:"code_rules"`
}

// CodeRule flags plugin source text by substring or regular expression.
type CodeRule struct {
	Name           string        `yaml:"name"`
	Pattern        string        `yaml:"pattern"`
	Regex          string        `yaml:"regex"`
	Type           core.VulnType `yaml:"type"`
	Severity       core.Severity `yaml:"severity"`
	Details        string        `yaml:"details"`
	Recommendation string        `yaml:"recommendation"`

	re *regexp.Regexp
}

func (r *Rules) compile() error {
	for i := range r.CodeRules {
		rule := &r.CodeRules[i]
		if rule.Pattern == "" && rule.Regex == "" {
			return fmt.Errorf("code rule %q needs a pattern or a regex", rule.Name)
		}
		if rule.Regex != "" {
			re, err := regexp.Compile(rule.Regex)
			if err != nil {
				return fmt.Errorf("code rule %q: invalid regex: %w", rule.Name, err)
			}
			rule.re = re
		}
	}
	return nil
}

// IsWeakPassword reports whether pass case-insensitively matches the denylist.
func (r *Rules) IsWeakPassword(pass string) bool {
	lower := strings.ToLower(pass)
	for _, weak := range r.WeakPasswords {
		if lower == strings.ToLower(weak) {
			return true
		}
	}
	return false
}

// IsPlaintextProtocol reports whether proto names an unencrypted scheme.
func (r *Rules) IsPlaintextProtocol(proto string) bool {
	proto = core.NormalizeProtocol(proto)
	if proto == "" {
		return false
	}
	for _, p := range r.PlaintextProtocols {
		if proto == core.NormalizeProtocol(p) {
			return true
		}
	}
	return false
}

// Match returns the 1-based line of the first match in code.
func (c *CodeRule) Match(code string) (int, bool) {
	for i, line := range strings.Split(code, "\n") {
		if c.matchLine(line) {
			return i + 1, true
		}
	}
	return 0, false
}

func (c *CodeRule) matchLine(line string) bool {
	if c.re != nil {
		return c.re.MatchString(line)
	}
	return strings.Contains(line, c.Pattern)
}
