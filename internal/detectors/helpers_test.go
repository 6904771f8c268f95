package detectors

import (
	"testing"

	"github.com/25smoking/mcpscan/internal/config"
	"github.com/25smoking/mcpscan/internal/core"
)

func testRules(t *testing.T) *config.Rules {
	t.Helper()
	rules, err := config.DefaultRules()
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	return rules
}

func testEngineConfig(t *testing.T) config.EngineConfig {
	t.Helper()
	cfg, err := config.DefaultScannerConfig()
	if err != nil {
		t.Fatalf("load scanner config: %v", err)
	}
	return cfg.Engine
}

func countType(findings []core.Finding, typ core.VulnType) int {
	n := 0
	for _, f := range findings {
		if f.Type == typ {
			n++
		}
	}
	return n
}
