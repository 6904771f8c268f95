package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/25smoking/mcpscan/internal/core"
	"github.com/25smoking/mcpscan/internal/embedded"
	"gopkg.in/yaml.v3"
)

// ========== Scanner Config ==========

type ScannerConfig struct {
	Engine EngineConfig `yaml:"engine"`
	Server ServerConfig `yaml:"server"`
}

type EngineConfig struct {
	MemoryThresholdMB int64         `yaml:"memory_threshold_mb"`
	BufferLimit       int64         `yaml:"buffer_limit"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxDepth          int           `yaml:"max_depth"`
	ExcludedPaths     []string      `yaml:"excluded_paths"`
	PluginExtensions  []string      `yaml:"plugin_extensions"`
	ProbeLocalPorts   bool          `yaml:"probe_local_ports"`
}

// MemoryThreshold returns the heap threshold in bytes.
func (e EngineConfig) MemoryThreshold() uint64 {
	return uint64(e.MemoryThresholdMB) * 1024 * 1024
}

type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadLimit      int64         `yaml:"read_limit"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxScanTimeout time.Duration `yaml:"max_scan_timeout"`
}

// Addr joins host and port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (c *ScannerConfig) validate() error {
	if c.Engine.MemoryThresholdMB <= 0 {
		return errors.New("engine.memory_threshold_mb must be positive")
	}
	if c.Engine.BufferLimit <= 0 {
		return errors.New("engine.buffer_limit must be positive")
	}
	if c.Engine.Timeout <= 0 {
		return errors.New("engine.timeout must be positive")
	}
	if c.Engine.MaxDepth < 0 {
		return fmt.Errorf("engine.max_depth cannot be negative (got %d)", c.Engine.MaxDepth)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range (got %d)", c.Server.Port)
	}
	return nil
}

// ========== Loader Functions ==========

func loadConfigData(configPath, defaultName string) ([]byte, error) {
	// 1. 文件系统
	if configPath == "" {
		configPath = findConfigFile(defaultName)
	}
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return os.ReadFile(configPath)
		}
	}

	// 2. 内嵌配置 (embed always uses forward slashes)
	return embedded.Content.ReadFile("config/" + defaultName)
}

// findConfigFile looks for config/<name> under the working directory, then next
// to the executable. It returns "" when neither exists.
func findConfigFile(name string) string {
	candidates := []string{filepath.Join("config", name)}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "config", name))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LoadScannerConfig reads scanner.yaml from configPath, falling back to the embedded
// defaults. Keys missing from an external file keep their default value.
func LoadScannerConfig(configPath string) (*ScannerConfig, error) {
	cfg, err := DefaultScannerConfig()
	if err != nil {
		return nil, err
	}

	data, err := loadConfigData(configPath, "scanner.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read scanner config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse scanner config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid scanner config: %w", err)
	}
	return cfg, nil
}

// DefaultScannerConfig returns the embedded scanner.yaml.
func DefaultScannerConfig() (*ScannerConfig, error) {
	data, err := embedded.Content.ReadFile("config/scanner.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded scanner config: %w", err)
	}
	var cfg ScannerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse embedded scanner config: %w", err)
	}
	return &cfg, nil
}

// LoadRules reads rules.yaml from configPath, falling back to the embedded rules.
func LoadRules(configPath string) (*Rules, error) {
	data, err := loadConfigData(configPath, "rules.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	return parseRules(data)
}

// DefaultRules returns the embedded rules.yaml.
func DefaultRules() (*Rules, error) {
	data, err := embedded.Content.ReadFile("config/rules.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded rules: %w", err)
	}
	return parseRules(data)
}

func parseRules(data []byte) (*Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if err := rules.compile(); err != nil {
		return nil, err
	}
	return &rules, nil
}

// LoadProfile reads a client scan profile: a YAML document whose keys mirror the
// scan context fields.
func LoadProfile(path string) (*core.ScanContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan profile: %w", err)
	}
	var sc core.ScanContext
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scan profile: %w", err)
	}
	return &sc, nil
}
