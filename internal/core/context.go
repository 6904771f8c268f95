package core

import "strings"

// ScanContext describes the environment to inspect. Every field is optional and
// detectors treat the value as read-only.
type ScanContext struct {
	BasePath       string            `json:"basePath,omitempty" yaml:"basePath"`
	BufferSize     *int64            `json:"bufferSize,omitempty" yaml:"bufferSize"`
	BufferLocation string            `json:"bufferLocation,omitempty" yaml:"bufferLocation"`
	Paths          []string          `json:"paths,omitempty" yaml:"paths"`
	Plugins        []PluginSource    `json:"plugins,omitempty" yaml:"plugins"`
	Connections    []Connection      `json:"connections,omitempty" yaml:"connections"`
	Host           string            `json:"host,omitempty" yaml:"host"`
	AllowedPorts   []int             `json:"allowedPorts,omitempty" yaml:"allowedPorts"`
	Credentials    map[string]string `json:"credentials,omitempty" yaml:"credentials"`
	Config         AppConfig         `json:"config" yaml:"config"`
}

// PluginSource is a unit of code whose trust has to be verified.
type PluginSource struct {
	Name      string `json:"name" yaml:"name"`
	Path      string `json:"path" yaml:"path"`
	Code      string `json:"code" yaml:"code"`
	Signature string `json:"signature,omitempty" yaml:"signature"`
	PublicKey string `json:"publicKey,omitempty" yaml:"publicKey"`
}

// Connection is a network connection descriptor.
type Connection struct {
	Host      string `json:"host" yaml:"host"`
	Port      int    `json:"port" yaml:"port"`
	Protocol  string `json:"protocol,omitempty" yaml:"protocol"`
	Encrypted bool   `json:"encrypted" yaml:"encrypted"`
}

// AppConfig holds the target application's configuration values. A nil map means
// no configuration was supplied.
type AppConfig map[string]any

// Debug reports whether the "debug" key is exactly the boolean true.
func (c AppConfig) Debug() bool {
	v, ok := c["debug"].(bool)
	return ok && v
}

// CSRFProtection reports whether the "csrfProtection" key holds a truthy value.
func (c AppConfig) CSRFProtection() bool {
	return truthy(c["csrfProtection"])
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}

// BufferSizeValue returns the buffer size hint and whether it was supplied.
func (c *ScanContext) BufferSizeValue() (int64, bool) {
	if c == nil || c.BufferSize == nil {
		return 0, false
	}
	return *c.BufferSize, true
}

// PortAllowed reports whether port appears in the allow-list.
func (c *ScanContext) PortAllowed(port int) bool {
	for _, p := range c.AllowedPorts {
		if p == port {
			return true
		}
	}
	return false
}

// NormalizeProtocol lower-cases a scheme and strips the trailing colon, so "HTTP:" and "http"
// compare equal.
func NormalizeProtocol(p string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(p)), ":")
}
