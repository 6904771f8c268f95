package detectors

import (
	"context"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/25smoking/mcpscan/internal/config"
	"github.com/25smoking/mcpscan/internal/core"
	netutil "github.com/shirou/gopsutil/v3/net"
)

// PortProbe returns the open ports of host.
type PortProbe func(ctx context.Context, host string) ([]int, error)

// NoOpenPorts is the default probe. It performs no network access and reports nothing.
func NoOpenPorts(ctx context.Context, host string) ([]int, error) {
	return nil, nil
}

// ListeningPorts reports the ports this machine is listening on when host names the
// local machine. Remote hosts are not probed.
func ListeningPorts(ctx context.Context, host string) ([]int, error) {
	if !isLocalHost(host) {
		return nil, nil
	}

	conns, err := netutil.ConnectionsWithContext(ctx, "inet")
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}

	seen := make(map[int]struct{})
	var ports []int
	for _, conn := range conns {
		if conn.Status != "LISTEN" {
			continue
		}
		port := int(conn.Laddr.Port)
		if _, dup := seen[port]; dup {
			continue
		}
		seen[port] = struct{}{}
		ports = append(ports, port)
	}
	sort.Ints(ports)
	return ports, nil
}

func isLocalHost(host string) bool {
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return false
	}
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback() || ip.IsUnspecified()
	}
	if name, err := os.Hostname(); err == nil && strings.EqualFold(name, host) {
		return true
	}
	return false
}

type NetworkDetector struct {
	rules *config.Rules
	probe PortProbe
}

// NewNetworkDetector builds the detector; a nil probe means NoOpenPorts.
func NewNetworkDetector(rules *config.Rules, probe PortProbe) *NetworkDetector {
	if probe == nil {
		probe = NoOpenPorts
	}
	return &NetworkDetector{rules: rules, probe: probe}
}

func (d *NetworkDetector) Name() string {
	return "Network"
}

func (d *NetworkDetector) Detect(ctx context.Context, sc *core.ScanContext) ([]core.Finding, error) {
	var findings []core.Finding

	// 1. 明文连接
	for _, conn := range sc.Connections {
		if conn.Encrypted && !d.plaintext(conn.Protocol) {
			continue
		}
		findings = append(findings, core.Finding{
			Type:           core.VulnInsecureConn,
			Severity:       core.SeverityHigh,
			Details:        "Unencrypted connection detected",
			Location:       hostPort(conn.Host, conn.Port),
			Recommendation: "Use HTTPS/TLS for all connections",
		})
	}

	// 2. 开放端口
	ports, err := d.probe(ctx, sc.Host)
	if err != nil {
		return nil, fmt.Errorf("probe ports on %q: %w", sc.Host, err)
	}
	for _, port := range ports {
		if sc.PortAllowed(port) {
			continue
		}
		findings = append(findings, core.Finding{
			Type:           core.VulnOpenPort,
			Severity:       core.SeverityMedium,
			Details:        fmt.Sprintf("Potentially unnecessary open port: %d", port),
			Location:       hostPort(sc.Host, port),
			Recommendation: "Close unnecessary ports",
		})
	}

	return findings, nil
}

func (d *NetworkDetector) plaintext(proto string) bool {
	if d.rules == nil {
		return core.NormalizeProtocol(proto) == "http"
	}
	return d.rules.IsPlaintextProtocol(proto)
}

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
