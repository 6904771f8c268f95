package detectors

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"

	"github.com/25smoking/mcpscan/internal/core"
)

func fakePorts(ports ...int) PortProbe {
	return func(ctx context.Context, host string) ([]int, error) {
		return ports, nil
	}
}

func TestNetworkDetectorInsecureConnections(t *testing.T) {
	d := NewNetworkDetector(testRules(t), nil)
	sc := &core.ScanContext{Connections: []core.Connection{
		{Host: "api.example.com", Port: 443, Protocol: "https:", Encrypted: true},
		{Host: "legacy.example.com", Port: 80, Protocol: "http:", Encrypted: true},
		{Host: "db.internal", Port: 5432, Protocol: "postgres:", Encrypted: false},
	}}

	findings, err := d.Detect(context.Background(), sc)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %#v", findings)
	}
	want := []string{"legacy.example.com:80", "db.internal:5432"}
	for i, f := range findings {
		if f.Type != core.VulnInsecureConn || f.Severity != core.SeverityHigh || f.Location != want[i] {
			t.Fatalf("unexpected finding %d: %#v", i, f)
		}
	}
}

func TestNetworkDetectorOpenPorts(t *testing.T) {
	d := NewNetworkDetector(testRules(t), fakePorts(22, 80, 8080))
	sc := &core.ScanContext{Host: "10.0.0.5", AllowedPorts: []int{80}}

	findings, err := d.Detect(context.Background(), sc)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %#v", findings)
	}
	for i, port := range []string{"22", "8080"} {
		f := findings[i]
		if f.Type != core.VulnOpenPort || f.Severity != core.SeverityMedium || f.Location != "10.0.0.5:"+port {
			t.Fatalf("unexpected finding %#v", f)
		}
	}
}

func TestNetworkDetectorDefaultProbeIsSilent(t *testing.T) {
	findings, err := NewNetworkDetector(testRules(t), nil).Detect(context.Background(), &core.ScanContext{Host: "localhost"})
	if err != nil || len(findings) != 0 {
		t.Fatalf("expected nothing, got %#v, %v", findings, err)
	}
}

func TestNetworkDetectorProbeError(t *testing.T) {
	boom := errors.New("probe failed")
	d := NewNetworkDetector(testRules(t), func(context.Context, string) ([]int, error) { return nil, boom })
	if _, err := d.Detect(context.Background(), &core.ScanContext{Host: "h"}); !errors.Is(err, boom) {
		t.Fatalf("expected probe error, got %v", err)
	}
}

func TestListeningPortsSkipsRemoteHosts(t *testing.T) {
	ports, err := ListeningPorts(context.Background(), "203.0.113.10")
	if err != nil || len(ports) != 0 {
		t.Fatalf("remote host should not be probed, got %v, %v", ports, err)
	}
	ports, err = ListeningPorts(context.Background(), "")
	if err != nil || len(ports) != 0 {
		t.Fatalf("empty host should not be probed, got %v, %v", ports, err)
	}
}

func TestListeningPortsFindsLocalListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	ports, err := ListeningPorts(context.Background(), "127.0.0.1")
	if err != nil {
		t.Skipf("connection table unavailable: %v", err)
	}
	for _, p := range ports {
		if p == port {
			return
		}
	}
	t.Skipf("listener %s not visible in connection table %v", strconv.Itoa(port), ports)
}

func TestIsLocalHost(t *testing.T) {
	for host, want := range map[string]bool{
		"localhost":   true,
		"127.0.0.1":   true,
		"::1":         true,
		"0.0.0.0":     true,
		"example.com": false,
		"192.0.2.1":   false,
		"":            false,
	} {
		if got := isLocalHost(host); got != want {
			t.Errorf("isLocalHost(%q) = %v, want %v", host, got, want)
		}
	}
}
