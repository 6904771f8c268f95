package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/25smoking/mcpscan/internal/config"
	"go.uber.org/zap/zaptest"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func testConfig() config.EngineConfig {
	return config.EngineConfig{
		MaxDepth:         2,
		ExcludedPaths:    []string{".git", "node_modules"},
		PluginExtensions: []string{".js", ".ts"},
	}
}

func TestCollect(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.js"), "eval(x)")
	writeFile(t, filepath.Join(root, "a.js.sig"), "  c2ln\n")
	writeFile(t, filepath.Join(root, "README.md"), "docs")
	writeFile(t, filepath.Join(root, "lib", "b.TS"), "export {}")
	writeFile(t, filepath.Join(root, "lib", "b.TS.pub"), "own-key")
	writeFile(t, filepath.Join(root, "node_modules", "dep.js"), "ignored")
	writeFile(t, filepath.Join(root, ".git", "hook.js"), "ignored")
	writeFile(t, filepath.Join(root, "x", "y", "z", "deep.js"), "too deep")

	c := NewCollector(testConfig(), WithPublicKey("default-key"), WithLogger(zaptest.NewLogger(t)))
	sources, err := c.Collect(context.Background(), root)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %#v", sources)
	}

	a, b := sources[0], sources[1]
	if a.Name != "a.js" || a.Code != "eval(x)" || a.Signature != "c2ln" || a.PublicKey != "default-key" {
		t.Fatalf("unexpected first source %#v", a)
	}
	if a.Path != filepath.Join(root, "a.js") {
		t.Fatalf("unexpected path %s", a.Path)
	}
	if b.Name != "lib/b.TS" || b.Signature != "" || b.PublicKey != "own-key" {
		t.Fatalf("unexpected second source %#v", b)
	}
}

func TestCollectDepthLimit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "top.js"), "1")
	writeFile(t, filepath.Join(root, "one", "mid.js"), "2")

	cfg := testConfig()
	cfg.MaxDepth = 0
	sources, err := NewCollector(cfg).Collect(context.Background(), root)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(sources) != 1 || sources[0].Name != "top.js" {
		t.Fatalf("expected only the top-level file, got %#v", sources)
	}
}

func TestCollectErrors(t *testing.T) {
	c := NewCollector(testConfig())

	if _, err := c.Collect(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing root")
	}

	file := filepath.Join(t.TempDir(), "f.js")
	writeFile(t, file, "x")
	if _, err := c.Collect(context.Background(), file); err == nil {
		t.Fatal("expected error for non-directory root")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Collect(ctx, t.TempDir()); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestDepth(t *testing.T) {
	cases := map[string]int{".": 0, "a": 1, "a/b": 2, filepath.Join("a", "b", "c"): 3}
	for in, want := range cases {
		if got := depth(in); got != want {
			t.Errorf("depth(%q) = %d, want %d", in, got, want)
		}
	}
}
