package detectors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/25smoking/mcpscan/internal/core"
)

const statWorkers = 8

type FilesystemDetector struct{}

func NewFilesystemDetector() *FilesystemDetector {
	return &FilesystemDetector{}
}

func (d *FilesystemDetector) Name() string {
	return "Filesystem"
}

func (d *FilesystemDetector) Detect(ctx context.Context, sc *core.ScanContext) ([]core.Finding, error) {
	var findings []core.Finding

	// 1. 目录权限
	if sc.BasePath != "" {
		permFindings, err := d.checkPermissions(ctx, sc.BasePath)
		if err != nil {
			return nil, err
		}
		findings = append(findings, permFindings...)
	}

	// 2. 路径穿越
	for _, p := range sc.Paths {
		if strings.Contains(p, "..") {
			findings = append(findings, core.Finding{
				Type:           core.VulnPathTraversal,
				Severity:       core.SeverityCritical,
				Details:        "Potential path traversal vulnerability detected",
				Location:       p,
				Recommendation: "Sanitize and validate all file paths",
			})
		}
	}

	return findings, nil
}

type statTask struct {
	index int
	path  string
}

type statResult struct {
	finding *core.Finding
	err     error
}

// checkPermissions stats every direct child of basePath with a small worker pool.
// Results are kept in directory order.
func (d *FilesystemDetector) checkPermissions(ctx context.Context, basePath string) ([]core.Finding, error) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", basePath, err)
	}

	results := make([]statResult, len(entries))
	tasks := make(chan statTask)

	var wg sync.WaitGroup
	for i := 0; i < statWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				f, err := analyzeEntry(task.path)
				results[task.index] = statResult{finding: f, err: err}
			}
		}()
	}

	var cancelled error
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		tasks <- statTask{index: i, path: filepath.Join(basePath, entry.Name())}
	}
	close(tasks)
	wg.Wait()

	if cancelled != nil {
		return nil, cancelled
	}

	var findings []core.Finding
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		if r.finding != nil {
			findings = append(findings, *r.finding)
		}
	}
	return findings, nil
}

func analyzeEntry(path string) (*core.Finding, error) {
	info, err := os.Stat(path)
	if err != nil {
		// 悬空链接或并发删除
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if info.Mode().Perm() != 0o777 {
		return nil, nil
	}

	details := fmt.Sprintf("File has overly permissive access: %s", path)
	if uid, gid, ok := fileOwner(path); ok {
		details += fmt.Sprintf(" (owner uid=%d gid=%d)", uid, gid)
	}
	return &core.Finding{
		Type:           core.VulnInsecureFilePerms,
		Severity:       core.SeverityHigh,
		Details:        details,
		Location:       path,
		Recommendation: "Restrict file permissions to minimum required",
	}, nil
}
