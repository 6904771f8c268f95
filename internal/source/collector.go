// Package source collects plugin sources from a local directory tree.
package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/25smoking/mcpscan/internal/config"
	"github.com/25smoking/mcpscan/internal/core"
	"go.uber.org/zap"
)

const (
	signatureSuffix = ".sig"
	publicKeySuffix = ".pub"

	// maxSourceSize caps how much of a single plugin file is loaded.
	maxSourceSize = 4 << 20
)

// Collector walks a directory and turns matching files into PluginSource values.
type Collector struct {
	maxDepth   int
	excluded   map[string]bool
	extensions map[string]bool
	publicKey  string
	logger     *zap.Logger
}

type Option func(*Collector)

// WithPublicKey sets the key used for files without a sibling .pub file.
func WithPublicKey(key string) Option {
	return func(c *Collector) { c.publicKey = key }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Collector) { c.logger = logger }
}

func NewCollector(cfg config.EngineConfig, opts ...Option) *Collector {
	c := &Collector{
		maxDepth:   cfg.MaxDepth,
		excluded:   make(map[string]bool, len(cfg.ExcludedPaths)),
		extensions: make(map[string]bool, len(cfg.PluginExtensions)),
		logger:     zap.NewNop(),
	}
	for _, p := range cfg.ExcludedPaths {
		c.excluded[p] = true
	}
	for _, ext := range cfg.PluginExtensions {
		c.extensions[strings.ToLower(ext)] = true
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect returns the plugin sources under root in lexical order. Entries that
// cannot be read are skipped; only a missing or unreadable root is an error.
func (c *Collector) Collect(ctx context.Context, root string) ([]core.PluginSource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("plugin directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("plugin directory: %s is not a directory", root)
	}

	var sources []core.PluginSource
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			c.logger.Debug("skip unreadable entry", zap.String("path", path), zap.Error(err))
			return nil
		}

		rel, _ := filepath.Rel(root, path)
		if d.IsDir() {
			if path == root {
				return nil
			}
			if c.excluded[d.Name()] || c.excluded[filepath.ToSlash(rel)] || depth(rel) > c.maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !c.extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		src, err := c.load(path, filepath.ToSlash(rel))
		if err != nil {
			c.logger.Debug("skip plugin file", zap.String("path", path), zap.Error(err))
			return nil
		}
		sources = append(sources, src)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	c.logger.Debug("collected plugin sources", zap.String("root", root), zap.Int("count", len(sources)))
	return sources, nil
}

func (c *Collector) load(path, name string) (core.PluginSource, error) {
	code, err := readLimited(path)
	if err != nil {
		return core.PluginSource{}, err
	}

	src := core.PluginSource{
		Name:      name,
		Path:      path,
		Code:      code,
		PublicKey: c.publicKey,
	}
	if sig, err := readOptional(path + signatureSuffix); err == nil {
		src.Signature = strings.TrimSpace(sig)
	}
	if key, err := readOptional(path + publicKeySuffix); err == nil {
		src.PublicKey = key
	}
	return src, nil
}

func readLimited(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > maxSourceSize {
		return "", fmt.Errorf("file larger than %d bytes", maxSourceSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// readOptional reads a sidecar file that may not exist.
func readOptional(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// depth counts the directories in a root-relative path ("a/b" is 2).
func depth(rel string) int {
	if rel == "." || rel == "" {
		return 0
	}
	return strings.Count(filepath.ToSlash(rel), "/") + 1
}
