package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/c360/tubewatch/errors"
)

// Input limits. A real tubewatch file is a few hundred bytes and nests no
// deeper than feed.retry.
const (
	maxLayerSize   = 1 << 20
	maxLayerDepth  = 8
	maxEnvValueLen = 4096
)

var layerExtensions = []string{".json", ".yaml", ".yml"}

// readLayer reads one configuration file. Relative paths may not climb out
// of the working directory; only regular JSON or YAML files up to
// maxLayerSize are accepted.
func readLayer(path string) ([]byte, error) {
	if path == "" {
		return nil, invalidLayer(path, "empty path")
	}
	if !slices.Contains(layerExtensions, strings.ToLower(filepath.Ext(path))) {
		return nil, invalidLayer(path, "only JSON or YAML config files allowed")
	}
	if !filepath.IsAbs(path) && !filepath.IsLocal(path) {
		return nil, invalidLayer(path, "relative path leaves the working directory")
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrFileNotFound, path),
				"Loader", "readLayer", "open layer")
		}
		return nil, errors.WrapInvalid(err, "Loader", "readLayer", "open layer")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "readLayer", "stat layer")
	}
	if !info.Mode().IsRegular() {
		return nil, invalidLayer(path, "not a regular file")
	}
	if info.Size() > maxLayerSize {
		return nil, invalidLayer(path, fmt.Sprintf("%d bytes exceeds %d", info.Size(), maxLayerSize))
	}

	// The file may grow between Stat and read
	data, err := io.ReadAll(io.LimitReader(f, maxLayerSize+1))
	if err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "readLayer", "read layer")
	}
	if len(data) > maxLayerSize {
		return nil, invalidLayer(path, fmt.Sprintf("exceeds %d bytes", maxLayerSize))
	}
	return data, nil
}

// checkLayerDepth rejects decoded layers nested deeper than maxLayerDepth
func checkLayerDepth(path string, raw map[string]any) error {
	if d := nesting(raw); d > maxLayerDepth {
		return invalidLayer(path, fmt.Sprintf("nesting depth %d exceeds %d", d, maxLayerDepth))
	}
	return nil
}

func nesting(v any) int {
	deepest := 0
	switch t := v.(type) {
	case map[string]any:
		for _, child := range t {
			deepest = max(deepest, nesting(child))
		}
	case []any:
		for _, child := range t {
			deepest = max(deepest, nesting(child))
		}
	default:
		return 0
	}
	return deepest + 1
}

// checkEnvValue rejects override values no setting could legitimately hold
func checkEnvValue(key, value string) error {
	var reason string
	switch {
	case len(value) > maxEnvValueLen:
		reason = fmt.Sprintf("%d bytes exceeds %d", len(value), maxEnvValueLen)
	case strings.ContainsRune(value, 0):
		reason = "contains a NUL byte"
	default:
		return nil
	}
	return errors.WrapInvalid(fmt.Errorf("%w: %s %s", errors.ErrInvalidConfig, key, reason),
		"Loader", "applyEnvOverrides", "check "+key)
}

func invalidLayer(path, reason string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s: %s", errors.ErrInvalidConfig, path, reason),
		"Loader", "readLayer", "check layer")
}
