package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Limits on what a layer file or override may contain.
const (
	maxFileBytes  = 1 << 20
	maxJSONNest   = 32
	maxEnvVarLen  = 4096
	maxPathLength = 4096
)

var layerExtensions = []string{".json", ".yaml", ".yml"}

// readLayerFile reads a config layer after checking its name, type and size.
// Relative paths must stay under the working directory.
func readLayerFile(path string) ([]byte, error) {
	if err := checkLayerPath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	info, err := os.Stat(path)
	switch {
	case err != nil:
		return nil, fmt.Errorf("stat config file: %w", err)
	case !info.Mode().IsRegular():
		return nil, fmt.Errorf("%s is not a regular file", path)
	case info.Size() > maxFileBytes:
		return nil, fmt.Errorf("%s is %d bytes, limit is %d", path, info.Size(), maxFileBytes)
	}
	return os.ReadFile(path)
}

func checkLayerPath(path string) error {
	if path == "" || len(path) > maxPathLength {
		return fmt.Errorf("path length %d out of range", len(path))
	}
	if ext := strings.ToLower(filepath.Ext(path)); !slices.Contains(layerExtensions, ext) {
		return fmt.Errorf("unsupported config file type %q: want .json, .yaml or .yml", ext)
	}
	if filepath.IsAbs(path) {
		return nil
	}
	if clean := filepath.Clean(path); clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%s resolves outside the working directory", path)
	}
	return nil
}

// checkJSONNesting walks the token stream and fails past maxJSONNest levels.
func checkJSONNesting(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		delim, ok := tok.(json.Delim)
		if !ok {
			continue
		}
		if delim == '{' || delim == '[' {
			if depth++; depth > maxJSONNest {
				return fmt.Errorf("JSON nesting exceeds %d levels", maxJSONNest)
			}
		} else {
			depth--
		}
	}
}
