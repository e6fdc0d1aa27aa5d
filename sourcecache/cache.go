// Package sourcecache persists raw source payloads between runs so
// transforms can be reworked without refetching every upstream API.
package sourcecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"bitbucket.org/mmdatafocus/replenish_backend/config"
)

func cachePath(name string) string {
	return filepath.Join(config.CacheDir(), name+".json")
}

// Store writes a source payload to the cache, replacing any previous copy.
func Store(name string, payload interface{}) error {
	path := cachePath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode cache %s: %w", name, err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads a cached payload into out. Returns false without error when
// no cached copy exists.
func Load(name string, out interface{}) (bool, error) {
	data, err := os.ReadFile(cachePath(name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode cache %s: %w", name, err)
	}
	return true, nil
}
