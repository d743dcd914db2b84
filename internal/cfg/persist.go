package cfg

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
)

// Save writes the snapshot to path atomically: the JSON is written to a
// temporary file in the same directory and renamed over the target. The
// output round-trips: resolving a saved file and saving again reproduces
// the bytes.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("creating temp config file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp config file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("setting config file mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing config file %s: %w", path, err)
	}
	return nil
}

// Update applies a partial key-value map on top of the receiver and returns
// the resulting snapshot; the receiver is left untouched. Keys outside the
// default set are logged and dropped. Values are type-checked against the
// target field; a mismatch fails with ErrMalformed. The new snapshot is
// persisted wholesale to the file the receiver was resolved from; when
// persistence fails the snapshot is still returned alongside the error.
func (c Config) Update(changes map[string]any) (Config, error) {
	next := c

	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw, err := json.Marshal(changes[key])
		if err != nil {
			return c, fmt.Errorf("%w: key %s: %v", ErrMalformed, key, err)
		}
		known, err := next.applyKey(key, raw)
		if err != nil {
			return c, err
		}
		if !known {
			log.Warn().Str("key", key).Msg("dropping unknown configuration key")
		}
	}

	for _, w := range next.Warnings() {
		log.Warn().Msg(w)
	}

	if next.path != "" {
		if err := next.Save(next.path); err != nil {
			return next, fmt.Errorf("persisting updated config: %w", err)
		}
	}
	return next, nil
}
