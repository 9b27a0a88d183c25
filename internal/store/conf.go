package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/ini.v1"
)

// ReadConf loads one section of an INI file as a flat map.
//
// ok is false when the file or the section is missing. A malformed file is returned as
// ErrCorrupt so callers can decide whether to fall back to defaults.
func ReadConf(path, section string) (map[string]string, bool, error) {
	b, ok, err := readFileIfExists(path)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if !ok {
		return map[string]string{}, false, nil
	}
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, b)
	if err != nil {
		return map[string]string{}, false, fmt.Errorf("%s: %w: %v", path, ErrCorrupt, err)
	}
	sec, err := cfg.GetSection(section)
	if err != nil {
		return map[string]string{}, false, nil
	}
	out := map[string]string{}
	for _, k := range sec.Keys() {
		out[k.Name()] = k.String()
	}
	return out, true, nil
}

// WriteConf writes a single-section INI file atomically. Keys are written in the order given;
// keys absent from values are skipped.
func WriteConf(path, section string, keys []string, values map[string]string) error {
	cfg := ini.Empty()
	sec, err := cfg.NewSection(section)
	if err != nil {
		return err
	}
	for _, k := range keys {
		v, ok := values[k]
		if !ok {
			continue
		}
		if _, err := sec.NewKey(k, v); err != nil {
			return fmt.Errorf("conf key %q: %w", k, err)
		}
	}
	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return err
	}
	if err := AtomicWriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// RemoveIfExists deletes path, treating a missing file as success.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
