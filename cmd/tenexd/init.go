package main

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

//go:embed init_data/config.example.yaml
var configExample []byte

// runInit initializes a tenexd working directory: the data directory
// tree and a default config.yaml. Existing files are never overwritten,
// so re-running init in a populated directory is a no-op.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing tenexd workspace in %s\n", dir)

	if err := os.MkdirAll(filepath.Join(dir, "data"), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if err := writeIfMissing(configPath, configExample); err != nil {
		return err
	}
	fmt.Fprintf(w, "  ✓ %s\n", configPath)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Edit config.yaml to set your relay list and identity, then run `tenexd serve`.")
	return nil
}

// writeIfMissing writes content to path only if the file does not
// already exist, so init never clobbers a customized config.
func writeIfMissing(path string, content []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, content, 0o644)
}
