package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestRunInit_FreshDirectory(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer

	if err := runInit(&buf, dir); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	if info, err := os.Stat(filepath.Join(dir, "data")); err != nil || !info.IsDir() {
		t.Errorf("expected data directory, got err=%v", err)
	}

	cfgPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(cfgPath); err != nil {
		t.Fatalf("config.yaml not created: %v", err)
	}

	content, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("read config.yaml: %v", err)
	}
	if !bytes.Contains(content, []byte("wss://tenex.chat")) {
		t.Errorf("config.yaml missing default relay, got:\n%s", content)
	}
}

func TestRunInit_DoesNotOverwriteExistingConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	custom := []byte("data_dir: /custom\n")
	if err := os.WriteFile(cfgPath, custom, 0o644); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	var buf bytes.Buffer
	if err := runInit(&buf, dir); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	got, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("read config.yaml: %v", err)
	}
	if string(got) != string(custom) {
		t.Errorf("runInit overwrote existing config.yaml: got %q, want %q", got, custom)
	}
}
