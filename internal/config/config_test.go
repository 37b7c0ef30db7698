package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFindConfig_Explicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 9999\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_SearchPath(t *testing.T) {
	// When no config exists anywhere, should error. Override searchPathsFunc
	// to avoid finding real config files on developer/deploy machines
	// (~/.config/tenex/config.yaml, /etc/tenex/config.yaml, etc.).
	dir := t.TempDir()
	orig := searchPathsFunc
	searchPathsFunc = func() []string {
		return []string{filepath.Join(dir, "config.yaml")}
	}
	defer func() { searchPathsFunc = orig }()

	_, err := FindConfig("")
	if err == nil {
		t.Fatal("FindConfig(\"\") with no config files should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 8080\n"), 0600)

	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "config.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "config.yaml")
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("identity:\n  private_key_hex: ${TENEXD_TEST_KEY}\n"), 0600)
	os.Setenv("TENEXD_TEST_KEY", "abc123")
	defer os.Unsetenv("TENEXD_TEST_KEY")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Identity.PrivateKeyHex != "abc123" {
		t.Errorf("private_key_hex = %q, want %q", cfg.Identity.PrivateKeyHex, "abc123")
	}
}

func TestLoad_InlineValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("relays:\n  urls:\n    - wss://relay.example.com\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(cfg.Relays.URLs) != 1 || cfg.Relays.URLs[0] != "wss://relay.example.com" {
		t.Errorf("relays.urls = %v, want [wss://relay.example.com]", cfg.Relays.URLs)
	}
}

func TestApplyDefaults_ListenPort(t *testing.T) {
	cfg := Default()
	if cfg.Listen.Port != 4141 {
		t.Errorf("expected default listen.port 4141, got %d", cfg.Listen.Port)
	}
}

func TestApplyDefaults_DataDir(t *testing.T) {
	cfg := Default()
	if cfg.DataDir != "./data" {
		t.Errorf("expected default data_dir './data', got %q", cfg.DataDir)
	}
}

func TestApplyDefaults_SocketPath(t *testing.T) {
	cfg := &Config{DataDir: "/var/lib/tenexd"}
	cfg.applyDefaults()
	want := filepath.Join("/var/lib/tenexd", "tenex-cli.sock")
	if cfg.Socket.Path != want {
		t.Errorf("expected default socket.path %q, got %q", want, cfg.Socket.Path)
	}
}

func TestApplyDefaults_SocketPathPreservesCustom(t *testing.T) {
	cfg := &Config{Socket: SocketConfig{Path: "/tmp/custom.sock"}}
	cfg.applyDefaults()
	if cfg.Socket.Path != "/tmp/custom.sock" {
		t.Errorf("expected custom socket path preserved, got %q", cfg.Socket.Path)
	}
}

func TestApplyDefaults_RelayURLs(t *testing.T) {
	cfg := Default()
	if len(cfg.Relays.URLs) != 1 || cfg.Relays.URLs[0] != "wss://tenex.chat" {
		t.Errorf("expected default relay urls [wss://tenex.chat], got %v", cfg.Relays.URLs)
	}
}

func TestRelaysConfig_Timeouts(t *testing.T) {
	r := RelaysConfig{}
	if r.ConnectTimeout().String() != "15s" {
		t.Errorf("default connect timeout = %v, want 15s", r.ConnectTimeout())
	}
	if r.PublishTimeout().String() != "5s" {
		t.Errorf("default publish timeout = %v, want 5s", r.PublishTimeout())
	}

	r = RelaysConfig{ConnectTimeoutMS: 2000, PublishTimeoutMS: 500}
	if r.ConnectTimeout().String() != "2s" {
		t.Errorf("connect timeout = %v, want 2s", r.ConnectTimeout())
	}
	if r.PublishTimeout().String() != "500ms" {
		t.Errorf("publish timeout = %v, want 500ms", r.PublishTimeout())
	}
}

func TestValidate_ListenPortOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.Listen.Port = 70000

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for out-of-range listen.port")
	}
	if !strings.Contains(err.Error(), "listen.port") {
		t.Errorf("error should mention listen.port, got: %v", err)
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "not-a-level"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for bad log_level")
	}
}

func TestValidate_EmptyRelayURL(t *testing.T) {
	cfg := Default()
	cfg.Relays.URLs = []string{"wss://tenex.chat", ""}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for empty relays.urls entry")
	}
	if !strings.Contains(err.Error(), "relays.urls") {
		t.Errorf("error should mention relays.urls, got: %v", err)
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestIdentityConfig_ResolvePrivateKey_EnvPreferredOverInline(t *testing.T) {
	os.Setenv("TENEXD_TEST_IDENTITY", "from-env")
	defer os.Unsetenv("TENEXD_TEST_IDENTITY")

	ident := IdentityConfig{PrivateKeyHex: "from-inline", PrivateKeyEnv: "TENEXD_TEST_IDENTITY"}
	got, err := ident.ResolvePrivateKey()
	if err != nil {
		t.Fatalf("ResolvePrivateKey error: %v", err)
	}
	if got != "from-env" {
		t.Errorf("ResolvePrivateKey() = %q, want %q (env should win)", got, "from-env")
	}
}

func TestIdentityConfig_ResolvePrivateKey_Inline(t *testing.T) {
	ident := IdentityConfig{PrivateKeyHex: "from-inline"}
	got, err := ident.ResolvePrivateKey()
	if err != nil {
		t.Fatalf("ResolvePrivateKey error: %v", err)
	}
	if got != "from-inline" {
		t.Errorf("ResolvePrivateKey() = %q, want %q", got, "from-inline")
	}
}

func TestIdentityConfig_ResolvePrivateKey_EnvMissing(t *testing.T) {
	os.Unsetenv("TENEXD_TEST_MISSING")
	ident := IdentityConfig{PrivateKeyEnv: "TENEXD_TEST_MISSING"}
	_, err := ident.ResolvePrivateKey()
	if err == nil {
		t.Fatal("expected error when referenced env var is unset")
	}
}

func TestIdentityConfig_ResolvePrivateKey_NoneConfigured(t *testing.T) {
	ident := IdentityConfig{}
	_, err := ident.ResolvePrivateKey()
	if err == nil {
		t.Fatal("expected error when no identity is configured")
	}
}
