package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Region != DefaultRegion {
		t.Errorf("Region = %q, want %q", cfg.Region, DefaultRegion)
	}
	if cfg.AccountID != DefaultAccountID {
		t.Errorf("AccountID = %q, want %q", cfg.AccountID, DefaultAccountID)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, DefaultListenAddr)
	}
	if cfg.Endpoint != "" {
		t.Errorf("Endpoint = %q, want empty string", cfg.Endpoint)
	}
	if cfg.LogDir != "" {
		t.Errorf("LogDir = %q, want empty string", cfg.LogDir)
	}
	if cfg.MaxSecurityGroups != DefaultMaxSecurityGroups {
		t.Errorf("MaxSecurityGroups = %d, want %d", cfg.MaxSecurityGroups, DefaultMaxSecurityGroups)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	cfg := &Config{
		Region:            "eu-west-1",
		AccountID:         "111122223333",
		ListenAddr:        "0.0.0.0:9000",
		Endpoint:          "http://sim.internal:9000",
		LogDir:            "/var/log/efsim",
		MaxSecurityGroups: 3,
	}

	if err := Save(cfg, dir); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}

	path := filepath.Join(dir, "config.toml")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config.toml not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config.toml mode = %o, want 600", perm)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("loaded config = %+v, want %+v", *loaded, *cfg)
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "config")
	cfg := &Config{Region: DefaultRegion, ListenAddr: DefaultListenAddr, MaxSecurityGroups: 5}

	if err := Save(cfg, dir); err != nil {
		t.Fatalf("Save() should create directory, got error: %v", err)
	}

	path := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config.toml not created in nested dir: %v", err)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("region = [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for malformed TOML, got nil")
	}
}

func TestSetValidation(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
	}{
		{"region", "us-west-2", false},
		{"region", "eu-central-1", false},
		{"region", "", true},
		{"region", "US-WEST-2", true},
		{"region", "us-west", true},

		{"account_id", "123456789012", false},
		{"account_id", "12345", true},
		{"account_id", "12345678901a", true},

		{"listen_addr", "127.0.0.1:4566", false},
		{"listen_addr", ":0", false},
		{"listen_addr", "localhost", true},
		{"listen_addr", "localhost:http", true},
		{"listen_addr", "localhost:70000", true},

		{"endpoint", "", false},
		{"endpoint", "http://127.0.0.1:4566", false},
		{"endpoint", "https://efs.example.com", false},
		{"endpoint", "ftp://host", true},
		{"endpoint", "127.0.0.1:4566", true},

		{"log_dir", "", false},
		{"log_dir", "/tmp/efsim", false},
		{"log_dir", "relative/logs", true},

		{"max_security_groups", "1", false},
		{"max_security_groups", "5", false},
		{"max_security_groups", "0", true},
		{"max_security_groups", "6", true},
		{"max_security_groups", "abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg, _ := Load(t.TempDir())
			err := cfg.Set(tt.key, tt.value)
			if tt.wantErr && err == nil {
				t.Errorf("Set(%s, %q) expected error, got nil", tt.key, tt.value)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Set(%s, %q) unexpected error: %v", tt.key, tt.value, err)
			}
			if tt.wantErr && err != nil && !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error %q does not name the key", err)
			}
		})
	}
}

func TestSetAppliesValue(t *testing.T) {
	cfg, _ := Load(t.TempDir())

	if err := cfg.Set("max_security_groups", "2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxSecurityGroups != 2 {
		t.Errorf("MaxSecurityGroups = %d, want 2", cfg.MaxSecurityGroups)
	}
	got, err := cfg.Get("max_security_groups")
	if err != nil || got != "2" {
		t.Errorf("Get(max_security_groups) = %q, %v; want 2", got, err)
	}
}

func TestSetUnknownKey(t *testing.T) {
	cfg, _ := Load(t.TempDir())

	err := cfg.Set("instance_type", "m6i.xlarge")
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	if !strings.Contains(err.Error(), "valid keys") {
		t.Errorf("error %q should list valid keys", err)
	}
	if _, err := cfg.Get("instance_type"); err == nil {
		t.Error("Get of unknown key should fail")
	}
}

func TestValidKeysSorted(t *testing.T) {
	keys := ValidKeys()
	want := []string{"account_id", "endpoint", "listen_addr", "log_dir", "max_security_groups", "region"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("ValidKeys() = %v, want %v", keys, want)
	}
	for _, k := range want {
		if !IsValidKey(k) {
			t.Errorf("IsValidKey(%q) = false", k)
		}
	}
}

func TestEndpointURL(t *testing.T) {
	cfg := &Config{ListenAddr: "127.0.0.1:9999"}
	if got := cfg.EndpointURL(); got != "http://127.0.0.1:9999" {
		t.Errorf("EndpointURL() = %q, want listen address", got)
	}
	cfg.Endpoint = "https://sim.example.com"
	if got := cfg.EndpointURL(); got != "https://sim.example.com" {
		t.Errorf("EndpointURL() = %q, want explicit endpoint", got)
	}
}

func TestResolvedLogDir(t *testing.T) {
	cfg := &Config{}
	if got := cfg.ResolvedLogDir("/cfg"); got != filepath.Join("/cfg", "logs") {
		t.Errorf("ResolvedLogDir() = %q, want /cfg/logs", got)
	}
	cfg.LogDir = "/var/log/efsim"
	if got := cfg.ResolvedLogDir("/cfg"); got != "/var/log/efsim" {
		t.Errorf("ResolvedLogDir() = %q, want /var/log/efsim", got)
	}
}

func TestDefaultConfigDirEnvOverride(t *testing.T) {
	t.Setenv("EFSIM_CONFIG_DIR", "/custom/efsim")
	if got := DefaultConfigDir(); got != "/custom/efsim" {
		t.Errorf("DefaultConfigDir() = %q, want /custom/efsim", got)
	}

	t.Setenv("EFSIM_CONFIG_DIR", "")
	if got := DefaultConfigDir(); !strings.HasSuffix(got, filepath.Join(".config", "efsim")) {
		t.Errorf("DefaultConfigDir() = %q, want suffix .config/efsim", got)
	}
}
