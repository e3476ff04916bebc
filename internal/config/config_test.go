package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// isolateHome points the config directory at a scratch home so developer
// machines' ~/.filem/config.yaml cannot leak into tests.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestLoadDefaults(t *testing.T) {
	isolateHome(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Addr, DefaultAddr)
	}
	if cfg.ModelName != DefaultModelName {
		t.Errorf("ModelName = %q, want %q", cfg.ModelName, DefaultModelName)
	}
	if cfg.MaxTurns != DefaultMaxTurns {
		t.Errorf("MaxTurns = %d, want %d", cfg.MaxTurns, DefaultMaxTurns)
	}
	if cfg.RatePerSecond != DefaultRatePerSecond {
		t.Errorf("RatePerSecond = %v, want %v", cfg.RatePerSecond, DefaultRatePerSecond)
	}
	if cfg.Trace.Enabled {
		t.Error("Trace.Enabled = true, want false by default")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	isolateHome(t)
	t.Setenv("FILEM_API_KEY", "sk-test")
	t.Setenv("FILEM_MODEL_NAME", "deepseek-reasoner")
	t.Setenv("FILEM_ADDR", "0.0.0.0:9999")
	t.Setenv("FILEM_MAX_TURNS", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIKey != "sk-test" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if cfg.ModelName != "deepseek-reasoner" {
		t.Errorf("ModelName = %q", cfg.ModelName)
	}
	if cfg.Addr != "0.0.0.0:9999" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.MaxTurns != 12 {
		t.Errorf("MaxTurns = %d", cfg.MaxTurns)
	}
}

func TestLoadConfigFile(t *testing.T) {
	home := isolateHome(t)
	dir := filepath.Join(home, ".filem")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	yaml := "model_name: local-model\nworkspace_roots:\n  - /srv/media\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ModelName != "local-model" {
		t.Errorf("ModelName = %q, want local-model", cfg.ModelName)
	}
	if len(cfg.WorkspaceRoots) != 1 || cfg.WorkspaceRoots[0] != "/srv/media" {
		t.Errorf("WorkspaceRoots = %v", cfg.WorkspaceRoots)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		ModelName: "deepseek-chat",
		APIKey:    "sk-test",
		MaxTurns:  8,
		Addr:      "127.0.0.1:5321",
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		serve   bool
		wantErr error
	}{
		{"valid base", func(*Config) {}, false, nil},
		{"valid serve", func(*Config) {}, true, nil},
		{"empty model", func(c *Config) { c.ModelName = "" }, false, ErrInvalidModelName},
		{"zero turns", func(c *Config) { c.MaxTurns = 0 }, false, ErrInvalidMaxTurns},
		{"excessive turns", func(c *Config) { c.MaxTurns = MaxAllowedTurns + 1 }, false, ErrInvalidMaxTurns},
		{"blank workspace root", func(c *Config) { c.WorkspaceRoots = []string{" "} }, false, ErrInvalidWorkspace},
		{"missing api key for serve", func(c *Config) { c.APIKey = "" }, true, ErrMissingAPIKey},
		{"malformed addr for serve", func(c *Config) { c.Addr = "5321" }, true, ErrInvalidAddr},
		{"empty addr for serve", func(c *Config) { c.Addr = "" }, true, ErrInvalidAddr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			var err error
			if tt.serve {
				err = cfg.ValidateServe()
			} else {
				err = cfg.Validate()
			}

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("validate error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validate error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
