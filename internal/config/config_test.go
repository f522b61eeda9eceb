package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeFile(t, `
admin:
  username: admin
  password: hunter2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("got port %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Model.MaxNewTokens != 512 {
		t.Errorf("got max_new_tokens %d, want default 512", cfg.Model.MaxNewTokens)
	}
	if cfg.Model.EOSToken != "<end_of_turn>" {
		t.Errorf("got eos_token %q, want default", cfg.Model.EOSToken)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
server:
  port: 9090
  translate_rpm: 10
admin:
  username: admin
  password: hunter2
model:
  dir: /opt/models/translate
  max_new_tokens: 64
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("got port %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.TranslateRPM != 10 {
		t.Errorf("got translate_rpm %d, want 10", cfg.Server.TranslateRPM)
	}
	if cfg.Model.Dir != "/opt/models/translate" {
		t.Errorf("got model dir %q", cfg.Model.Dir)
	}
	if cfg.Model.MaxNewTokens != 64 {
		t.Errorf("got max_new_tokens %d, want 64", cfg.Model.MaxNewTokens)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("LANGTRANS_ADMIN_USERNAME", "root")
	t.Setenv("LANGTRANS_ADMIN_PASSWORD", "s3cret")

	path := writeFile(t, `
admin:
  username: ${LANGTRANS_ADMIN_USERNAME}
  password: ${LANGTRANS_ADMIN_PASSWORD}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Admin.Username != "root" || cfg.Admin.Password != "s3cret" {
		t.Errorf("env expansion failed: %+v", cfg.Admin)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidateRequiresAdmin(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error with empty admin identity")
	}
	cfg.Admin = AdminConfig{Username: "admin", Password: "pw"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestShutdownTimeoutDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"45s", 45 * time.Second},
		{"2m", 2 * time.Minute},
		{"", 30 * time.Second},
		{"garbage", 30 * time.Second},
	}
	for _, tt := range tests {
		s := ServerConfig{ShutdownTimeout: tt.in}
		if got := s.ShutdownTimeoutDuration(); got != tt.want {
			t.Errorf("ShutdownTimeoutDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	t.Setenv("LANGTRANS_ADMIN_USERNAME", "admin")
	t.Setenv("LANGTRANS_ADMIN_PASSWORD", "pw")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// The generated file references the env vars rather than embedding values.
	if cfg.Admin.Username != "admin" || cfg.Admin.Password != "pw" {
		t.Errorf("admin block did not resolve from environment: %+v", cfg.Admin)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
