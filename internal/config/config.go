// Package config loads the langtrans configuration file. Values referenced
// as ${VAR} are expanded from the environment before parsing, which is how
// the admin password stays out of the file itself.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level langtrans configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Admin   AdminConfig   `yaml:"admin"`
	Keys    KeysConfig    `yaml:"keys"`
	Model   ModelConfig   `yaml:"model"`
	Audit   AuditConfig   `yaml:"audit"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
	CORSOrigins     []string `yaml:"cors_origins"`
	// TranslateRPM caps requests per API key per minute on /api/translate.
	TranslateRPM int `yaml:"translate_rpm"`
	// LoginRPM caps login attempts per IP per minute, in front of the
	// failure-count lockout.
	LoginRPM int `yaml:"login_rpm"`
}

// AdminConfig is the fixed admin identity for the console. Both values are
// required; there is no account system behind them.
type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// KeysConfig locates the API key file.
type KeysConfig struct {
	Path string `yaml:"path"`
}

// ModelConfig locates and tunes the translation model.
type ModelConfig struct {
	// Dir holds model.onnx and tokenizer.json.
	Dir string `yaml:"dir"`
	// Library optionally points at the ONNX Runtime shared library.
	Library        string `yaml:"library"`
	MaxNewTokens   int    `yaml:"max_new_tokens"`
	MaxInputTokens int    `yaml:"max_input_tokens"`
	EOSToken       string `yaml:"eos_token"`
}

// AuditConfig locates the usage log database. Empty disables persistence
// (an in-memory log is used).
type AuditConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ShutdownTimeoutDuration parses the shutdown timeout, defaulting to 30s.
func (s ServerConfig) ShutdownTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(s.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Load reads and parses a configuration file, expanding ${VAR} references
// from the environment first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Default returns a Config pre-filled with sensible defaults. The admin
// identity has no default and must be supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: "30s",
			CORSOrigins:     []string{"*"},
			TranslateRPM:    60,
			LoginRPM:        30,
		},
		Keys: KeysConfig{
			Path: "./api_keys.json",
		},
		Model: ModelConfig{
			Dir:            "./onnx-model",
			MaxNewTokens:   512,
			MaxInputTokens: 2048,
			EOSToken:       "<end_of_turn>",
		},
		Audit: AuditConfig{
			Path: "./usage.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that the configuration is complete enough to serve.
func (c *Config) Validate() error {
	if c.Admin.Username == "" || c.Admin.Password == "" {
		return errors.New("admin.username and admin.password are required (set LANGTRANS_ADMIN_USERNAME and LANGTRANS_ADMIN_PASSWORD or fill in the config file)")
	}
	if c.Keys.Path == "" {
		return errors.New("keys.path is required")
	}
	if c.Model.Dir == "" {
		return errors.New("model.dir is required")
	}
	return nil
}

// WriteDefault writes a starter configuration to path. The admin block
// references environment variables rather than embedding credentials.
func WriteDefault(path string) error {
	cfg := Default()
	cfg.Admin = AdminConfig{
		Username: "${LANGTRANS_ADMIN_USERNAME}",
		Password: "${LANGTRANS_ADMIN_PASSWORD}",
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
