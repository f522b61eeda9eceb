package cli

import (
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/langtransd/langtrans/internal/config"
)

const defaultConfigPath = "langtrans.yaml"

// loadConfig reads the config file (if present) and applies environment
// overrides. A missing file is not an error; defaults plus environment are
// enough to run.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = defaultConfigPath
	}

	var cfg *config.Config
	if _, err := os.Stat(path); err == nil {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	} else if cfgFile != "" {
		// An explicitly named file must exist.
		return nil, fmt.Errorf("config file %s: %w", cfgFile, err)
	} else {
		cfg = config.Default()
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets LANGTRANS_* variables win over the file. Only the
// keys an operator plausibly sets per-deployment are mapped.
func applyEnvOverrides(cfg *config.Config) {
	if v := viper.GetString("admin.username"); v != "" {
		cfg.Admin.Username = v
	}
	if v := viper.GetString("admin.password"); v != "" {
		cfg.Admin.Password = v
	}
	if v := viper.GetString("keys.path"); v != "" {
		cfg.Keys.Path = v
	}
	if v := viper.GetString("model.dir"); v != "" {
		cfg.Model.Dir = v
	}
	if v := viper.GetString("model.library"); v != "" {
		cfg.Model.Library = v
	}
	if v := viper.GetString("audit.path"); v != "" {
		cfg.Audit.Path = v
	}
	if v := viper.GetInt("server.port"); v != 0 {
		cfg.Server.Port = v
	}
	if v := viper.GetString("server.host"); v != "" {
		cfg.Server.Host = v
	}
	if v := viper.GetString("logging.level"); v != "" {
		cfg.Logging.Level = v
	}
}

// newLogger builds the process logger from the logging config.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// promptPassword reads a password from the terminal without echo.
func promptPassword(label string) (string, error) {
	fmt.Printf("%s: ", label)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}
