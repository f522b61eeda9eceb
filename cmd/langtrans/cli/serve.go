package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/langtransd/langtrans/internal/audit"
	"github.com/langtransd/langtrans/internal/guard"
	"github.com/langtransd/langtrans/internal/inference"
	"github.com/langtransd/langtrans/internal/keystore"
	"github.com/langtransd/langtrans/internal/server"
	"github.com/langtransd/langtrans/internal/session"
)

func newServeCmd() *cobra.Command {
	var (
		port     int
		host     string
		modelDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the translation API server",
		Long:  "Load the model and start the HTTP server serving the translation API and the admin console.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, modelDir)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP listen port (overrides config)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP listen host (overrides config)")
	cmd.Flags().StringVar(&modelDir, "model-dir", "", "Model directory (overrides config)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, modelDir string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if modelDir != "" {
		cfg.Model.Dir = modelDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.Logging)

	keys, err := keystore.Open(cfg.Keys.Path)
	if err != nil {
		return fmt.Errorf("open key store: %w", err)
	}
	logger.Info("key store loaded", "path", cfg.Keys.Path, "keys", keys.Len())

	sessions, err := session.NewManager(0)
	if err != nil {
		return fmt.Errorf("init sessions: %w", err)
	}

	usage, err := audit.Open(cfg.Audit.Path)
	if err != nil {
		return fmt.Errorf("open usage log: %w", err)
	}
	defer usage.Close()

	logger.Info("loading model", "dir", cfg.Model.Dir)
	engine, err := inference.New(inference.Options{
		ModelDir:       cfg.Model.Dir,
		LibraryPath:    cfg.Model.Library,
		MaxNewTokens:   cfg.Model.MaxNewTokens,
		MaxInputTokens: cfg.Model.MaxInputTokens,
		EOSToken:       cfg.Model.EOSToken,
	}, logger)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	defer engine.Close()
	logger.Info("model ready")

	srvCfg := server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeoutDuration(),
		CORSOrigins:     cfg.Server.CORSOrigins,
		TranslateRPM:    cfg.Server.TranslateRPM,
		LoginRPM:        cfg.Server.LoginRPM,
		AdminUsername:   cfg.Admin.Username,
		AdminPassword:   cfg.Admin.Password,
		Version:         appVersion,
	}
	srv := server.New(srvCfg, engine, keys, sessions, guard.New(0, 0), usage, logger)

	fmt.Printf("→ LangTrans %s\n", appVersion)
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Admin console: http://%s:%d/login\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ OpenAPI:       http://%s:%d/openapi.json\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()

	return srv.ListenAndServe()
}
