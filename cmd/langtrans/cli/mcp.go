package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/langtransd/langtrans/internal/inference"
	lmcp "github.com/langtransd/langtrans/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var modelDir string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes the local
translation model as tools. The server communicates over stdin/stdout using
JSON-RPC, suitable for clients that launch it as a subprocess.`,
		Example: `  langtrans mcp
  langtrans mcp --model-dir /opt/models/translate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(modelDir)
		},
	}

	cmd.Flags().StringVar(&modelDir, "model-dir", "", "Model directory (overrides config)")

	return cmd
}

func runMCP(modelDir string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if modelDir != "" {
		cfg.Model.Dir = modelDir
	}

	// Logs go to stderr; stdout carries the protocol.
	logger := newLogger(cfg.Logging)

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

	return lmcp.NewMCPServer(engine, appVersion, logger).ServeStdio()
}
