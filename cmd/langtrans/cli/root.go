// Package cli implements the langtrans command tree.
package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	appVersion string // set in Execute, used by serve and mcp
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "langtrans",
		Short: "Self-hosted translation API backed by a local ONNX model",
		Long: `LangTrans serves a translation API from a locally-loaded ONNX seq2seq
model. API consumers authenticate with bearer API keys; keys are managed
through a built-in admin console or this CLI. No text ever leaves the host.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./langtrans.yaml)")

	cobra.OnInitialize(initViper)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newKeyCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newMCPCmd())

	return cmd
}

// initViper wires environment overrides: LANGTRANS_ADMIN_PASSWORD maps to
// admin.password, and so on.
func initViper() {
	viper.SetEnvPrefix("LANGTRANS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}
