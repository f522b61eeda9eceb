package cli

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/langtransd/langtrans/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		Long:  "Initialize a configuration file or display the current effective configuration.",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

// ---------- config init ----------

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a langtrans.yaml configuration file",
		Long: `Write a starter configuration file. When run on a terminal the admin
credentials are prompted for and embedded; otherwise the file references the
LANGTRANS_ADMIN_USERNAME and LANGTRANS_ADMIN_PASSWORD environment variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config file")

	return cmd
}

func runConfigInit(force bool) error {
	path := defaultConfigPath
	if cfgFile != "" {
		path = cfgFile
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	if !term.IsTerminal(int(syscall.Stdin)) {
		if err := config.WriteDefault(path); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created %s\n", path)
		fmt.Println("Set LANGTRANS_ADMIN_USERNAME and LANGTRANS_ADMIN_PASSWORD, then run 'langtrans serve'.")
		return nil
	}

	fmt.Print("Admin username: ")
	var username string
	if _, err := fmt.Scanln(&username); err != nil {
		return fmt.Errorf("read username: %w", err)
	}
	password, err := promptPassword("Admin password")
	if err != nil {
		return err
	}
	if username == "" || password == "" {
		return fmt.Errorf("admin username and password must not be empty")
	}

	cfg := config.Default()
	cfg.Admin = config.AdminConfig{Username: username, Password: password}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	// The file holds the admin password; keep it private.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Created %s\n", path)
	fmt.Println("Point model.dir at your ONNX model directory, then run 'langtrans serve'.")
	return nil
}

// ---------- config show ----------

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}

	return cmd
}

func runConfigShow() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Never print the admin password.
	shown := *cfg
	if shown.Admin.Password != "" {
		shown.Admin.Password = "********"
	}

	data, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	os.Stdout.Write(data)
	return nil
}
