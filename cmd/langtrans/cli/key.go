package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/langtransd/langtrans/internal/keystore"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long:    "Create, list, and revoke the API keys that authenticate against the translation API.",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

func openKeystore() (*keystore.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := keystore.Open(cfg.Keys.Path)
	if err != nil {
		return nil, fmt.Errorf("open key store %s: %w", cfg.Keys.Path, err)
	}
	return store, nil
}

// ---------- key create ----------

func newKeyCreateCmd() *cobra.Command {
	var (
		label string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long:  "Generate a new API key. The raw key is shown once and cannot be retrieved again.",
		Example: `  langtrans key create --label "CI pipeline"
  langtrans key create --label "partner" --ttl 720h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyCreate(label, ttl)
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "Human-readable label for the key (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Key lifetime (e.g. 720h); 0 means the key never expires")
	cmd.MarkFlagRequired("label")

	return cmd
}

func runKeyCreate(label string, ttl time.Duration) error {
	store, err := openKeystore()
	if err != nil {
		return err
	}

	key, err := store.Create(label, ttl)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	fmt.Println("API key created:")
	fmt.Println()
	fmt.Printf("  Key:   %s\n", key.Key)
	fmt.Printf("  Label: %s\n", key.Label)
	if key.ExpiresAt != nil {
		fmt.Printf("  Expires: %s\n", key.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Println()
	fmt.Println("  Save this key now - it cannot be retrieved again.")
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runKeyList(jsonOutput bool) error {
	store, err := openKeystore()
	if err != nil {
		return err
	}

	type keyRow struct {
		Prefix  string `json:"prefix"`
		Label   string `json:"label"`
		Created string `json:"created"`
		Expires string `json:"expires,omitempty"`
		Status  string `json:"status"`
	}

	now := time.Now()
	keys := store.List()
	rows := make([]keyRow, len(keys))
	for i, k := range keys {
		row := keyRow{
			Prefix:  k.Prefix(),
			Label:   k.Label,
			Created: k.CreatedAt.Format("2006-01-02"),
			Status:  "active",
		}
		if k.ExpiresAt != nil {
			row.Expires = k.ExpiresAt.Format("2006-01-02")
		}
		switch {
		case k.Revoked:
			row.Status = "revoked"
		case k.Expired(now):
			row.Status = "expired"
		}
		rows[i] = row
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No API keys configured. Use 'langtrans key create' to create one.")
		return nil
	}

	fmt.Printf("%-14s %-24s %-12s %-12s %-8s\n", "PREFIX", "LABEL", "CREATED", "EXPIRES", "STATUS")
	fmt.Printf("%-14s %-24s %-12s %-12s %-8s\n", "------", "-----", "-------", "-------", "------")
	for _, k := range rows {
		expires := k.Expires
		if expires == "" {
			expires = "never"
		}
		fmt.Printf("%-14s %-24s %-12s %-12s %-8s\n", k.Prefix, k.Label, k.Created, expires, k.Status)
	}

	return nil
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <prefix>",
		Short: "Revoke an API key by its prefix",
		Long:  "Revoke an API key, preventing any further authenticated requests with it. Revocation is permanent.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyRevoke(args[0])
		},
	}

	return cmd
}

func runKeyRevoke(prefix string) error {
	store, err := openKeystore()
	if err != nil {
		return err
	}

	changed, err := store.RevokeByPrefix(prefix)
	if errors.Is(err, keystore.ErrKeyNotFound) {
		return fmt.Errorf("no API key found with prefix %q", prefix)
	}
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if !changed {
		fmt.Println("Key was already revoked.")
		return nil
	}
	fmt.Printf("Revoked API key with prefix %q\n", prefix)
	return nil
}
