package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"halcyon-hq/callisto/pkg/cli"
	"halcyon-hq/callisto/pkg/config"
	"halcyon-hq/callisto/pkg/keypool"
	"halcyon-hq/callisto/pkg/vault"
)

var keysFlags struct {
	name     string
	secret   string
	priority int
	format   string
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage pool credentials",
	Long: `Add, list, and manage API credentials in the rotation pool.

Secrets are encrypted with the vault master secret before they are
persisted; the plaintext never reaches storage or logs. Listings show
secrets in masked form only.

Subcommands:
  add        - Add a credential to the pool
  list       - List pool credentials
  remove     - Remove a credential
  activate   - Mark a credential active
  deactivate - Mark a credential inactive

Examples:
  # Add a key, prompting for the secret
  callisto keys add --name primary --priority 1

  # List keys as JSON
  callisto keys list --format json

  # Take a key out of rotation
  callisto keys deactivate <key-id>`,
}

var keysAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a credential to the pool",
	Long: `Add an API credential to the rotation pool.

The secret is read from the --secret flag, the CALLISTO_NEW_KEY_SECRET
environment variable, or an interactive prompt, in that order. Prefer
the environment variable or the prompt; flags leak into shell history.`,
	RunE: addKey,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pool credentials",
	Long:  `List pool credentials with usage counters. Secrets appear masked.`,
	RunE:  listKeys,
}

var keysRemoveCmd = &cobra.Command{
	Use:   "remove <key-id>",
	Short: "Remove a credential",
	Args:  cobra.ExactArgs(1),
	RunE:  removeKey,
}

var keysActivateCmd = &cobra.Command{
	Use:   "activate <key-id>",
	Short: "Mark a credential active",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setKeyActive(cmd, args[0], true) },
}

var keysDeactivateCmd = &cobra.Command{
	Use:   "deactivate <key-id>",
	Short: "Mark a credential inactive",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setKeyActive(cmd, args[0], false) },
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysAddCmd, keysListCmd, keysRemoveCmd, keysActivateCmd, keysDeactivateCmd)

	keysAddCmd.Flags().StringVar(&keysFlags.name, "name", "", "credential name (required)")
	keysAddCmd.Flags().StringVar(&keysFlags.secret, "secret", "", "plaintext API key (prompted if empty)")
	keysAddCmd.Flags().IntVar(&keysFlags.priority, "priority", 0, "selection priority, lower selects first")
	_ = keysAddCmd.MarkFlagRequired("name")

	keysListCmd.Flags().StringVar(&keysFlags.format, "format", "text", "output format: text, json")
}

// openPool builds the key pool from the configured storage backend and
// vault. The caller must invoke the returned cleanup.
func openPool() (*keypool.Pool, func(), error) {
	_ = godotenv.Load()

	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	if cfg.Vault.MasterSecret == "" {
		return nil, nil, cli.NewConfigError("vault.master_secret", "master secret is required for key management")
	}

	store, err := buildStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	v, err := vault.New(cfg.Vault.MasterSecret)
	if err != nil {
		store.Close()
		return nil, nil, cli.NewConfigError("vault.master_secret", err.Error())
	}

	return keypool.New(store, v), func() { store.Close() }, nil
}

func addKey(cmd *cobra.Command, args []string) error {
	secret := keysFlags.secret
	if secret == "" {
		secret = os.Getenv("CALLISTO_NEW_KEY_SECRET")
	}
	if secret == "" {
		fmt.Fprint(os.Stderr, "API key secret: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return cli.NewCommandError("keys add", err)
			}
			return cli.NewCommandError("keys add", fmt.Errorf("no secret provided"))
		}
		secret = strings.TrimSpace(scanner.Text())
	}

	pool, cleanup, err := openPool()
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := pool.AddKey(cmd.Context(), keysFlags.name, secret, keysFlags.priority)
	if err != nil {
		return cli.NewCommandError("keys add", err)
	}

	fmt.Printf("✓ Credential %q added\n", keysFlags.name)
	fmt.Printf("Key ID: %s\n", id)
	return nil
}

func listKeys(cmd *cobra.Command, args []string) error {
	pool, cleanup, err := openPool()
	if err != nil {
		return err
	}
	defer cleanup()

	keys, err := pool.ListKeys(cmd.Context())
	if err != nil {
		return cli.NewCommandError("keys list", err)
	}

	if keysFlags.format == string(cli.FormatJSON) {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, keys)
	}

	if len(keys) == 0 {
		fmt.Println("No credentials in the pool")
		return nil
	}
	fmt.Printf("%-38s %-16s %-12s %-8s %-10s %-8s\n", "ID", "NAME", "SECRET", "ACTIVE", "PRIORITY", "USED")
	for _, k := range keys {
		fmt.Printf("%-38s %-16s %-12s %-8t %-10d %-8d\n",
			k.ID, k.Name, k.MaskedSecret, k.Active, k.Priority, k.UsageCount)
	}
	return nil
}

func removeKey(cmd *cobra.Command, args []string) error {
	pool, cleanup, err := openPool()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := pool.DeleteKey(cmd.Context(), args[0]); err != nil {
		return cli.NewCommandError("keys remove", err)
	}
	fmt.Printf("✓ Credential %s removed\n", args[0])
	return nil
}

func setKeyActive(cmd *cobra.Command, id string, active bool) error {
	pool, cleanup, err := openPool()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := pool.SetActive(cmd.Context(), id, active); err != nil {
		return cli.NewCommandError("keys", err)
	}
	if active {
		fmt.Printf("✓ Credential %s activated\n", id)
	} else {
		fmt.Printf("✓ Credential %s deactivated\n", id)
	}
	return nil
}
