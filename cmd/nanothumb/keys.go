package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yoanbernabeu/nanothumbnail/internal/keys"
	"github.com/yoanbernabeu/nanothumbnail/pkg/models"
)

func newKeysCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage per-provider API keys and the active provider",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <provider> [key]",
		Short: "Store an API key for a provider",
		Long: `Store an API key for a provider. When the key is omitted it is read
from the terminal without echo. Keys are kept one slot per provider;
switching providers never discards another provider's key.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			providerType := models.ProviderType(args[0])
			if !providerType.IsValid() {
				return fmt.Errorf("unknown provider %q: must be one of %v", args[0], models.ValidProviders())
			}

			var key string
			if len(args) == 2 {
				key = args[1]
			} else {
				fmt.Fprintf(app.Out, "API key for %s: ", providerType)
				raw, err := term.ReadPassword(int(syscall.Stdin))
				fmt.Fprintln(app.Out)
				if err != nil {
					return fmt.Errorf("failed to read key: %w", err)
				}
				key = strings.TrimSpace(string(raw))
			}
			if key == "" {
				return fmt.Errorf("key cannot be empty")
			}

			store, err := keys.NewStore()
			if err != nil {
				return err
			}
			if err := store.SetKey(providerType, key); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Stored key for %s (%s)\n", providerType, keys.MaskKey(key))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <provider>",
		Short: "Show the masked key stored for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			providerType := models.ProviderType(args[0])
			store, err := keys.NewStore()
			if err != nil {
				return err
			}
			key, err := store.GetKey(providerType)
			if err != nil {
				return err
			}
			if key == "" {
				fmt.Fprintf(app.Out, "No key stored for %s\n", providerType)
				return nil
			}
			fmt.Fprintf(app.Out, "%s: %s\n", providerType, keys.MaskKey(key))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <provider>",
		Short: "Delete the key stored for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := keys.NewStore()
			if err != nil {
				return err
			}
			if err := store.DeleteKey(models.ProviderType(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Deleted key for %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored keys and the active provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := keys.NewStore()
			if err != nil {
				return err
			}
			settings, err := store.Load()
			if err != nil {
				return err
			}

			if len(settings.Keys) == 0 {
				fmt.Fprintln(app.Out, "No keys stored")
			}
			names := make([]string, 0, len(settings.Keys))
			for p := range settings.Keys {
				names = append(names, string(p))
			}
			sort.Strings(names)
			for _, name := range names {
				marker := " "
				if models.ProviderType(name) == settings.Provider {
					marker = "*"
				}
				fmt.Fprintf(app.Out, "%s %s: %s\n", marker, name, keys.MaskKey(settings.Keys[models.ProviderType(name)]))
			}
			fmt.Fprintf(app.Out, "Active provider: %s\n", settings.Provider)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "save-locally <on|off>",
		Short: "Toggle keeping a copy of every generated image in the local store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var save bool
			switch args[0] {
			case "on", "true":
				save = true
			case "off", "false":
				save = false
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}
			store, err := keys.NewStore()
			if err != nil {
				return err
			}
			if err := store.SetSaveLocally(save); err != nil {
				return err
			}
			if save {
				fmt.Fprintln(app.Out, "Generated images will be kept in the local store")
			} else {
				fmt.Fprintln(app.Out, "Generated images will only be written to the output file")
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "use <provider>",
		Short: "Select the active provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			providerType := models.ProviderType(args[0])
			if !providerType.IsValid() {
				return fmt.Errorf("unknown provider %q: must be one of %v", args[0], models.ValidProviders())
			}
			store, err := keys.NewStore()
			if err != nil {
				return err
			}
			if err := store.SetProvider(providerType); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Active provider is now %s\n", providerType)
			if key, err := store.GetKey(providerType); err == nil && key == "" {
				fmt.Fprintf(os.Stderr, "Warning: no key stored for %s yet\n", providerType)
			}
			return nil
		},
	})

	return cmd
}
