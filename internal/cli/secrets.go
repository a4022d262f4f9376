package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"appbuilder/pkg/config"
)

func (a *App) newSecretsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the encrypted API key store",
		Long: `Manage ~/.appbuilder/secrets.enc, an AES-256-GCM encrypted map of API keys.

The passphrase is taken from ` + config.EnvPassphrase + ` or prompted for without echo.
Keys found here take precedence over the environment.`,
	}
	cmd.AddCommand(a.newSecretsSetCmd(), a.newSecretsListCmd())
	return cmd
}

func (a *App) newSecretsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set NAME [VALUE]",
		Short: "Store a secret, e.g. ANTHROPIC_API_KEY",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.SecretsPath()
			if err != nil {
				return err //nolint:wrapcheck // home directory error
			}

			value := ""
			if len(args) == 2 {
				value = args[1]
			} else if value, err = readLine(cmd.InOrStdin(), cmd.ErrOrStderr(), args[0]+": "); err != nil {
				return err
			}
			if value == "" {
				return errors.New("secret value cannot be empty")
			}

			_, statErr := os.Stat(path)
			isNew := errors.Is(statErr, os.ErrNotExist)
			passphrase, err := a.Passphrase(isNew)
			if err != nil {
				return err
			}

			secrets, err := config.LoadSecrets(path, passphrase)
			if err != nil {
				return err //nolint:wrapcheck // decryption errors carry context
			}
			secrets[args[0]] = value
			if err := config.EncryptSecretsFile(path, passphrase, secrets); err != nil {
				return err //nolint:wrapcheck // encryption errors carry context
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Stored %s in %s\n", args[0], path)
			return nil
		},
	}
}

func (a *App) newSecretsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored secret names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.SecretsPath()
			if err != nil {
				return err //nolint:wrapcheck // home directory error
			}
			if _, err := os.Stat(path); err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No secrets stored.")
				return nil //nolint:nilerr // a missing file is an empty store
			}
			passphrase, err := a.Passphrase(false)
			if err != nil {
				return err
			}
			secrets, err := config.DecryptSecretsFile(path, passphrase)
			if err != nil {
				return err //nolint:wrapcheck // decryption errors carry context
			}

			names := make([]string, 0, len(secrets))
			for name := range secrets {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
