package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"harvester/internal/config"
	"harvester/internal/credentials"
	"harvester/internal/pipeline"
)

var validateOut string

func init() {
	validateCmd.Flags().StringVarP(&validateOut, "output", "o", "",
		"Also write the configuration with every default applied to this file.")
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate [--config <path>] [--output <normalized.yaml>]",
	Short: "Checks the configuration and that every enabled platform has its secret.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}

		creds, err := credentials.FromConfig(cfg.Harvester.Credentials)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, cfg.String())

		if validateOut != "" {
			if err := cfg.SaveConfig(validateOut); err != nil {
				return err
			}

			fmt.Fprintf(w, "normalized configuration written to %s\n", validateOut)
		}

		var missing []error

		for _, name := range cfg.EnabledPlatforms() {
			secret, required := pipeline.SecretFor(name)

			_, err := creds.Secret(cmd.Context(), secret)

			switch {
			case err == nil:
				fmt.Fprintf(w, "  %-9s secret %s found\n", name, secret)
			case !required && errors.Is(err, credentials.ErrSecretNotFound):
				fmt.Fprintf(w, "  %-9s secret %s not set (optional)\n", name, secret)
			default:
				fmt.Fprintf(w, "  %-9s secret %s: %v\n", name, secret, err)
				missing = append(missing, fmt.Errorf("%s: %w", name, err))
			}
		}

		return errors.Join(missing...)
	},
}
