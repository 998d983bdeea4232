package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/janhq/sql-agent/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long:  `Loads the configuration from the environment and .env files and prints it. Secrets are masked.`,
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	loadEnvFiles()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(maskSecrets(*cfg))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func maskSecrets(cfg config.Config) config.Config {
	if cfg.LLMAPIKey != "" {
		cfg.LLMAPIKey = "****"
	}
	if u, err := url.Parse(cfg.DatabaseURL); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "****")
			cfg.DatabaseURL = u.String()
		}
	}
	return cfg
}
