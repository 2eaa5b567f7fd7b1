package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgallion1/citecheck/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const configHierarchy = `Configuration hierarchy (highest to lowest priority):
  1. CLI flags
  2. Environment variables (CITECHECK_*, ANTHROPIC_API_KEY, OPENAI_API_KEY)
  3. Config file (~/.citecheck/config.yaml)
  4. Defaults
`

const configHeader = `# citecheck configuration
#
# Flags and CITECHECK_* environment variables override values in this file.

`

const configFooter = `
# API keys are better kept in the environment:
#   export ANTHROPIC_API_KEY=sk-ant-...
#   export OPENAI_API_KEY=sk-...
`

func newConfigCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage citecheck configuration",
		Long:  "Manage citecheck configuration files and settings.\n\n" + configHierarchy,
	}
	cmd.AddCommand(newConfigShowCmd(o), newConfigInitCmd(o))
	return cmd
}

func newConfigShowCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromViper(o.v)
			if err != nil {
				return err
			}

			if used := o.v.ConfigFileUsed(); used != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n\n", used)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "No configuration file found (using defaults)\n\n")
			}

			data, err := yaml.Marshal(redact(cfg))
			if err != nil {
				return fmt.Errorf("error marshaling config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, string(data))
			fmt.Fprintf(out, "\n%s", configHierarchy)
			return nil
		},
	}
}

func newConfigInitCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long:  "Create a default configuration file at ~/.citecheck/config.yaml, or at the path given with --config.",
		// The file does not exist yet, so skip reading it.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			path := o.cfgFile
			if path == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("error finding home directory: %w", err)
				}
				path = filepath.Join(home, ".citecheck", "config.yaml")
			}
			if err := writeDefaultConfig(path); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created default configuration: %s\n", path)
			fmt.Fprintf(out, "\nTo view the configuration:\n  citecheck config show\n")
			return nil
		},
	}
}

func writeDefaultConfig(path string) (err error) {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'citecheck config show' to view it, or delete it first to recreate", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close config file: %w", cerr)
		}
	}()

	_, err = fmt.Fprintf(f, "%s%s%s", configHeader, data, configFooter)
	return err
}

// redact masks secrets before the config is printed.
func redact(cfg config.Config) config.Config {
	for _, s := range []*string{&cfg.APIKey, &cfg.AnthropicAPIKey, &cfg.OpenAIAPIKey} {
		if *s != "" {
			*s = "****"
		}
	}
	return cfg
}
