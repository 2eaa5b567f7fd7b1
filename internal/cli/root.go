package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgallion1/citecheck/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden at build time with -ldflags "-X".
var version = "dev"

// options holds state shared by every subcommand of one root command.
type options struct {
	cfgFile string
	verbose bool
	v       *viper.Viper
}

// NewRootCmd builds the citecheck command tree with its own viper instance.
func NewRootCmd() *cobra.Command {
	o := &options{v: viper.New()}
	config.Setup(o.v)

	root := &cobra.Command{
		Use:   "citecheck",
		Short: "citecheck - page-grounded Q&A extraction with citation verification",
		Long: `citecheck turns PDF documents into question/answer training records and
checks that every record is grounded in the page it cites.

Each candidate record claims a page number and a verbatim source quote. The
quote is looked up in the locally extracted text of that page and the record
is marked verified, partial_match, page_mismatch or quote_not_found. The
acceptance policy decides which records are written out.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.initConfig(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&o.cfgFile, "config", "", "config file (default: $HOME/.citecheck/config.yaml)")
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newRunCmd(o),
		newServeCmd(o),
		newConfigCmd(o),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "citecheck %s\n", version)
		},
	}
}

// initConfig reads the config file, if any. A missing default file is not
// an error; a missing file named with --config is.
func (o *options) initConfig(stderr io.Writer) error {
	if o.cfgFile != "" {
		o.v.SetConfigFile(o.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(stderr, "Error finding home directory: %v\n", err)
			return nil
		}
		o.v.AddConfigPath(filepath.Join(home, ".citecheck"))
		o.v.SetConfigType("yaml")
		o.v.SetConfigName("config")
	}

	if err := o.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if o.verbose {
		fmt.Fprintf(stderr, "Using config file: %s\n", o.v.ConfigFileUsed())
	}
	return nil
}

// logger writes text logs to w, at debug level when --verbose is set.
func (o *options) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// bindFlags binds flags (by flag name) to config keys so that a flag set on
// the command line wins over env and file values.
func (o *options) bindFlags(cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		_ = o.v.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
}
