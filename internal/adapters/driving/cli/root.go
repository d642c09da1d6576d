// Package cli provides the sweep command line: the serve entry point and
// operator commands that act on stored integrations directly.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/custodia-labs/sweep/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/logger"
)

// version is set at build time with -ldflags "-X .../cli.version=...".
var version = "dev"

var (
	cfgFile string
	verbose bool

	settings   domain.Settings
	baseLogger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "sweep",
	Short: "SaaS connector service for workspace hygiene audits",
	Long: `Sweep connects organizations to Google, Microsoft, Dropbox, Slack,
Figma, Linear, Jira and Notion. It runs the OAuth handshake, keeps tokens
and webhook subscriptions fresh, verifies inbound webhooks and restores
archived items.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.sweep/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadSettings reads configuration and installs the process logger before
// any subcommand runs.
func loadSettings(_ *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	s, err := file.Load(cfgFile)
	if err != nil {
		return err
	}
	l, err := logger.New(s.Log.Level, s.Log.Format)
	if err != nil {
		return err
	}
	logger.SetDefault(l)

	settings = s
	baseLogger = l
	return nil
}
