package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sweep/internal/adapters/driven/oauth"
	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/connectors/factory"
	"github.com/custodia-labs/sweep/internal/core/services"
)

var sourcesJSON bool

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List supported sources and whether they are configured",
	RunE:  runSources,
}

func init() {
	sourcesCmd.Flags().BoolVar(&sourcesJSON, "json", false, "print JSON")
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, _ []string) error {
	// Listing needs the provider configuration only, not storage.
	configs := connectors.NewConfigRegistry(&settings)
	registry := services.NewSourceRegistry(
		factory.NewWithBuiltins(&settings, configs, oauth.NewClient(nil)), configs, &settings)

	infos := registry.Sources()
	if sourcesJSON {
		return writeJSON(cmd.OutOrStdout(), infos)
	}

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{
			info.Source.Slug(),
			info.DisplayName,
			yesNo(info.Configured),
			strings.Join(info.Operations, ","),
			info.CallbackURL,
		})
	}
	cmd.Println(renderTable([]string{"SOURCE", "NAME", "CONFIGURED", "OPERATIONS", "CALLBACK"}, rows))
	return nil
}
