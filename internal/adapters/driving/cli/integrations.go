package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

var (
	integrationOrg    string
	integrationSource string
	integrationJSON   bool
)

var integrationsCmd = &cobra.Command{
	Use:     "integrations",
	Aliases: []string{"integration"},
	Short:   "Inspect and manage an organization's integrations",
}

var integrationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an organization's integrations",
	RunE:  runIntegrationsList,
}

var integrationsRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh an integration's access token",
	RunE:  runIntegrationsRefresh,
}

var integrationsTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Check that an integration's credentials still work",
	RunE:  runIntegrationsTest,
}

var integrationsDisconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Unregister webhooks and deactivate an integration",
	RunE:  runIntegrationsDisconnect,
}

func init() {
	integrationsCmd.PersistentFlags().StringVar(&integrationOrg, "org", "", "organization id")
	_ = integrationsCmd.MarkPersistentFlagRequired("org")

	for _, c := range []*cobra.Command{integrationsRefreshCmd, integrationsTestCmd, integrationsDisconnectCmd} {
		c.Flags().StringVar(&integrationSource, "source", "", "source, e.g. google or slack")
		_ = c.MarkFlagRequired("source")
	}
	integrationsListCmd.Flags().BoolVar(&integrationJSON, "json", false, "print JSON")

	integrationsCmd.AddCommand(integrationsListCmd, integrationsRefreshCmd, integrationsTestCmd, integrationsDisconnectCmd)
	rootCmd.AddCommand(integrationsCmd)
}

func runIntegrationsList(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		creds, err := a.integrations.List(cmd.Context(), integrationOrg)
		if err != nil {
			return err
		}
		if integrationJSON {
			if creds == nil {
				creds = []domain.IntegrationCredential{}
			}
			return writeJSON(cmd.OutOrStdout(), creds)
		}
		if len(creds) == 0 {
			cmd.Printf("No integrations for organization %s.\n", integrationOrg)
			return nil
		}

		rows := make([][]string, 0, len(creds))
		for i := range creds {
			c := &creds[i]
			rows = append(rows, []string{
				c.Source.Slug(),
				yesNo(c.IsActive),
				string(c.SyncStatus),
				formatExpiry(c.ExpiresAt),
				c.LastError,
			})
		}
		cmd.Println(renderTable([]string{"SOURCE", "ACTIVE", "STATUS", "EXPIRES", "LAST ERROR"}, rows))
		return nil
	})
}

func runIntegrationsRefresh(cmd *cobra.Command, _ []string) error {
	source, err := domain.ParseSource(integrationSource)
	if err != nil {
		return err
	}
	return withApp(cmd.Context(), func(a *app) error {
		cred, err := a.integrations.Refresh(cmd.Context(), integrationOrg, source)
		if err != nil {
			return err
		}
		cmd.Printf("Refreshed %s. Token expires %s.\n", source.DisplayName(), formatExpiry(cred.ExpiresAt))
		return nil
	})
}

func runIntegrationsTest(cmd *cobra.Command, _ []string) error {
	source, err := domain.ParseSource(integrationSource)
	if err != nil {
		return err
	}
	return withApp(cmd.Context(), func(a *app) error {
		ok, err := a.integrations.TestConnection(cmd.Context(), integrationOrg, source)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New(source.DisplayName() + " rejected the stored credentials")
		}
		cmd.Printf("%s connection OK.\n", source.DisplayName())
		return nil
	})
}

func runIntegrationsDisconnect(cmd *cobra.Command, _ []string) error {
	source, err := domain.ParseSource(integrationSource)
	if err != nil {
		return err
	}
	return withApp(cmd.Context(), func(a *app) error {
		if err := a.integrations.Disconnect(cmd.Context(), integrationOrg, source); err != nil {
			return err
		}
		cmd.Printf("Disconnected %s.\n", source.DisplayName())
		return nil
	})
}

func formatExpiry(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}
