package cli

import (
	"github.com/spf13/cobra"
)

var (
	archiveOrg string
	archiveID  string
)

var archivesCmd = &cobra.Command{
	Use:   "archives",
	Short: "Work with archived items",
}

var archivesRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore an archived item at its provider",
	RunE:  runArchivesRestore,
}

func init() {
	archivesRestoreCmd.Flags().StringVar(&archiveOrg, "org", "", "organization id")
	archivesRestoreCmd.Flags().StringVar(&archiveID, "id", "", "archive id")
	_ = archivesRestoreCmd.MarkFlagRequired("org")
	_ = archivesRestoreCmd.MarkFlagRequired("id")

	archivesCmd.AddCommand(archivesRestoreCmd)
	rootCmd.AddCommand(archivesCmd)
}

func runArchivesRestore(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		item, err := a.integrations.Restore(cmd.Context(), archiveOrg, archiveID)
		if err != nil {
			return err
		}
		cmd.Printf("Restored %q in %s.\n", item.Name, item.Source.DisplayName())
		return nil
	})
}
