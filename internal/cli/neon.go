package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/softflow/deskpro/internal/deskprosrv/neon"
	"github.com/softflow/deskpro/internal/deskprosrv/server"
	"github.com/spf13/cobra"
)

var reconcileDelete bool

var errNoProvider = errors.New("no managed database provider is configured (tenant_dev_mode is on)")

var neonCmd = &cobra.Command{
	Use:   "neon",
	Short: "Inspect databases at the managed database provider",
}

var neonListCmd = &cobra.Command{
	Use:   "list-databases",
	Short: "List databases on the project branch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *server.Services) error {
			if svc.Provider == nil {
				return errNoProvider
			}
			dbs, err := svc.Provider.ListDatabases(ctx)
			if err != nil {
				return err
			}
			printDatabases(cmd, dbs)
			return nil
		})
	},
}

var neonReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Find tenant databases that no tenant points at",
	Long: `Find databases named tenant_* at the provider that have no Tenant row.
They are left behind when a failed signup or a deletion could not reach the
provider. With --delete they are removed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *server.Services) error {
			if svc.Provider == nil {
				return errNoProvider
			}
			if reconcileDelete {
				deleted, err := svc.Orchestrator.DeleteOrphans(ctx)
				for _, name := range deleted {
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", name)
				}
				return err
			}
			orphans, err := svc.Orchestrator.Orphans(ctx)
			if err != nil {
				return err
			}
			if len(orphans) == 0 && !jsonOutput {
				fmt.Fprintln(cmd.OutOrStdout(), "No orphaned databases.")
				return nil
			}
			printDatabases(cmd, orphans)
			return nil
		})
	},
}

func printDatabases(cmd *cobra.Command, dbs []neon.Database) {
	if jsonOutput {
		printJSON(cmd.OutOrStdout(), dbs)
		return
	}
	rows := make([][]string, 0, len(dbs))
	for _, d := range dbs {
		rows = append(rows, []string{d.Name, d.OwnerName, d.CreatedAt.UTC().Format(time.RFC3339)})
	}
	printTable(cmd.OutOrStdout(), []string{"name", "owner", "created"}, rows)
}

func init() {
	neonReconcileCmd.Flags().BoolVar(&reconcileDelete, "delete", false, "Delete the orphaned databases")
	neonCmd.AddCommand(neonListCmd, neonReconcileCmd)
	rootCmd.AddCommand(neonCmd)
}
