package cli

import (
	"context"
	"fmt"

	"github.com/softflow/deskpro/internal/deskprosrv/server"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Apply database schemas",
}

var schemaApplyCmd = &cobra.Command{
	Use:   "apply <slug>",
	Short: "Apply the tenant schema to one active tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *server.Services) error {
			if err := svc.Orchestrator.ApplySchema(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema applied to tenant '%s'.\n", args[0])
			return nil
		})
	},
}

var schemaMigrateAllCmd = &cobra.Command{
	Use:   "migrate-all",
	Short: "Apply the tenant schema to every active tenant",
	Long: `Apply the tenant schema to every active tenant. A failing tenant is
reported and the run continues with the next one; the command fails if any
tenant failed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *server.Services) error {
			results, err := svc.Orchestrator.MigrateAll(ctx)
			if err != nil {
				return err
			}
			failed := 0
			rows := make([][]string, 0, len(results))
			out := make([]map[string]string, 0, len(results))
			for _, r := range results {
				status, detail := "ok", ""
				if r.Err != nil {
					failed++
					status, detail = "failed", r.Err.Error()
				}
				rows = append(rows, []string{r.Slug, status, detail})
				out = append(out, map[string]string{"slug": r.Slug, "status": status, "error": detail})
			}
			if jsonOutput {
				printJSON(cmd.OutOrStdout(), out)
			} else {
				printTable(cmd.OutOrStdout(), []string{"slug", "status", "error"}, rows)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d tenants failed to migrate", failed, len(results))
			}
			return nil
		})
	},
}

var schemaControlPlaneCmd = &cobra.Command{
	Use:   "apply-control-plane",
	Short: "Apply the control plane schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *server.Services) error {
			if err := svc.ApplyControlPlaneSchema(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Control plane schema is up to date.")
			return nil
		})
	},
}

func init() {
	schemaCmd.AddCommand(schemaApplyCmd, schemaMigrateAllCmd, schemaControlPlaneCmd)
	rootCmd.AddCommand(schemaCmd)
}
