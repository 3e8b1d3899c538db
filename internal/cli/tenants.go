package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/softflow/deskpro/internal/deskprosrv/server"
	"github.com/spf13/cobra"
)

var listAllTenants bool

var tenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "Inspect and delete tenants",
}

var tenantsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tenants registered in the control plane",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *server.Services) error {
			tenants, err := svc.ControlPlane.ListTenants(ctx, !listAllTenants)
			if err != nil {
				return err
			}
			if jsonOutput {
				out := make([]map[string]any, 0, len(tenants))
				for _, t := range tenants {
					out = append(out, map[string]any{
						"id":          t.ID.String(),
						"slug":        t.Slug,
						"name":        t.Name,
						"admin_email": t.AdminEmail,
						"database":    t.DBName,
						"is_active":   t.IsActive,
						"created_at":  t.CreatedAt.UTC().Format(time.RFC3339),
					})
				}
				printJSON(cmd.OutOrStdout(), out)
				return nil
			}
			rows := make([][]string, 0, len(tenants))
			for _, t := range tenants {
				rows = append(rows, []string{t.Slug, t.Name, t.AdminEmail, t.DBName, strconv.FormatBool(t.IsActive), t.CreatedAt.UTC().Format(time.RFC3339)})
			}
			printTable(cmd.OutOrStdout(), []string{"slug", "name", "admin_email", "database", "active", "created"}, rows)
			return nil
		})
	},
}

var tenantsDeleteCmd = &cobra.Command{
	Use:   "delete <slug>",
	Short: "Delete a tenant, its provider database and its members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		slug := args[0]
		return withServices(cmd, func(ctx context.Context, svc *server.Services) error {
			if err := svc.Orchestrator.Delete(ctx, slug); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tenant '%s' deleted successfully.\n", slug)
			return nil
		})
	},
}

func init() {
	tenantsListCmd.Flags().BoolVarP(&listAllTenants, "all", "a", false, "Include tenants that are not active")
	tenantsCmd.AddCommand(tenantsListCmd, tenantsDeleteCmd)
	rootCmd.AddCommand(tenantsCmd)
}
