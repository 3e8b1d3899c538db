// Package cli implements deskproctl, the operator CLI. Commands run
// in-process against the control plane and the managed database provider
// using the same configuration file as the server.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/common/logtrace"
	"github.com/softflow/deskpro/internal/deskprosrv/config"
	"github.com/softflow/deskpro/internal/deskprosrv/server"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	jsonOutput bool
	configFile string
	logLevel   string
)

// newServices builds the service graph. Tests replace it.
var newServices = func() (*server.Services, error) {
	return server.NewServices()
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "deskproctl",
	Short: "deskproctl administers Deskpro tenants",
	Long: `deskproctl is the operator tool for a Deskpro installation.
It lists and deletes tenants, applies schemas to tenant databases and
reconciles databases at the managed database provider with the control plane.`,
	PersistentPreRunE: preRunHandlePersistents,
	SilenceErrors:     true,
	SilenceUsage:      true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("DESKPRO_CONFIG"), "Path to the server configuration file")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level")

	rootCmd.AddCommand(newVersionCmd())
}

// Execute runs the root command and exits non zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if jsonOutput {
			printJSON(os.Stdout, map[string]any{"result": 0, "error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func preRunHandlePersistents(cmd *cobra.Command, args []string) error {
	logtrace.InitLogger(logLevel)
	if cmd.Name() == "version" {
		return nil
	}
	if config.Config() != nil && configFile == "" {
		return nil
	}
	if err := config.LoadConfig(configFile); err != nil {
		return fmt.Errorf("unable to load config file: %w", err)
	}
	return nil
}

// withServices runs fn with a service graph whose pools are closed
// afterwards.
func withServices(cmd *cobra.Command, fn func(ctx context.Context, svc *server.Services) error) error {
	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.Close()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = log.Logger.WithContext(ctx)
	return fn(ctx, svc)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of deskproctl",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(cmd.OutOrStdout(), map[string]string{"version": config.Version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "deskproctl %s\n", config.Version)
			}
		},
	}
}

// printJSON prints data as indented JSON
func printJSON(w io.Writer, data any) {
	out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(out))
}
