package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/common/logtrace"
	"github.com/softflow/deskpro/internal/deskprosrv/config"
	"github.com/softflow/deskpro/internal/deskprosrv/server"
)

const defaultConfigFile = "deskprosrv.conf"

func init() {
	logtrace.InitLogger()
}

type cmdoptions struct {
	configFile *string
	migrate    *bool
}

func main() {
	slog := log.With().Str("state", "init").Logger()
	opt := parseFlags()

	slog.Info().Str("config_file", *opt.configFile).Msg("loading config file")
	if err := config.LoadConfig(*opt.configFile); err != nil {
		slog.Error().Str("config_file", *opt.configFile).Err(err).Msg("unable to load config file")
		os.Exit(1)
	}
	cfg := config.Config()
	logtrace.InitLogger(cfg.LogLevel)
	slog = log.With().Str("state", "init").Logger()
	if cfg.ServerPort == "" {
		slog.Error().Msg("server port not defined")
		os.Exit(1)
	}
	if cfg.TenantDevMode {
		slog.Warn().Msg("tenant dev mode enabled, all tenants share one database")
	}

	svc, err := server.NewServices()
	if err != nil {
		slog.Error().Err(err).Msg("unable to create services")
		os.Exit(1)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = slog.WithContext(ctx)

	if *opt.migrate {
		if err := svc.ApplyControlPlaneSchema(ctx); err != nil {
			slog.Error().Err(err).Msg("unable to apply control plane schema")
			os.Exit(1)
		}
	}

	s, err := server.CreateNewServer(svc)
	if err != nil {
		slog.Error().Err(err).Msg("unable to create server")
		os.Exit(1)
	}
	s.MountHandlers()

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info().Str("port", cfg.ServerPort).Msg("deskpro server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	log.Info().Msg("server shut down")
}

func parseFlags() cmdoptions {
	var opt cmdoptions
	def := os.Getenv("DESKPRO_CONFIG")
	if def == "" {
		def = defaultConfigFile
	}
	opt.configFile = flag.String("config", def, "Path to the config file")
	opt.migrate = flag.Bool("migrate", true, "Apply the control plane schema at startup")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opt
}
