package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/common/httpx"
	commonmiddleware "github.com/softflow/deskpro/internal/common/middleware"
	"github.com/softflow/deskpro/internal/deskprosrv/apis/accounts"
	"github.com/softflow/deskpro/internal/deskprosrv/apis/tenants"
	"github.com/softflow/deskpro/internal/deskprosrv/apis/tickets"
	"github.com/softflow/deskpro/internal/deskprosrv/config"
	"github.com/softflow/deskpro/internal/deskprosrv/server/middleware"
	"github.com/softflow/deskpro/internal/deskprosrv/telemetry"
)

type DeskproServer struct {
	Router   *chi.Mux
	services *Services
}

func CreateNewServer(svc *Services) (*DeskproServer, error) {
	if svc == nil {
		return nil, errors.New("services are required")
	}
	telemetry.Register(prometheus.DefaultRegisterer)
	s := &DeskproServer{
		Router:   chi.NewRouter(),
		services: svc,
	}
	return s, nil
}

func (s *DeskproServer) MountHandlers() {
	s.Router.Use(commonmiddleware.RequestLogger)
	s.Router.Use(commonmiddleware.PanicHandler)
	if config.Config().HandleCORS {
		s.Router.Use(s.corsHandler())
	}
	// every request gets a fresh tenant scope, resolved outside public paths
	s.Router.Use(middleware.NewTenantGate(s.services.Tokens, s.services.Loader).Handler)

	s.Router.Get("/healthz", s.healthz)
	s.Router.Get("/version", s.getVersion)
	s.Router.Handle("/metrics", promhttp.Handler())
	s.Router.Route("/api", s.mountAPIHandlers)

	if zerolog.GlobalLevel() <= zerolog.TraceLevel {
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			log.Trace().Msgf("%s %s", method, route)
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			log.Error().Err(err).Msg("unable to walk routes")
		}
	}
}

func (s *DeskproServer) mountAPIHandlers(r chi.Router) {
	cfg := config.Config()
	r.Mount("/tenants", tenants.Router(&tenants.Handler{
		Provisioner: s.services.Orchestrator,
		Directory:   s.services.ControlPlane,
		AdminKey:    cfg.AdminAPIKey,
	}))
	r.Mount("/auth", accounts.Router(&accounts.Handler{
		Tokens:        s.services.Tokens,
		Loader:        s.services.Loader,
		Users:         s.services.TenantData,
		SecureCookies: cfg.Production,
	}))
	r.Mount("/tickets", tickets.Router(&tickets.Handler{
		Store: s.services.TenantData,
	}))
}

func (s *DeskproServer) corsHandler() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   config.Config().CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.AdminKeyHeader},
		ExposedHeaders:   []string{commonmiddleware.RequestIdHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

type GetVersionRsp struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}

func (s *DeskproServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &GetVersionRsp{
		ServerVersion: "Deskpro Server: " + config.Version,
		ApiVersion:    config.APIVersion,
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}

type HealthRsp struct {
	Status            string `json:"status"`
	RegisteredTenants int    `json:"registeredTenants"`
}

func (s *DeskproServer) healthz(w http.ResponseWriter, r *http.Request) {
	rsp := &HealthRsp{
		Status:            "ok",
		RegisteredTenants: s.services.Registry.Len(),
	}
	status := http.StatusOK
	if err := s.services.Ping(r.Context()); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("control plane database is unreachable")
		rsp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	httpx.SendJsonRsp(r.Context(), w, status, rsp)
}
