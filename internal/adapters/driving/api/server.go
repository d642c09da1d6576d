package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driving"
)

// Services are the driving ports the API calls into.
type Services struct {
	OAuth        driving.OAuthService
	Integrations driving.IntegrationService
	Webhooks     driving.WebhookService
	Sources      driving.SourceRegistry
}

// Server serves the sweep HTTP API.
type Server struct {
	echo     *echo.Echo
	settings domain.ServerSettings
	services Services
	logger   *zap.Logger
	now      func() time.Time
}

// NewServer builds the echo instance and registers every route.
func NewServer(settings domain.ServerSettings, services Services, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	s := &Server{
		echo:     e,
		settings: settings,
		services: services,
		logger:   logger,
		now:      time.Now,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.Use(requestContext(), accessLog(s.logger))

	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// The state carries the caller's identity through the provider round trip.
	e.GET("/api/integrations/:source/callback", s.callback)

	e.POST("/api/webhooks/:source", s.webhook)
	e.GET("/api/webhooks/:source", s.webhookChallenge)

	authed := e.Group("/api", requireIdentity(s.settings.APIToken))
	authed.GET("/sources", s.listSources)
	authed.GET("/integrations", s.listIntegrations)
	authed.GET("/integrations/:source/authorize", s.authorize)
	authed.POST("/integrations/:source/refresh", s.refresh)
	authed.POST("/integrations/:source/test", s.testConnection)
	authed.DELETE("/integrations/:source", s.disconnect)
	authed.POST("/archives/:id/restore", s.restore)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.settings.Addr))
		if err := s.echo.Start(s.settings.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.settings.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
