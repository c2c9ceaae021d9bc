// Package server exposes forecasts over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"PriceForecaster/internal/logger"
	"PriceForecaster/internal/metrics"
	"PriceForecaster/internal/model"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// Forecaster produces a forecast result for a symbol. Failures are carried inside the result.
type Forecaster interface {
	Predict(ctx context.Context, symbol string) model.ForecastResult
}

type Config struct {
	Addr            string
	AllowedOrigins  []string
	DefaultSymbol   string
	MetricsPath     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server is the HTTP front of the predictor.
type Server struct {
	cfg        Config
	echo       *echo.Echo
	forecaster Forecaster
	log        zerolog.Logger
}

// New builds the echo instance and registers routes. Metrics are served only when m is non-nil.
func New(cfg Config, f Forecaster, m *metrics.Recorder, log zerolog.Logger) *Server {
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	s := &Server{
		cfg:        cfg,
		echo:       e,
		forecaster: f,
		log:        logger.Component(log, "server"),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
	}))
	e.Use(s.requestLogging)

	e.GET("/predict", s.predict)
	e.GET("/healthz", s.health)
	if m != nil && cfg.MetricsPath != "" {
		e.GET(cfg.MetricsPath, echo.WrapHandler(m.Handler()))
	}
	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := s.echo.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	s.log.Info().Msg("shutting down http server")
	return s.echo.Shutdown(shutdownCtx)
}

// predict always answers 200 with a result body; failures are reported in its error field.
func (s *Server) predict(c echo.Context) error {
	symbol := strings.TrimSpace(c.QueryParam("symbol"))
	if symbol == "" {
		symbol = s.cfg.DefaultSymbol
	}
	res := s.forecaster.Predict(c.Request().Context(), symbol)
	return c.JSON(http.StatusOK, res)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) requestLogging(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		req := c.Request()
		s.log.Debug().
			Str("method", req.Method).
			Str("uri", req.RequestURI).
			Int("status", c.Response().Status).
			Dur("latency", time.Since(start)).
			Msg("request")
		return err
	}
}
