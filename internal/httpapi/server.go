package httpapi

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"alumnet/engagement-service/internal/auth"
	"alumnet/engagement-service/internal/lifecycle"
	"alumnet/engagement-service/internal/metrics"
	"alumnet/engagement-service/internal/ratelimit"
)

// Config wires the HTTP server's dependencies. Limiter, Metrics and Ready
// are optional.
type Config struct {
	Service *lifecycle.Service
	Issuer  *auth.Issuer
	Limiter *ratelimit.Limiter
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	Version string

	// Ready reports whether backing stores are reachable.
	Ready func(ctx context.Context) error
}

// NewServer builds the echo instance serving the public API.
func NewServer(cfg Config) *echo.Echo {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newValidator()
	e.HTTPErrorHandler = errorHandler
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 10 * time.Second

	if cfg.Metrics != nil {
		e.Use(cfg.Metrics.Middleware())
		e.GET("/metrics", echo.WrapHandler(cfg.Metrics.Handler()))
	}
	e.Use(requestLogger(cfg.Logger))

	e.GET("/health", healthHandler(cfg.Version, cfg.Ready))

	NewHandler(cfg.Service, cfg.Limiter).RegisterRoutes(e, authenticate(cfg.Issuer))
	return e
}

func healthHandler(version string, ready func(context.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := map[string]string{
			"status":  "ok",
			"service": "engagement-service",
			"version": version,
		}
		if ready != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				body["status"] = "degraded"
				return c.JSON(http.StatusServiceUnavailable, body)
			}
		}
		return c.JSON(http.StatusOK, body)
	}
}

// newValidator reports field errors by their JSON names.
func newValidator() echo.Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &structValidator{v: v}
}
