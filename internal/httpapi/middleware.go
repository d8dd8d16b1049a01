package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"alumnet/engagement-service/internal/auth"
	"alumnet/engagement-service/internal/lifecycle"
	"alumnet/engagement-service/internal/logger"
	"alumnet/engagement-service/internal/ratelimit"
)

const (
	headerRequestID = "X-Request-ID"
	callerKey       = "caller"
)

// requestLogger assigns a request id, stores a request-scoped logger in the
// request context and logs one line per request.
func requestLogger(base *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			requestID := c.Request().Header.Get(headerRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(headerRequestID, requestID)

			log := base.With(zap.String("request_id", requestID))
			c.SetRequest(c.Request().WithContext(logger.WithContext(c.Request().Context(), log)))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			log.Info("HTTP request",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
			)
			return nil
		}
	}
}

// authenticate resolves the bearer token into a lifecycle.Caller.
func authenticate(issuer *auth.Issuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return jsonError(c, http.StatusUnauthorized, "missing bearer token")
			}
			caller, err := issuer.Parse(token)
			if err != nil {
				logger.FromContext(c.Request().Context()).Debug("rejected token", zap.Error(err))
				return jsonError(c, http.StatusUnauthorized, "invalid or expired token")
			}
			c.Set(callerKey, caller)
			return next(c)
		}
	}
}

// rateLimited throttles a route per caller.
func rateLimited(l *ratelimit.Limiter, name string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller := callerFrom(c)
			key := name + ":" + string(caller.Role) + ":" + itoa(caller.ProfileID)
			if !l.Allow(c.Request().Context(), key) {
				return jsonError(c, http.StatusTooManyRequests, "too many requests")
			}
			return next(c)
		}
	}
}

func callerFrom(c echo.Context) lifecycle.Caller {
	caller, _ := c.Get(callerKey).(lifecycle.Caller)
	return caller
}
