package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"alumnet/engagement-service/internal/lifecycle"
	"alumnet/engagement-service/internal/logger"
)

// statusFor maps lifecycle codes to HTTP status codes.
var statusFor = map[lifecycle.Code]int{
	lifecycle.CodeNotFound:     http.StatusNotFound,
	lifecycle.CodeInvalidState: http.StatusBadRequest,
	lifecycle.CodeValidation:   http.StatusBadRequest,
	lifecycle.CodeForbidden:    http.StatusForbidden,
	lifecycle.CodeConflict:     http.StatusConflict,
}

// writeError renders err. Internal errors are logged and hidden.
func writeError(c echo.Context, err error) error {
	var le *lifecycle.Error
	if errors.As(err, &le) {
		if status, ok := statusFor[le.Code]; ok {
			return jsonError(c, status, le.Msg)
		}
	}
	logger.FromContext(c.Request().Context()).Error("request failed",
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return jsonError(c, http.StatusInternalServerError, "internal server error")
}

func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"detail": msg})
}

// bindAndValidate decodes the request body into dst and runs struct
// validation. The returned error is an *echo.HTTPError ready for the
// error handler.
func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	if err := c.Validate(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			return echo.NewHTTPError(http.StatusBadRequest, map[string]any{
				"detail": "validation failed",
				"fields": fields,
			})
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// errorHandler renders errors that escape handlers, mostly *echo.HTTPError
// from binding and routing, in the same {"detail": ...} shape.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		_ = writeError(c, err)
		return
	}
	switch msg := he.Message.(type) {
	case string:
		_ = jsonError(c, he.Code, msg)
	default:
		_ = c.JSON(he.Code, msg)
	}
}

// pathID parses the :id path parameter.
func pathID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

// structValidator adapts validator/v10 to echo.Validator.
type structValidator struct {
	v *validator.Validate
}

func (s *structValidator) Validate(i any) error { return s.v.Struct(i) }
