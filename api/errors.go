package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// storeError translates board store failures into HTTP errors.
func storeError(err error) error {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound):
		return echo.NewHTTPError(http.StatusNotFound, detailTaskNotFound).SetInternal(err)
	case errors.Is(err, domain.ErrColumnNotFound):
		return echo.NewHTTPError(http.StatusBadRequest, detailColumnNotFound).SetInternal(err)
	default:
		return err
	}
}

// errorHandler renders every error as {"detail": "..."}.
func errorHandler(logger *log.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		detail := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if msg, ok := he.Message.(string); ok && msg != "" {
				detail = msg
			} else {
				detail = http.StatusText(code)
			}
		}
		if code >= http.StatusInternalServerError {
			logger.WithError(err).WithField("path", c.Request().URL.Path).Error("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, errorResponse{Detail: detail})
		}
		if werr != nil {
			logger.WithError(werr).Error("write error response")
		}
	}
}
