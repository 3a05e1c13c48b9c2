package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Message string `json:"error"`
}

var InternalServerError = ErrorResponse{"Internal server error"}

func HTTPErrorHandler(log *slog.Logger) func(err error, c echo.Context) {
	return func(err error, c echo.Context) {
		if err == nil {
			// already handled
			return
		}
		log.ErrorContext(c.Request().Context(), "failed to process request", "error", err)

		var echoError *echo.HTTPError
		if errors.As(err, &echoError) {
			if respErr := c.JSON(echoError.Code, ErrorResponse{http.StatusText(echoError.Code)}); respErr != nil {
				log.ErrorContext(c.Request().Context(), "failed to respond with error", "error", respErr)
			}
			return
		}

		if respErr := c.JSON(http.StatusInternalServerError, InternalServerError); respErr != nil {
			log.ErrorContext(c.Request().Context(), "failed to respond with error", "error", respErr)
		}
	}
}
