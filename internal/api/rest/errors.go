package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/KevinKickass/OpenVNA/internal/devices"
	"github.com/KevinKickass/OpenVNA/internal/storage"
	"github.com/KevinKickass/OpenVNA/internal/types"
	"github.com/gin-gonic/gin"
)

// errorStatus maps the error classes onto HTTP.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, devices.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, devices.ErrExists):
		return http.StatusConflict, "ALREADY_OPEN"
	// a protocol error may wrap the validation failure of its reply
	case errors.Is(err, types.ErrProtocol):
		return http.StatusBadGateway, "PROTOCOL_ERROR"
	case errors.Is(err, types.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, types.ErrConfiguration):
		return http.StatusUnprocessableEntity, "UNSUPPORTED"
	case errors.Is(err, types.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func writeError(c *gin.Context, message string, err error) {
	status, code := errorStatus(err)
	c.Error(err)
	c.JSON(status, types.NewErrorResponse(code, message, err.Error()))
}

func badRequest(c *gin.Context, message string, err error) {
	c.JSON(http.StatusBadRequest, types.NewErrorResponse("BAD_REQUEST", message, err.Error()))
}
