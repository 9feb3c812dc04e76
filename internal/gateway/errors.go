package gateway

import (
	"errors"
	"net/http"

	"github.com/danmuck/wabridge/internal/protocol"
	"github.com/danmuck/wabridge/internal/session"
	"github.com/gin-gonic/gin"
)

// errorBody is the JSON shape of every failed API call.
type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// classify maps registry and protocol errors to a status and message.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrNotConnected):
		return http.StatusBadRequest, "session not connected"
	case errors.Is(err, session.ErrInvalidIdentity), errors.Is(err, protocol.ErrInvalidIdentity):
		return http.StatusBadRequest, "invalid identity"
	case errors.Is(err, protocol.ErrInvalidJID):
		return http.StatusBadRequest, "invalid target"
	case errors.Is(err, protocol.ErrEmptyImage):
		return http.StatusBadRequest, "image is empty"
	case errors.Is(err, protocol.ErrGroupNotFound):
		return http.StatusNotFound, "group not found"
	case errors.Is(err, session.ErrUnknownIdentity):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, session.ErrDeliveryFailed):
		return http.StatusInternalServerError, "failed to send message"
	case errors.Is(err, session.ErrQueryFailed):
		return http.StatusInternalServerError, "failed to query session"
	case errors.Is(err, session.ErrRegistryClosed):
		return http.StatusServiceUnavailable, "shutting down"
	case errors.Is(err, session.ErrConnectFailed):
		return http.StatusInternalServerError, "failed to start session"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func respondError(c *gin.Context, err error) {
	status, msg := classify(err)
	c.JSON(status, errorBody{Error: msg, Detail: err.Error()})
}

func respondBadRequest(c *gin.Context, msg string, err error) {
	body := errorBody{Error: msg}
	if err != nil {
		body.Detail = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}
