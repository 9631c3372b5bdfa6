package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nhle/taskbuddy/internal/board"
	"github.com/nhle/taskbuddy/internal/model"
	"github.com/nhle/taskbuddy/internal/store"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError aborts the request with the JSON error envelope.
func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// writeStoreError maps a service error onto a status code. Unexpected
// errors are logged and hidden from the client.
func writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(c, http.StatusNotFound, "not_found", err.Error())
	case store.IsPermissionError(err):
		writeError(c, http.StatusForbidden, "forbidden", "task belongs to another user")
	case store.IsConflict(err):
		writeError(c, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, model.ErrInvalidTask),
		errors.Is(err, model.ErrInvalidPreferences),
		errors.Is(err, board.ErrUnknownLane):
		writeError(c, http.StatusBadRequest, "bad_request", err.Error())
	default:
		logFor(c.Request.Context()).Error("request failed", "err", err)
		writeError(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
