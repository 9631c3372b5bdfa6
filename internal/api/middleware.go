package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nhle/taskbuddy/internal/store"
)

type contextKey int

const (
	ctxKeyRequestID contextKey = iota
	ctxKeyLogger
	ctxKeyUserID
)

// logFor returns the context-scoped logger, falling back to the default logger.
func logFor(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKeyLogger).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// userIDFrom returns the signed-in user of a request.
func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyUserID).(string)
	return id
}

func withValue(c *gin.Context, key contextKey, v any) {
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), key, v))
}

// requestID tags the request with an id and a logger carrying it.
func requestID(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.New().String()
		c.Header("X-Request-ID", id)
		withValue(c, ctxKeyRequestID, id)
		withValue(c, ctxKeyLogger, base.With("rid", id))
		c.Next()
	}
}

// recovery turns panics into a 500 with the usual error envelope.
func recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		logFor(c.Request.Context()).Error("panic recovered", "panic", rec, "path", c.Request.URL.Path)
		writeError(c, http.StatusInternalServerError, "internal_error", "internal server error")
	})
}

// accessLog logs each request with method, path, status, and duration.
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logFor(c.Request.Context()).Info("req",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"dur", time.Since(start).String(),
		)
	}
}

// requireAuth resolves the bearer token to a user and stores the id in
// the request context.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			writeError(c, http.StatusUnauthorized, "unauthorized", "missing authorization header")
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(c, http.StatusUnauthorized, "unauthorized", "invalid authorization format")
			return
		}

		sess, err := s.auth.GetSession(c.Request.Context(), token)
		if err != nil {
			if store.IsNotFound(err) {
				writeError(c, http.StatusUnauthorized, "unauthorized", "invalid or expired session")
				return
			}
			writeStoreError(c, err)
			return
		}

		withValue(c, ctxKeyUserID, sess.UserID)
		withValue(c, ctxKeyLogger, logFor(c.Request.Context()).With("uid", sess.UserID))
		c.Set("token", token)
		c.Next()
	}
}
