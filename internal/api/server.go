// Package api serves the task dashboard over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"

	"github.com/nhle/taskbuddy/internal/board"
	"github.com/nhle/taskbuddy/internal/model"
	"github.com/nhle/taskbuddy/internal/service"
	"github.com/nhle/taskbuddy/internal/store"
)

// Tasks is the part of service.TaskService the handlers use.
type Tasks interface {
	View(ctx context.Context, userID string, f board.FilterValues, sc board.SortConfig) (board.View, error)
	Get(ctx context.Context, userID, id string) (*model.Task, error)
	Create(ctx context.Context, userID string, d model.TaskDraft, files []model.FileUpload) (model.Task, error)
	Update(ctx context.Context, userID, id string, u model.TaskUpdate, files []model.FileUpload) (model.Task, error)
	Delete(ctx context.Context, userID, id string) error
	As(userID string) service.Actor
}

// Auth is the profile and session storage the handlers use.
type Auth interface {
	store.ProfileStore
	store.SessionStore
}

// Files exposes stored attachment content.
type Files interface {
	FS() afero.Fs
}

// Server is the TaskBuddy HTTP API.
type Server struct {
	tasks  Tasks
	auth   Auth
	files  Files
	logger *slog.Logger
	router *gin.Engine

	signInSecret string
}

// RequireSignInSecret makes POST /v1/auth/session demand the shared
// secret in the X-Sign-In-Secret header. An empty secret disables the check.
func (s *Server) RequireSignInSecret(secret string) {
	s.signInSecret = secret
}

// NewServer wires the routes. files may be nil to disable attachment serving.
func NewServer(tasks Tasks, auth Auth, files Files, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	router := gin.New()
	router.Use(requestID(logger), recovery(), accessLog())

	s := &Server{
		tasks:  tasks,
		auth:   auth,
		files:  files,
		logger: logger,
		router: router,
	}

	router.GET("/healthz", s.handleHealth)
	if files != nil {
		router.GET("/attachments/*key", s.handleAttachment)
	}

	v1 := router.Group("/v1")
	{
		v1.POST("/auth/session", s.handleSignIn)

		authed := v1.Group("", s.requireAuth())
		authed.DELETE("/auth/session", s.handleSignOut)
		authed.GET("/me", s.handleMe)
		authed.PATCH("/me/preferences", s.handleUpdatePreferences)

		authed.GET("/tasks", s.handleListTasks)
		authed.POST("/tasks", s.handleCreateTask)
		authed.POST("/tasks/batch", s.handleBatch)
		authed.GET("/tasks/:id", s.handleGetTask)
		authed.PATCH("/tasks/:id", s.handleUpdateTask)
		authed.DELETE("/tasks/:id", s.handleDeleteTask)
		authed.POST("/tasks/:id/move", s.handleMoveTask)
	}

	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "timeout", shutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
