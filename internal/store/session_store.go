package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/taskbuddy/internal/model"
)

// CreateSession issues a new opaque token for userID.
func (s *SQLiteStore) CreateSession(ctx context.Context, userID string) (model.Session, error) {
	sess := model.Session{
		Token:     uuid.New().String(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.NamedExecContext(ctx,
		"INSERT INTO sessions (token, user_id, created_at) VALUES (:token, :user_id, :created_at)",
		sess,
	)
	if err != nil {
		return model.Session{}, fmt.Errorf("creating session for %s: %w", userID, err)
	}
	return sess, nil
}

// GetSession resolves a token.
func (s *SQLiteStore) GetSession(ctx context.Context, token string) (*model.Session, error) {
	var sess model.Session
	err := s.db.GetContext(ctx, &sess,
		"SELECT token, user_id, created_at FROM sessions WHERE token = ?", token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return &sess, nil
}

// DeleteSession signs a token out. Unknown tokens are not an error.
func (s *SQLiteStore) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
