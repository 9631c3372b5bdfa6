package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/taskbuddy/internal/model"
)

type profileRow struct {
	model.UserProfile
	PrefsJSON string `db:"preferences"`
}

// GetProfile retrieves a profile by uid.
func (s *SQLiteStore) GetProfile(ctx context.Context, uid string) (*model.UserProfile, error) {
	var row profileRow
	err := s.db.GetContext(ctx, &row, `
		SELECT uid, display_name, email, photo_url, preferences, created_at, last_login
		FROM profiles WHERE uid = ?`, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", uid, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile %s: %w", uid, err)
	}

	p := row.UserProfile
	p.Preferences = model.DefaultPreferences()
	if err := json.Unmarshal([]byte(row.PrefsJSON), &p.Preferences); err != nil {
		return nil, fmt.Errorf("unmarshaling preferences for %s: %w", uid, err)
	}
	return &p, nil
}

// UpsertProfile records a sign-in. A new profile gets default preferences;
// an existing one has its identity fields and last login refreshed while
// its preferences are kept.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, p model.UserProfile) (model.UserProfile, error) {
	if p.UID == "" {
		return model.UserProfile{}, fmt.Errorf("profile uid must not be empty")
	}
	now := time.Now().UTC()

	prefs, err := json.Marshal(model.DefaultPreferences())
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("marshaling preferences: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (uid, display_name, email, photo_url, preferences, created_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			display_name = excluded.display_name,
			email = excluded.email,
			photo_url = excluded.photo_url,
			last_login = excluded.last_login`,
		p.UID, p.DisplayName, p.Email, p.PhotoURL, string(prefs), now, now,
	)
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("upserting profile %s: %w", p.UID, err)
	}

	stored, err := s.GetProfile(ctx, p.UID)
	if err != nil {
		return model.UserProfile{}, err
	}
	return *stored, nil
}

// UpdatePreferences replaces a profile's preferences.
func (s *SQLiteStore) UpdatePreferences(ctx context.Context, uid string, prefs model.Preferences) error {
	if err := prefs.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("marshaling preferences: %w", err)
	}

	result, err := s.db.ExecContext(ctx, "UPDATE profiles SET preferences = ? WHERE uid = ?", string(b), uid)
	if err != nil {
		return fmt.Errorf("updating preferences for %s: %w", uid, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("profile %s: %w", uid, ErrNotFound)
	}
	return nil
}
