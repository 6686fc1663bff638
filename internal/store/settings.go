package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/m-mizutani/goerr/v2"

	"github.com/tv7/C-Claw/internal/model"
)

// OwnerSettings returns the persisted toggles for owner, or defaults when
// nothing has been stored yet.
func (s *SQLiteStore) OwnerSettings(ctx context.Context, owner string) (model.OwnerSettings, error) {
	st := model.OwnerSettings{Owner: owner}
	var voice int
	var updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT voice_mode, updated_at FROM owner_settings WHERE owner = ?`, owner).Scan(&voice, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return st, storageError(err, "get owner settings", goerr.V("owner", owner))
	}
	st.VoiceMode = voice != 0
	st.UpdatedAt = parseTime(updated)
	return st, nil
}

// SetVoiceMode persists the voice-reply toggle for owner.
func (s *SQLiteStore) SetVoiceMode(ctx context.Context, owner string, on bool) error {
	if owner == "" {
		return validationError("owner is required")
	}
	voice := 0
	if on {
		voice = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO owner_settings (owner, voice_mode, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(owner) DO UPDATE SET voice_mode = excluded.voice_mode, updated_at = excluded.updated_at`,
		owner, voice, formatTime(s.now()))
	if err != nil {
		return storageError(err, "set voice mode", goerr.V("owner", owner))
	}
	return nil
}
