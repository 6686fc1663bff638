package store

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/tv7/C-Claw/internal/salience"
)

// DecayAndPrune runs one sweep as a single transaction: a batch decay of
// every memory untouched for the grace window, a batch delete of the rows
// (and index entries) that fell below the floor, and an audit record.
func (s *SQLiteStore) DecayAndPrune(ctx context.Context) (*SweepResult, error) {
	started := s.now().UTC()
	cutoff := formatTime(salience.Cutoff(started))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageError(err, "begin sweep")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE memories SET salience = MAX(salience * ?, ?) WHERE accessed_at < ?`,
		salience.DecayFactor, salience.Min, cutoff)
	if err != nil {
		return nil, storageError(err, "decay memories")
	}
	decayed, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM memories_fts WHERE rowid IN (SELECT id FROM memories WHERE salience < ?)`,
		salience.Floor); err != nil {
		return nil, storageError(err, "unindex pruned memories")
	}
	res, err = tx.ExecContext(ctx, `DELETE FROM memories WHERE salience < ?`, salience.Floor)
	if err != nil {
		return nil, storageError(err, "prune memories")
	}
	pruned, _ := res.RowsAffected()

	result := &SweepResult{
		ID:         s.newID(started),
		StartedAt:  started,
		FinishedAt: s.now().UTC(),
		Decayed:    decayed,
		Pruned:     pruned,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sweeps (id, started_at, finished_at, decayed, pruned) VALUES (?, ?, ?, ?, ?)`,
		result.ID, formatTime(result.StartedAt), formatTime(result.FinishedAt),
		result.Decayed, result.Pruned); err != nil {
		return nil, storageError(err, "record sweep")
	}

	if err := tx.Commit(); err != nil {
		return nil, storageError(err, "commit sweep")
	}

	s.logger.Info("decay sweep complete",
		zap.String("sweep", result.ID),
		zap.Int64("decayed", decayed),
		zap.Int64("pruned", pruned))

	return result, nil
}

// LastSweep returns the most recent sweep, or nil if none has run yet.
func (s *SQLiteStore) LastSweep(ctx context.Context) (*SweepResult, error) {
	var r SweepResult
	var started, finished string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, decayed, pruned FROM sweeps
		 ORDER BY started_at DESC, id DESC LIMIT 1`).Scan(&r.ID, &started, &finished, &r.Decayed, &r.Pruned)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError(err, "last sweep")
	}
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	return &r, nil
}
