package store

import (
	"context"

	"github.com/m-mizutani/goerr/v2"

	"github.com/tv7/C-Claw/internal/model"
	"github.com/tv7/C-Claw/internal/salience"
)

// ExportAll returns all live memories, optionally filtered by owner.
func (s *SQLiteStore) ExportAll(ctx context.Context, owner string) ([]model.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories m WHERE m.salience >= ?`
	args := []interface{}{salience.Floor}
	if owner != "" {
		query += ` AND m.owner = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY m.id`

	memories, err := s.queryMemories(ctx, query, args...)
	if err != nil {
		return nil, storageError(err, "export memories", goerr.V("owner", owner))
	}
	return memories, nil
}

// Import stores memories from an export in one transaction. Salience and
// timestamps are carried over; ids are reassigned.
func (s *SQLiteStore) Import(ctx context.Context, memories []model.Memory) (int, error) {
	for _, m := range memories {
		if err := validateInsert(InsertParams{Owner: m.Owner, Content: m.Content, Sector: m.Sector}); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageError(err, "begin import")
	}
	defer tx.Rollback()

	now := s.now().UTC()
	imported := 0
	for _, m := range memories {
		if salience.Pruned(m.Salience) {
			continue
		}
		m.Salience = salience.Clamp(m.Salience)
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		if m.AccessedAt.IsZero() {
			m.AccessedAt = m.CreatedAt
		}
		if _, err := insertTx(ctx, tx, &m); err != nil {
			return 0, storageError(err, "import memory", goerr.V("owner", m.Owner))
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, storageError(err, "commit import")
	}
	return imported, nil
}
