package store

import (
	"context"
	"os"

	"github.com/tv7/C-Claw/internal/salience"
)

// Stats holds database statistics.
type Stats struct {
	DBPath        string       `json:"db_path"`
	DBSizeBytes   int64        `json:"db_size_bytes"`
	TotalMemories int          `json:"total_memories"`
	Semantic      int          `json:"semantic"`
	Episodic      int          `json:"episodic"`
	AvgSalience   float64      `json:"avg_salience"`
	Owners        []OwnerStats `json:"owners"`
	LastSweep     *SweepResult `json:"last_sweep,omitempty"`
	// SweepsToForget is how many untouched sweeps a fresh memory survives.
	SweepsToForget int `json:"sweeps_to_forget"`
}

// OwnerStats holds per-owner counts.
type OwnerStats struct {
	Owner       string  `json:"owner"`
	Count       int     `json:"count"`
	AvgSalience float64 `json:"avg_salience"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath, SweepsToForget: salience.SweepsUntilPruned(salience.Initial)}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN sector = 'semantic' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN sector = 'episodic' THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(salience), 0)
		FROM memories WHERE salience >= ?`, salience.Floor).
		Scan(&st.TotalMemories, &st.Semantic, &st.Episodic, &st.AvgSalience)
	if err != nil {
		return st, storageError(err, "count memories")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, COUNT(*) AS cnt, AVG(salience)
		FROM memories WHERE salience >= ?
		GROUP BY owner ORDER BY cnt DESC, owner`, salience.Floor)
	if err != nil {
		return st, storageError(err, "owner stats")
	}
	defer rows.Close()

	for rows.Next() {
		var o OwnerStats
		if err := rows.Scan(&o.Owner, &o.Count, &o.AvgSalience); err != nil {
			return st, storageError(err, "scan owner stats")
		}
		st.Owners = append(st.Owners, o)
	}
	if err := rows.Err(); err != nil {
		return st, storageError(err, "owner stats")
	}

	st.LastSweep, err = s.LastSweep(ctx)
	return st, err
}
