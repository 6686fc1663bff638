package store

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/tv7/C-Claw/internal/model"
	"github.com/tv7/C-Claw/internal/salience"
)

// MatchExpression builds an FTS5 query where every keyword is a quoted
// prefix term and terms are OR-ed together. It returns "" when no usable
// keyword remains.
func MatchExpression(keywords []string) string {
	terms := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(k, `"`, `""`)+`"*`)
	}
	return strings.Join(terms, " OR ")
}

func (s *SQLiteStore) SearchByKeywords(ctx context.Context, owner string, keywords []string, limit int) ([]model.Memory, error) {
	match := MatchExpression(keywords)
	if match == "" {
		return []model.Memory{}, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	memories, err := s.queryMemories(ctx,
		`SELECT `+memoryColumns+`
		 FROM memories_fts
		 JOIN memories m ON m.id = memories_fts.rowid
		 WHERE memories_fts MATCH ? AND m.owner = ? AND m.salience >= ?
		 ORDER BY bm25(memories_fts), m.accessed_at DESC
		 LIMIT ?`, match, owner, salience.Floor, limit)
	if err != nil {
		return nil, storageError(err, "search memories",
			goerr.V("owner", owner), goerr.V("match", match))
	}
	return memories, nil
}
