// Package memory is the entry point the relay uses to recall context
// before an agent call and to remember the turn afterwards.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tv7/C-Claw/internal/classifier"
	"github.com/tv7/C-Claw/internal/logging"
	"github.com/tv7/C-Claw/internal/model"
	"github.com/tv7/C-Claw/internal/store"
)

// ErrSearchDegraded wraps a keyword search failure. Retrieval recovers from
// it by falling back to recent memories.
var ErrSearchDegraded = errors.New("keyword search degraded")

const (
	DefaultMaxKeywords      = 5
	DefaultMinKeywordLength = 3
	DefaultSearchLimit      = 3
	DefaultRecentLimit      = 5
	DefaultListLimit        = 20
)

// Store is the subset of the persistent store the manager needs.
type Store interface {
	Insert(ctx context.Context, p store.InsertParams) (*model.Memory, error)
	SearchByKeywords(ctx context.Context, owner string, keywords []string, limit int) ([]model.Memory, error)
	Recent(ctx context.Context, owner string, limit int) ([]model.Memory, error)
	Reinforce(ctx context.Context, id int64) (*model.Memory, error)
	ForOwner(ctx context.Context, owner string, limit int) ([]model.Memory, error)
	ClearOwner(ctx context.Context, owner string) (int64, error)
}

var _ Store = (*store.SQLiteStore)(nil)

// Options tunes retrieval.
type Options struct {
	MaxKeywords      int
	MinKeywordLength int
	SearchLimit      int
	RecentLimit      int
}

// DefaultOptions returns the default retrieval options.
func DefaultOptions() Options {
	return Options{
		MaxKeywords:      DefaultMaxKeywords,
		MinKeywordLength: DefaultMinKeywordLength,
		SearchLimit:      DefaultSearchLimit,
		RecentLimit:      DefaultRecentLimit,
	}
}

// Manager combines the classifier and the store.
type Manager struct {
	store      Store
	classifier *classifier.Classifier
	opts       Options
	logger     *zap.Logger
}

// NewManager creates a Manager. Zero-valued options fall back to defaults.
func NewManager(s Store, c *classifier.Classifier, opts Options, logger *zap.Logger) *Manager {
	def := DefaultOptions()
	if opts.MaxKeywords <= 0 {
		opts.MaxKeywords = def.MaxKeywords
	}
	if opts.MinKeywordLength <= 0 {
		opts.MinKeywordLength = def.MinKeywordLength
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = def.SearchLimit
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = def.RecentLimit
	}
	if c == nil {
		c = classifier.New(classifier.DefaultOptions())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: s, classifier: c, opts: opts, logger: logger}
}

// BuildContext returns the memory block to prepend to an agent request, or
// "" when the owner has nothing relevant.
func (m *Manager) BuildContext(ctx context.Context, owner, message string) (string, error) {
	memories, err := m.Retrieve(ctx, owner, message)
	if err != nil {
		return "", err
	}
	return FormatContext(memories), nil
}

// Retrieve selects keyword hits first and recent memories second, drops
// duplicates and reinforces every memory it returns exactly once. The
// returned memories carry their post-reinforcement salience and accessed_at.
func (m *Manager) Retrieve(ctx context.Context, owner, message string) ([]model.Memory, error) {
	keywords := ExtractKeywords(message, m.opts.MaxKeywords, m.opts.MinKeywordLength)

	var found, recent []model.Memory
	g, gctx := errgroup.WithContext(ctx)
	if len(keywords) > 0 {
		g.Go(func() error {
			res, err := m.store.SearchByKeywords(gctx, owner, keywords, m.opts.SearchLimit)
			if err != nil {
				degraded := goerr.Wrap(fmt.Errorf("%w: %w", ErrSearchDegraded, err), "keyword search failed",
					goerr.V("owner", owner), goerr.V("keywords", keywords))
				m.logger.Warn("falling back to recent memories", logging.ErrorFields(degraded)...)
				return nil
			}
			found = res
			return nil
		})
	}
	g.Go(func() error {
		res, err := m.store.Recent(gctx, owner, m.opts.RecentLimit)
		if err != nil {
			return err
		}
		recent = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := merge(found, recent)
	included := merged[:0]
	for _, mem := range merged {
		updated, err := m.store.Reinforce(ctx, mem.ID)
		if errors.Is(err, store.ErrNotFound) {
			// pruned by a sweep since it was read
			continue
		}
		if err != nil {
			return nil, err
		}
		included = append(included, *updated)
	}
	merged = included

	m.logger.Debug("retrieved memories",
		zap.String("owner", owner),
		zap.Strings("keywords", keywords),
		zap.Int("keyword_hits", len(found)),
		zap.Int("recent", len(recent)),
		zap.Int("included", len(merged)))

	return merged, nil
}

func merge(first, second []model.Memory) []model.Memory {
	seen := make(map[int64]bool, len(first)+len(second))
	merged := make([]model.Memory, 0, len(first)+len(second))
	for _, set := range [][]model.Memory{first, second} {
		for _, mem := range set {
			if seen[mem.ID] {
				continue
			}
			seen[mem.ID] = true
			merged = append(merged, mem)
		}
	}
	return merged
}

// FormatContext renders one "- <content> (<sector>)" line per memory.
func FormatContext(memories []model.Memory) string {
	if len(memories) == 0 {
		return ""
	}
	var b strings.Builder
	for i, mem := range memories {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s (%s)", mem.Content, mem.Sector)
	}
	return b.String()
}

// RecordTurn stores the turn if the classifier finds it worth keeping. It
// returns nil without error when the turn is skipped.
func (m *Manager) RecordTurn(ctx context.Context, owner, userText, assistantText string) (*model.Memory, error) {
	decision, ok := m.classifier.Evaluate(userText, assistantText)
	if !ok {
		m.logger.Debug("turn not stored", zap.String("owner", owner))
		return nil, nil
	}

	mem, err := m.store.Insert(ctx, store.InsertParams{
		Owner:   owner,
		Content: decision.Content,
		Sector:  decision.Sector,
	})
	if err != nil {
		return nil, err
	}

	m.logger.Debug("turn stored",
		zap.String("owner", owner),
		zap.Int64("id", mem.ID),
		zap.String("sector", string(mem.Sector)))
	return mem, nil
}

// ListMemories returns the owner's memories by salience, then recency.
func (m *Manager) ListMemories(ctx context.Context, owner string, limit int) ([]model.Memory, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return m.store.ForOwner(ctx, owner, limit)
}

// Forget deletes every memory of owner.
func (m *Manager) Forget(ctx context.Context, owner string) (int64, error) {
	n, err := m.store.ClearOwner(ctx, owner)
	if err != nil {
		return 0, err
	}
	m.logger.Info("memories cleared", zap.String("owner", owner), zap.Int64("deleted", n))
	return n, nil
}
