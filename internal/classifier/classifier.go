// Package classifier decides whether a conversational turn is worth
// remembering and which sector it belongs to.
//
// It is a keyword heuristic, not a learned model: misclassified turns are
// expected, and salience decay fades semantic noise that is never recalled.
package classifier

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tv7/C-Claw/internal/model"
)

const (
	DefaultMinLength     = 20
	DefaultMinWords      = 3
	DefaultCommandPrefix = "/"
	DefaultExcerptLength = 200
	UserLabel            = "User: "
	AssistantLabel       = "Assistant: "
)

// MaxExcerptLength is the longest excerpt for which a composed turn (both
// labels, both excerpts and the separating newline) still fits in
// model.MaxContentLength.
const MaxExcerptLength = (model.MaxContentLength - len(UserLabel) - len(AssistantLabel) - 1) / 2

// DefaultTriggers are first-person declarative phrases that mark a durable fact.
var DefaultTriggers = []string{
	"my", "i am", "i'm", "i prefer", "remember", "always", "never", "i like", "i use", "i work",
}

// Options configures the heuristic.
type Options struct {
	// Messages at or below MinLength characters are not stored, unless they
	// match a trigger and still carry at least MinWords words.
	MinLength     int
	MinWords      int
	CommandPrefix string
	ExcerptLength int
	Triggers      []string
}

// DefaultOptions returns the default classifier options.
func DefaultOptions() Options {
	return Options{
		MinLength:     DefaultMinLength,
		MinWords:      DefaultMinWords,
		CommandPrefix: DefaultCommandPrefix,
		ExcerptLength: DefaultExcerptLength,
		Triggers:      DefaultTriggers,
	}
}

// Decision is the outcome for one turn that should be stored.
type Decision struct {
	Sector  model.Sector
	Content string
}

// Classifier applies Options to conversational turns.
type Classifier struct {
	opts    Options
	trigger *regexp.Regexp
}

// New builds a Classifier. Zero-valued fields fall back to defaults.
func New(opts Options) *Classifier {
	def := DefaultOptions()
	if opts.MinLength <= 0 {
		opts.MinLength = def.MinLength
	}
	if opts.MinWords <= 0 {
		opts.MinWords = def.MinWords
	}
	if opts.CommandPrefix == "" {
		opts.CommandPrefix = def.CommandPrefix
	}
	if opts.ExcerptLength <= 0 {
		opts.ExcerptLength = def.ExcerptLength
	}
	if opts.ExcerptLength > MaxExcerptLength {
		opts.ExcerptLength = MaxExcerptLength
	}
	if len(opts.Triggers) == 0 {
		opts.Triggers = def.Triggers
	}
	return &Classifier{opts: opts, trigger: compileTriggers(opts.Triggers)}
}

// compileTriggers builds a case-insensitive whole-word alternation. Spaces
// inside a phrase match any run of whitespace.
func compileTriggers(triggers []string) *regexp.Regexp {
	alts := make([]string, 0, len(triggers))
	for _, t := range triggers {
		words := strings.Fields(strings.ToLower(t))
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		alts = append(alts, strings.Join(words, `\s+`))
	}
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:` + strings.Join(alts, "|") + `)(?:$|[^\p{L}\p{N}])`)
}

// ShouldStore reports whether the user message carries content worth keeping.
func (c *Classifier) ShouldStore(userText string) bool {
	text := strings.TrimSpace(userText)
	if text == "" || strings.HasPrefix(text, c.opts.CommandPrefix) {
		return false
	}
	if utf8.RuneCountInString(text) > c.opts.MinLength {
		return true
	}
	// Short explicit facts ("remember I use Go") are still worth keeping.
	return len(strings.Fields(text)) >= c.opts.MinWords && c.trigger.MatchString(text)
}

// Classify picks the sector for a user message.
func (c *Classifier) Classify(userText string) model.Sector {
	if c.trigger.MatchString(userText) {
		return model.SectorSemantic
	}
	return model.SectorEpisodic
}

// Compose renders both sides of the turn, each hard-cut to ExcerptLength.
func (c *Classifier) Compose(userText, assistantText string) string {
	return UserLabel + truncate(strings.TrimSpace(userText), c.opts.ExcerptLength) + "\n" +
		AssistantLabel + truncate(strings.TrimSpace(assistantText), c.opts.ExcerptLength)
}

// Evaluate returns the decision for a turn, or false when it should be skipped.
func (c *Classifier) Evaluate(userText, assistantText string) (Decision, bool) {
	if !c.ShouldStore(userText) {
		return Decision{}, false
	}
	return Decision{
		Sector:  c.Classify(userText),
		Content: c.Compose(userText, assistantText),
	}, true
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
