// Package relay turns one inbound chat message into one reply: commands are
// answered directly, everything else goes through memory and the agent.
package relay

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"go.uber.org/zap"

	"github.com/tv7/C-Claw/internal/agent"
	"github.com/tv7/C-Claw/internal/logging"
	"github.com/tv7/C-Claw/internal/model"
)

const HelpText = `Commands:
/memory [n]   show up to n remembered items
/forget       delete everything remembered about you
/voice on|off toggle voice replies
/help         show this message`

// Memory is the part of memory.Manager the relay drives.
type Memory interface {
	BuildContext(ctx context.Context, owner, message string) (string, error)
	RecordTurn(ctx context.Context, owner, userText, assistantText string) (*model.Memory, error)
	ListMemories(ctx context.Context, owner string, limit int) ([]model.Memory, error)
	Forget(ctx context.Context, owner string) (int64, error)
}

// Settings persists per-owner toggles.
type Settings interface {
	OwnerSettings(ctx context.Context, owner string) (model.OwnerSettings, error)
	SetVoiceMode(ctx context.Context, owner string, on bool) error
}

// Message is an inbound chat message.
type Message struct {
	Owner string
	Text  string
}

// Reply is what the transport should send back.
type Reply struct {
	Text   string `json:"text"`
	Voice  bool   `json:"voice"`
	TurnID string `json:"turn_id"`
}

// Relay serialises turns per owner.
type Relay struct {
	memory   Memory
	settings Settings
	agent    agent.Agent
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[string]*ownerLock
}

// ownerLock is dropped from Relay.locks once no turn holds or waits on it.
type ownerLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a Relay.
func New(mem Memory, settings Settings, a agent.Agent, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		memory:   mem,
		settings: settings,
		agent:    a,
		logger:   logger,
		locks:    make(map[string]*ownerLock),
	}
}

// lockOwner blocks until owner's turn lock is held and returns its release.
func (r *Relay) lockOwner(owner string) func() {
	r.mu.Lock()
	l, ok := r.locks[owner]
	if !ok {
		l = &ownerLock{}
		r.locks[owner] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, owner)
		}
		r.mu.Unlock()
	}
}

// Handle processes msg. When the reply was produced but the turn could not be
// recorded, both the reply and the error are returned.
func (r *Relay) Handle(ctx context.Context, msg Message) (*Reply, error) {
	if msg.Owner == "" {
		return nil, goerr.New("owner is required")
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil, goerr.New("message is empty", goerr.V("owner", msg.Owner))
	}

	unlock := r.lockOwner(msg.Owner)
	defer unlock()

	turnID := uuid.NewString()
	logger := r.logger.With(zap.String("owner", msg.Owner), zap.String("turn_id", turnID))

	if strings.HasPrefix(text, "/") {
		out, err := r.command(ctx, msg.Owner, text)
		if err != nil {
			return nil, err
		}
		logger.Debug("command handled", zap.String("command", strings.Fields(text)[0]))
		return r.reply(ctx, msg.Owner, out, turnID)
	}

	block, err := r.memory.BuildContext(ctx, msg.Owner, text)
	if err != nil {
		return nil, goerr.Wrap(err, "build memory context", goerr.V("owner", msg.Owner), goerr.V("turn_id", turnID))
	}

	answer, err := r.agent.Reply(ctx, agent.Request{Owner: msg.Owner, Message: text, MemoryContext: block})
	if err != nil {
		return nil, goerr.Wrap(err, "agent reply", goerr.V("owner", msg.Owner), goerr.V("turn_id", turnID))
	}

	reply, err := r.reply(ctx, msg.Owner, answer, turnID)
	if err != nil {
		return nil, err
	}

	mem, err := r.memory.RecordTurn(ctx, msg.Owner, text, answer)
	if err != nil {
		err = goerr.Wrap(err, "record turn", goerr.V("owner", msg.Owner), goerr.V("turn_id", turnID))
		logger.Error("turn not recorded", logging.ErrorFields(err)...)
		return reply, err
	}

	fields := []zap.Field{zap.Bool("with_context", block != "")}
	if mem != nil {
		fields = append(fields, zap.Int64("memory_id", mem.ID), zap.String("sector", string(mem.Sector)))
	}
	logger.Debug("turn handled", fields...)
	return reply, nil
}

func (r *Relay) reply(ctx context.Context, owner, text, turnID string) (*Reply, error) {
	st, err := r.settings.OwnerSettings(ctx, owner)
	if err != nil {
		return nil, goerr.Wrap(err, "load owner settings", goerr.V("owner", owner))
	}
	return &Reply{Text: text, Voice: st.VoiceMode, TurnID: turnID}, nil
}

func (r *Relay) command(ctx context.Context, owner, text string) (string, error) {
	args := strings.Fields(text)
	switch strings.ToLower(args[0]) {
	case "/memory":
		limit := 0
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return "Usage: /memory [n] where n is a positive number.", nil
			}
			limit = n
		}
		memories, err := r.memory.ListMemories(ctx, owner, limit)
		if err != nil {
			return "", err
		}
		return formatList(memories), nil

	case "/forget":
		n, err := r.memory.Forget(ctx, owner)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Forgot %d memories.", n), nil

	case "/voice":
		if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
			return "Usage: /voice on|off", nil
		}
		on := args[1] == "on"
		if err := r.settings.SetVoiceMode(ctx, owner, on); err != nil {
			return "", err
		}
		if on {
			return "Voice replies enabled.", nil
		}
		return "Voice replies disabled.", nil

	case "/help", "/start":
		return HelpText, nil

	default:
		return "Unknown command " + args[0] + ".\n" + HelpText, nil
	}
}

func formatList(memories []model.Memory) string {
	if len(memories) == 0 {
		return "No memories yet."
	}
	var b strings.Builder
	for i, m := range memories {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. [%s %.2f] %s", i+1, m.Sector, m.Salience, m.Content)
	}
	return b.String()
}
