package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tv7/C-Claw/internal/agent"
	"github.com/tv7/C-Claw/internal/config"
	"github.com/tv7/C-Claw/internal/logging"
	"github.com/tv7/C-Claw/internal/relay"
	"github.com/tv7/C-Claw/internal/sweeper"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Relay stdin messages for one owner",
		Long: "Read one message per line from stdin, answer it through memory and the agent, and write one JSON reply per line. " +
			"A decay sweep runs at startup and then on the configured interval.",
		Run: runServe,
	}

	cmd.Flags().StringP("owner", "o", "local", "Owner the messages belong to")
	cmd.Flags().String("agent", "", "Agent backend: anthropic or echo (default from config)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")
	backend, _ := cmd.Flags().GetString("agent")

	cfg, logger, s := setup()
	defer s.Close()
	defer logger.Sync()

	if backend != "" {
		cfg.Agent.Backend = backend
	}
	a, err := newAgent(cfg)
	if err != nil {
		exitErr("init agent", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rl := relay.New(newManager(cfg, s, logger), s, a, logger)
	sw := sweeper.New(s, cfg.SweepDuration(), logger)

	logger.Info("relay started",
		zap.String("owner", owner),
		zap.String("agent", cfg.Agent.Backend),
		zap.String("db", cfg.DBPath),
		zap.Duration("sweep_interval", sw.Interval()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sw.Start(gctx)
		return nil
	})
	g.Go(func() error {
		defer stop()
		return serveLines(gctx, rl, owner, os.Stdin, cmd.OutOrStdout(), logger)
	})
	if err := g.Wait(); err != nil {
		exitErr("serve", err)
	}
	logger.Info("relay stopped")
}

func newAgent(cfg *config.Config) (agent.Agent, error) {
	switch cfg.Agent.Backend {
	case "echo":
		return agent.EchoAgent{}, nil
	case "anthropic":
		if cfg.Agent.APIKey == "" {
			return nil, goerr.New("anthropic backend needs an API key", goerr.V("env", config.EnvAPIKey))
		}
		return agent.NewAnthropicAgent(agent.AnthropicOptions{
			APIKey:    cfg.Agent.APIKey,
			Model:     cfg.Agent.Model,
			MaxTokens: cfg.Agent.MaxTokens,
			System:    cfg.Agent.System,
		}), nil
	default:
		return nil, goerr.New("unknown agent backend", goerr.V("backend", cfg.Agent.Backend))
	}
}

// maxLineBytes caps one inbound message. Longer lines are rejected with an
// error reply and the loop moves on.
const maxLineBytes = 64 * 1024

type errorLine struct {
	Error string `json:"error"`
}

type inputLine struct {
	text    string
	tooLong bool
}

// readLines sends every line of in to lines until EOF or ctx is done. Lines
// over maxLineBytes are drained and flagged instead of buffered.
func readLines(ctx context.Context, in io.Reader, lines chan<- inputLine) error {
	br := bufio.NewReader(in)
	for {
		var buf []byte
		tooLong := false
		for {
			chunk, isPrefix, err := br.ReadLine()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			if !tooLong {
				if len(buf)+len(chunk) > maxLineBytes {
					tooLong = true
					buf = nil
				} else {
					buf = append(buf, chunk...)
				}
			}
			if !isPrefix {
				break
			}
		}

		select {
		case lines <- inputLine{text: string(buf), tooLong: tooLong}:
		case <-ctx.Done():
			return nil
		}
	}
}

// serveLines handles one message per input line until EOF or ctx is done.
// A failed turn is reported on out and does not stop the loop.
func serveLines(ctx context.Context, rl *relay.Relay, owner string, in io.Reader, out io.Writer, logger *zap.Logger) error {
	lines := make(chan inputLine)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		readErr <- readLines(ctx, in, lines)
	}()

	enc := json.NewEncoder(out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return goerr.Wrap(err, "read input")
				}
				return nil
			}
			if line.tooLong {
				logger.Warn("message rejected", zap.String("owner", owner), zap.Int("max_bytes", maxLineBytes))
				if err := enc.Encode(errorLine{Error: fmt.Sprintf("message exceeds %d bytes", maxLineBytes)}); err != nil {
					return goerr.Wrap(err, "write error")
				}
				continue
			}
			if strings.TrimSpace(line.text) == "" {
				continue
			}

			reply, err := rl.Handle(ctx, relay.Message{Owner: owner, Text: line.text})
			if err != nil {
				logger.Error("turn failed", logging.ErrorFields(err)...)
			}
			if reply != nil {
				if err := enc.Encode(reply); err != nil {
					return goerr.Wrap(err, "write reply")
				}
				continue
			}
			if err := enc.Encode(errorLine{Error: err.Error()}); err != nil {
				return goerr.Wrap(err, "write error")
			}
		}
	}
}
