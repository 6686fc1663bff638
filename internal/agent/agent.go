// Package agent is the reasoning backend the relay forwards messages to.
package agent

import (
	"context"
	"strings"
)

// MemoryContextHeader introduces the recalled memories in a prompt.
const MemoryContextHeader = "[Memory Context]"

// Request is one user message plus the memories recalled for it.
type Request struct {
	Owner         string
	Message       string
	MemoryContext string
}

// Agent produces a reply for a request.
type Agent interface {
	Reply(ctx context.Context, req Request) (string, error)
}

// Prompt renders the text sent to the agent. The memory block, when present,
// comes first under MemoryContextHeader.
func Prompt(req Request) string {
	if req.MemoryContext == "" {
		return req.Message
	}
	var b strings.Builder
	b.WriteString(MemoryContextHeader)
	b.WriteByte('\n')
	b.WriteString(req.MemoryContext)
	b.WriteString("\n\n")
	b.WriteString(req.Message)
	return b.String()
}

// EchoAgent answers without calling out, for offline use.
type EchoAgent struct{}

func (EchoAgent) Reply(_ context.Context, req Request) (string, error) {
	return "You said: " + strings.TrimSpace(req.Message), nil
}
