package ai

import "context"

type Message struct {
	Role    string // system | user | assistant
	Content string
}

// Provider generates the next assistant utterance for a transcript.
// Implementations are advisory renderers only: callers must never derive
// session state from the returned text.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
