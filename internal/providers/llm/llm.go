package llm

import "context"

type Provider interface {
	// StreamAnswer returns a stream of text chunks (incremental).
	StreamAnswer(ctx context.Context, prompt string) (chunks <-chan string, errs <-chan error)
	// Complete is the one-shot, non-streaming variant (video summaries).
	Complete(ctx context.Context, prompt string) (string, error)
	Close() error
}
