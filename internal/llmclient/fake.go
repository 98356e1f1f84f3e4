package llmclient

import "context"

// FuncClient adapts a plain function to the Client interface, for tests
// that need to script a sequence of replies or force a specific error.
type FuncClient func(ctx context.Context, prompt string) (string, error)

func (f FuncClient) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
