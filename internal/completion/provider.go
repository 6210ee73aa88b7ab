package completion

import (
	"context"
	"errors"
	"fmt"
)

// Options selects and configures a completion adapter.
type Options struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

// New builds the adapter named by opts.Provider.
func New(ctx context.Context, opts Options) (Completer, error) {
	switch opts.Provider {
	case "", "gemini":
		return NewGeminiClient(ctx, opts.APIKey, opts.Model)
	case "openai":
		if opts.APIKey == "" && opts.BaseURL == "" {
			return nil, errors.New("openai provider requires an api key or a base url")
		}
		return NewOpenAIClient(opts.BaseURL, opts.APIKey, opts.Model), nil
	case "mock":
		return NewMockCompleter(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, opts.Provider)
	}
}
