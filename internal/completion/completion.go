// Package completion talks to the text completion service that labels
// content, builds its prompt and parses its reply.
package completion

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/ignite/content-signals/internal/config"
	"github.com/ignite/content-signals/internal/store"
)

// ErrEmptyResponse is returned when the service replies without text.
var ErrEmptyResponse = errors.New("completion service returned no text")

// Completer returns the completion text for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Func adapts a function to Completer.
type Func func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

// New creates the completer selected by cfg.Classification.Provider.
func New(ctx context.Context, cfg *config.Config) (Completer, error) {
	switch cfg.Classification.Provider {
	case "", "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, errors.New("openai provider requires OPENAI_API_KEY")
		}
		return NewOpenAI(cfg.OpenAI, nil), nil
	case "bedrock":
		awsCfg, err := store.LoadAWSConfig(ctx, cfg.Bedrock.Region, cfg.Storage.AWSProfile,
			cfg.Storage.AccessKeyID, cfg.Storage.SecretKey)
		if err != nil {
			return nil, err
		}
		return NewBedrock(bedrockruntime.NewFromConfig(awsCfg), cfg.Bedrock), nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Classification.Provider)
	}
}
