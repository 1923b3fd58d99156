package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	genai "google.golang.org/genai"
)

// ErrEmptyResponse means the model returned no candidates.
var ErrEmptyResponse = errors.New("agent: empty response from model")

const (
	geminiAttempts = 3
	geminiBackoff  = 300 * time.Millisecond
)

// Gemini is the google genai implementation of LLMClient. The API key is
// read by the genai client from the environment.
type Gemini struct {
	cli   *genai.Client
	model string
}

func NewGemini(ctx context.Context, model string) (*Gemini, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Gemini{cli: cli, model: model}, nil
}

func (g *Gemini) Name() string { return "gemini:" + g.model }
func (g *Gemini) Close() error { return nil }

// GenerateJSON sends the system prompt plus the marshaled input and asks
// for application/json. Transient failures retry with doubling backoff.
func (g *Gemini) GenerateJSON(ctx context.Context, system string, input any) (json.RawMessage, error) {
	in, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling input: %w", err)
	}
	full := system + "\n\n[INPUT JSON]\n" + string(in)

	var lastErr error
	for attempt := 0; attempt < geminiAttempts; attempt++ {
		if attempt > 0 {
			backoff := geminiBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := g.cli.Models.GenerateContent(ctx, g.model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
			&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
		)
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			lastErr = ErrEmptyResponse
			continue
		}
		return json.RawMessage(resp.Candidates[0].Content.Parts[0].Text), nil
	}
	return nil, lastErr
}
