package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrUpstream marks failures of the inference backend itself, as opposed
// to cancellation or local errors.
var ErrUpstream = errors.New("upstream inference error")

// Generator is the inference capability the orchestrator consumes: one
// prompt in, a lazy sequence of text fragments out via the callback. The
// sequence is finite and not restartable. Returning an error from onToken
// stops generation.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest, onToken func(token string) error) error
}

type GenerateRequest struct {
	System string
	Prompt string
}

// OllamaGenerator streams completions from the Ollama /api/generate
// endpoint (NDJSON, one fragment per line).
type OllamaGenerator struct {
	apiURL string
	model  string
	client *http.Client
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func NewOllamaGenerator(apiURL, model string) *OllamaGenerator {
	return &OllamaGenerator{
		apiURL: apiURL,
		model:  model,
		client: &http.Client{},
	}
}

func (g *OllamaGenerator) Generate(ctx context.Context, req GenerateRequest, onToken func(string) error) error {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  g.model,
		System: req.System,
		Prompt: req.Prompt,
		Stream: true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.apiURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		// The transport wraps context errors; surface them untouched so the
		// caller can tell cancellation from upstream failure.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d, body: %s", ErrUpstream, resp.StatusCode, string(respBody))
	}

	dec := json.NewDecoder(resp.Body)
	for {
		var chunk ollamaGenerateResponse
		if err := dec.Decode(&chunk); err != nil {
			if err == io.EOF {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: decoding stream: %v", ErrUpstream, err)
		}

		if chunk.Error != "" {
			return fmt.Errorf("%w: %s", ErrUpstream, chunk.Error)
		}
		if chunk.Response != "" {
			if err := onToken(chunk.Response); err != nil {
				return err
			}
		}
		if chunk.Done {
			return nil
		}
	}
}
