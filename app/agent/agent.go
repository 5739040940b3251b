package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docqa/model"
	"docqa/store"
	"docqa/types"

	"github.com/pkoukk/tiktoken-go"
)

type Config struct {
	SystemPrompt    string
	MaxContextChars int
	Timeout         time.Duration
}

// Agent answers questions against a session's document context and
// history, streaming the answer fragment by fragment.
type Agent struct {
	store     store.SessionStorer
	generator model.Generator
	cfg       Config
	logger    *slog.Logger
}

func New(s store.SessionStorer, g model.Generator, cfg Config) *Agent {
	return &Agent{
		store:     s,
		generator: g,
		cfg:       cfg,
		logger:    slog.Default(),
	}
}

// Answer records the question as a user turn, then starts generation in
// the background. The user turn is persisted before the stream begins, so
// history shows the question even when generation later fails. The
// assistant turn is appended only after the stream completes in full.
func (a *Agent) Answer(ctx context.Context, sessionID, question string) (*Stream, error) {
	sess, err := a.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	userTurn := types.Turn{
		Role:      types.RoleUser,
		Content:   question,
		Timestamp: time.Now(),
	}
	if err := a.store.AppendTurn(ctx, sessionID, userTurn); err != nil {
		return nil, err
	}

	prompt := a.buildPrompt(sess, question)
	if count, err := CountTokens(prompt); err == nil {
		a.logger.Info("built prompt",
			"session_id", sessionID,
			"tokens", count,
			"characters", len(prompt),
		)
	}

	genCtx, cancel := context.WithCancel(ctx)
	if a.cfg.Timeout > 0 {
		genCtx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
	}

	st := newStream()
	go a.generate(genCtx, cancel, st, sessionID, prompt)
	return st, nil
}

func (a *Agent) generate(ctx context.Context, cancel context.CancelFunc, st *Stream, sessionID, prompt string) {
	defer cancel()

	req := model.GenerateRequest{
		System: a.cfg.SystemPrompt,
		Prompt: prompt,
	}

	var answer strings.Builder
	err := a.generator.Generate(ctx, req, func(token string) error {
		if err := st.emit(ctx, token); err != nil {
			return err
		}
		answer.WriteString(token)
		return nil
	})

	switch {
	case err == nil:
		turn := types.Turn{
			Role:      types.RoleAssistant,
			Content:   answer.String(),
			Timestamp: time.Now(),
		}
		// The answer is complete even if the request context is about to
		// die, so persist with a detached context. The session is looked up
		// again here: it may have been evicted mid-stream.
		if aerr := a.store.AppendTurn(context.WithoutCancel(ctx), sessionID, turn); aerr != nil {
			a.logger.Error("failed to persist assistant turn",
				"session_id", sessionID, "error", aerr)
			st.finish(OutcomeFailed, aerr)
			return
		}
		st.finish(OutcomeCompleted, nil)

	case errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled):
		a.logger.Info("stream cancelled", "session_id", sessionID)
		st.finish(OutcomeCancelled, ErrCancelled)

	case errors.Is(err, context.DeadlineExceeded):
		a.logger.Warn("inference timed out", "session_id", sessionID)
		st.finish(OutcomeFailed, fmt.Errorf("inference timed out after %v: %w", a.cfg.Timeout, err))

	default:
		a.logger.Error("generation failed", "session_id", sessionID, "error", err)
		st.finish(OutcomeFailed, err)
	}
}

// buildPrompt assembles the effective context: the bound document (leading
// excerpt, see truncate), the prior history, then the question. The session
// snapshot predates the user turn recorded in Answer, so the question is
// not duplicated.
func (a *Agent) buildPrompt(sess *types.Session, question string) string {
	var b strings.Builder

	if sess.HasDocument() {
		doc := sess.Document
		fmt.Fprintf(&b, "Context from uploaded document:\nDocument: %s\nPages: %d\nContent:\n%s\n\n",
			doc.SourceName, doc.PageCount, truncate(doc.ExtractedText, a.cfg.MaxContextChars))
	}

	if len(sess.History) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, t := range sess.History {
			switch t.Role {
			case types.RoleAssistant:
				b.WriteString("Assistant: ")
			default:
				b.WriteString("User: ")
			}
			b.WriteString(t.Content)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "User question: %s", question)
	return b.String()
}

// truncate keeps the first max runes of text.
func truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}

func CountTokens(text string) (int, error) {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}
