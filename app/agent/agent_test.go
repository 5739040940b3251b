package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"docqa/model"
	"docqa/store"
	"docqa/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator replays a fixed token sequence, then returns err. It records
// the last request it saw so tests can inspect the assembled prompt.
type fakeGenerator struct {
	tokens  []string
	err     error
	lastReq model.GenerateRequest
}

func (f *fakeGenerator) Generate(ctx context.Context, req model.GenerateRequest, onToken func(string) error) error {
	f.lastReq = req
	for _, tok := range f.tokens {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onToken(tok); err != nil {
			return err
		}
	}
	return f.err
}

// hangingGenerator never produces output and only returns once the context
// expires.
type hangingGenerator struct{}

func (hangingGenerator) Generate(ctx context.Context, _ model.GenerateRequest, _ func(string) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func newTestAgent(t *testing.T, gen model.Generator) (*Agent, *store.MemoryStore, string) {
	t.Helper()
	st := store.NewMemoryStore()
	sess, err := st.Create(context.Background())
	require.NoError(t, err)

	a := New(st, gen, Config{
		SystemPrompt:    "You are a helpful assistant.",
		MaxContextChars: 20000,
		Timeout:         5 * time.Second,
	})
	return a, st, sess.ID
}

func drain(st *Stream) []string {
	var got []string
	for tok := range st.Tokens() {
		got = append(got, tok)
	}
	return got
}

func TestAnswerUnknownSession(t *testing.T) {
	a, _, _ := newTestAgent(t, &fakeGenerator{})

	_, err := a.Answer(context.Background(), "no-such-session", "hello?")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestAnswerStreamsAndPersistsBothTurns(t *testing.T) {
	gen := &fakeGenerator{tokens: []string{"Revenue ", "grew ", "10%."}}
	a, st, id := newTestAgent(t, gen)

	stream, err := a.Answer(context.Background(), id, "How did revenue develop?")
	require.NoError(t, err)

	got := drain(stream)
	assert.Equal(t, []string{"Revenue ", "grew ", "10%."}, got)

	outcome, serr := stream.Wait()
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.NoError(t, serr)

	sess, err := st.Get(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, sess.History, 2)
	assert.Equal(t, types.RoleUser, sess.History[0].Role)
	assert.Equal(t, "How did revenue develop?", sess.History[0].Content)
	assert.Equal(t, types.RoleAssistant, sess.History[1].Role)
	assert.Equal(t, "Revenue grew 10%.", sess.History[1].Content)
}

func TestAnswerWithoutDocument(t *testing.T) {
	gen := &fakeGenerator{tokens: []string{"I have no document context."}}
	a, _, id := newTestAgent(t, gen)

	stream, err := a.Answer(context.Background(), id, "What does the report say?")
	require.NoError(t, err)
	drain(stream)

	outcome, serr := stream.Wait()
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.NoError(t, serr)
	assert.NotContains(t, gen.lastReq.Prompt, "Context from uploaded document")
}

func TestAnswerPromptIncludesDocumentAndHistory(t *testing.T) {
	gen := &fakeGenerator{tokens: []string{"ok"}}
	a, st, id := newTestAgent(t, gen)
	ctx := context.Background()

	require.NoError(t, st.AttachDocument(ctx, id, types.Document{
		SourceName:    "report.pdf",
		ExtractedText: "Revenue grew ten percent in the third quarter.",
		PageCount:     3,
	}))
	require.NoError(t, st.AppendTurn(ctx, id, types.Turn{Role: types.RoleUser, Content: "Earlier question"}))
	require.NoError(t, st.AppendTurn(ctx, id, types.Turn{Role: types.RoleAssistant, Content: "Earlier answer"}))

	stream, err := a.Answer(ctx, id, "And the fourth quarter?")
	require.NoError(t, err)
	drain(stream)
	stream.Wait()

	prompt := gen.lastReq.Prompt
	assert.Contains(t, prompt, "Document: report.pdf")
	assert.Contains(t, prompt, "Revenue grew ten percent")
	assert.Contains(t, prompt, "User: Earlier question")
	assert.Contains(t, prompt, "Assistant: Earlier answer")
	assert.Contains(t, prompt, "User question: And the fourth quarter?")
	assert.Equal(t, "You are a helpful assistant.", gen.lastReq.System)
}

func TestAnswerTruncatesDocumentContext(t *testing.T) {
	gen := &fakeGenerator{tokens: []string{"ok"}}
	st := store.NewMemoryStore()
	ctx := context.Background()
	sess, err := st.Create(ctx)
	require.NoError(t, err)

	long := ""
	for i := 0; i < 100; i++ {
		long += "x"
	}
	require.NoError(t, st.AttachDocument(ctx, sess.ID, types.Document{
		SourceName:    "long.pdf",
		ExtractedText: long,
		PageCount:     1,
	}))

	a := New(st, gen, Config{MaxContextChars: 10, Timeout: time.Second})
	stream, err := a.Answer(ctx, sess.ID, "q")
	require.NoError(t, err)
	drain(stream)
	stream.Wait()

	assert.Contains(t, gen.lastReq.Prompt, "xxxxxxxxxx")
	assert.NotContains(t, gen.lastReq.Prompt, "xxxxxxxxxxx")
}

func TestAnswerCancelMidStream(t *testing.T) {
	tokens := make([]string, 100)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok%d ", i)
	}
	gen := &fakeGenerator{tokens: tokens}
	a, st, id := newTestAgent(t, gen)

	stream, err := a.Answer(context.Background(), id, "long answer please")
	require.NoError(t, err)

	<-stream.Tokens()
	stream.Cancel()
	drain(stream)

	outcome, serr := stream.Wait()
	assert.Equal(t, OutcomeCancelled, outcome)
	assert.ErrorIs(t, serr, ErrCancelled)

	// The question stays on the record; the aborted answer does not.
	sess, err := st.Get(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, sess.History, 1)
	assert.Equal(t, types.RoleUser, sess.History[0].Role)
}

func TestAnswerUpstreamFailure(t *testing.T) {
	gen := &fakeGenerator{
		tokens: []string{"partial "},
		err:    fmt.Errorf("status 500: %w", model.ErrUpstream),
	}
	a, st, id := newTestAgent(t, gen)

	stream, err := a.Answer(context.Background(), id, "q")
	require.NoError(t, err)
	drain(stream)

	outcome, serr := stream.Wait()
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, serr, model.ErrUpstream)
	assert.False(t, errors.Is(serr, ErrCancelled))

	sess, err := st.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, sess.History, 1)
}

func TestAnswerTimeout(t *testing.T) {
	st := store.NewMemoryStore()
	sess, err := st.Create(context.Background())
	require.NoError(t, err)

	a := New(st, hangingGenerator{}, Config{Timeout: 20 * time.Millisecond})
	stream, err := a.Answer(context.Background(), sess.ID, "q")
	require.NoError(t, err)
	drain(stream)

	outcome, serr := stream.Wait()
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, serr, context.DeadlineExceeded)

	got, err := st.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Len(t, got.History, 1)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "pending", OutcomePending.String())
	assert.Equal(t, "streaming", OutcomeStreaming.String())
	assert.Equal(t, "completed", OutcomeCompleted.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "cancelled", OutcomeCancelled.String())
}
