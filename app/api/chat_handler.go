package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"time"

	"docqa/app/agent"
	"docqa/store"
	"docqa/types"

	"github.com/gofiber/fiber/v2"
)

var statusSteps = []string{"Analyzing", "Searching knowledge", "Generating response"}

type ChatHandler struct {
	store store.SessionStorer
	agent *agent.Agent
}

func NewChatHandler(s store.SessionStorer, a *agent.Agent) *ChatHandler {
	return &ChatHandler{
		store: s,
		agent: a,
	}
}

// HandleChatStream answers a question as an NDJSON stream of chunks:
// status lines first, then one token chunk per fragment, then a done or
// error chunk. An empty session_id starts a fresh session; its id comes
// back in the X-Session-ID header.
func (h *ChatHandler) HandleChatStream(c *fiber.Ctx) error {
	var params types.ChatParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if verrs := types.Validate(&params); len(verrs) > 0 {
		return NewValidationError(verrs)
	}

	sessionID := params.SessionID
	if sessionID == "" {
		sess, err := h.store.Create(context.Background())
		if err != nil {
			return err
		}
		sessionID = sess.ID
	}

	start := time.Now()

	// The stream outlives this handler, so generation is not tied to the
	// request context. Client disconnects surface as flush errors below.
	st, err := h.agent.Answer(context.Background(), sessionID, params.Message)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return ErrNotFound(sessionID, "session")
		}
		return err
	}

	c.Set(fiber.HeaderContentType, "application/x-ndjson")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("X-Session-ID", sessionID)

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		enc := json.NewEncoder(w)
		write := func(chunk types.StreamChunk) bool {
			chunk.Timestamp = time.Now()
			chunk.ElapsedSeconds = time.Since(start).Seconds()
			if err := enc.Encode(chunk); err != nil {
				return false
			}
			return w.Flush() == nil
		}

		for _, step := range statusSteps {
			if !write(types.StreamChunk{Type: types.ChunkStatus, Step: step}) {
				st.Cancel()
			}
		}

		tokenCount := 0
		for token := range st.Tokens() {
			tokenCount++
			if !write(types.StreamChunk{Type: types.ChunkToken, Content: token, TokenCount: tokenCount}) {
				// Client went away: stop generation, then keep draining so
				// the producer can reach its terminal state.
				st.Cancel()
			}
		}

		outcome, serr := st.Wait()
		switch outcome {
		case agent.OutcomeCompleted:
			write(types.StreamChunk{Type: types.ChunkDone, TokenCount: tokenCount})
		case agent.OutcomeFailed:
			write(types.StreamChunk{Type: types.ChunkError, Content: serr.Error(), TokenCount: tokenCount})
		case agent.OutcomeCancelled:
			// nobody left to notify
		}
	})

	return nil
}
