package api

import (
	"context"
	"errors"

	"docqa/store"
	"docqa/types"

	"github.com/gofiber/fiber/v2"
)

type SessionHandler struct {
	store store.SessionStorer
}

func NewSessionHandler(s store.SessionStorer) *SessionHandler {
	return &SessionHandler{
		store: s,
	}
}

func (h *SessionHandler) HandleCreateSession(c *fiber.Ctx) error {
	sess, err := h.store.Create(context.Background())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(sess.Summary())
}

func (h *SessionHandler) HandleGetSession(c *fiber.Ctx) error {
	id := c.Params("id")

	sess, err := h.store.Get(context.Background(), id)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return ErrNotFound(id, "session")
		}
		return err
	}

	return c.JSON(types.SessionResponse{
		SessionSummary: sess.Summary(),
		History:        sess.History,
	})
}

func (h *SessionHandler) HandleListSessions(c *fiber.Ctx) error {
	summaries, err := h.store.List(context.Background())
	if err != nil {
		return err
	}
	return c.JSON(summaries)
}
