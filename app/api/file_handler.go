package api

import (
	"context"
	"errors"
	"fmt"
	"io"

	"docqa/parser"
	"docqa/store"
	"docqa/types"

	"github.com/gofiber/fiber/v2"
)

type FileHandler struct {
	store  store.SessionStorer
	parser *parser.PDFParser
}

func NewFileHandler(s store.SessionStorer, p *parser.PDFParser) *FileHandler {
	return &FileHandler{
		store:  s,
		parser: p,
	}
}

// HandleUploadPDF parses a multipart PDF and binds it to the session,
// replacing any previously bound document. Validation failures come back
// with success=false and leave the session's document untouched.
func (h *FileHandler) HandleUploadPDF(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}

	sessionID := c.FormValue("session_id")
	if sessionID == "" {
		return NewValidationError(map[string]string{"session_id": "failed on 'required' tag"})
	}

	if _, err := h.store.Get(context.Background(), sessionID); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return ErrNotFound(sessionID, "session")
		}
		return err
	}

	if err := h.parser.CheckSize(fileHeader.Size); err != nil {
		return c.JSON(rejected(sessionID, err))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	doc, err := h.parser.Extract(data, fileHeader.Filename)
	if err != nil {
		if errors.Is(err, parser.ErrFileTooLarge) ||
			errors.Is(err, parser.ErrInvalidDocument) ||
			errors.Is(err, parser.ErrEmptyDocument) {
			return c.JSON(rejected(sessionID, err))
		}
		return err
	}

	if err := h.store.AttachDocument(context.Background(), sessionID, *doc); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return ErrNotFound(sessionID, "session")
		}
		return err
	}

	return c.JSON(types.UploadResponse{
		Success:   true,
		Message:   fmt.Sprintf("Successfully uploaded and parsed %s", fileHeader.Filename),
		SessionID: sessionID,
		Metadata:  doc,
	})
}

func rejected(sessionID string, err error) types.UploadResponse {
	return types.UploadResponse{
		Success:   false,
		Message:   err.Error(),
		SessionID: sessionID,
	}
}
