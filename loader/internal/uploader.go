package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"docqa/types"
)

// Uploader pushes a local PDF into a chat session over the service's
// upload endpoint. With no configured session id it opens a fresh session
// per file, so every document gets its own conversation.
type Uploader struct {
	serviceURL string
	sessionID  string
	client     *http.Client
	logger     *slog.Logger
}

func NewUploader(serviceURL, sessionID string) *Uploader {
	return &Uploader{
		serviceURL: serviceURL,
		sessionID:  sessionID,
		client:     &http.Client{Timeout: 60 * time.Second},
		logger:     slog.Default(),
	}
}

// Upload sends the file and reports whether the service accepted it.
// A false return with nil error means the service parsed the request but
// rejected the document.
func (u *Uploader) Upload(ctx context.Context, path string) (bool, error) {
	sessionID := u.sessionID
	if sessionID == "" {
		id, err := u.createSession(ctx)
		if err != nil {
			return false, err
		}
		sessionID = id
	}

	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("session_id", sessionID); err != nil {
		return false, err
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(fw, file); err != nil {
		return false, err
	}
	if err := mw.Close(); err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		u.serviceURL+"/api/v1/upload/pdf", &body)
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result types.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}

	if !result.Success {
		u.logger.Warn("document rejected",
			"file", path,
			"session_id", result.SessionID,
			"reason", result.Message,
		)
		return false, nil
	}

	u.logger.Info("document uploaded",
		"file", path,
		"session_id", result.SessionID,
		"pages", result.Metadata.PageCount,
		"characters", result.Metadata.Characters,
	)
	return true, nil
}

func (u *Uploader) createSession(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", u.serviceURL+"/api/v1/sessions", nil)
	if err != nil {
		return "", err
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("session create failed with status %d", resp.StatusCode)
	}

	var summary types.SessionSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return "", err
	}
	return summary.ID, nil
}
