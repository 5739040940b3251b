package types

import (
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a session's history. Assistant turns hold the
// fully assembled text; partial streams are never persisted.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Document is the extracted text of one uploaded PDF, owned by its session.
type Document struct {
	SourceName    string    `json:"source_name"` // original filename, display only
	ExtractedText string    `json:"-"`
	ByteSize      int       `json:"size_bytes"`
	PageCount     int       `json:"pages"`
	Characters    int       `json:"characters"`
	UploadedAt    time.Time `json:"upload_time"`
}

type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	History   []Turn    `json:"history"`
	Document  *Document `json:"document,omitempty"`
}

func (s *Session) HasDocument() bool {
	return s.Document != nil
}

func (s *Session) Summary() SessionSummary {
	sum := SessionSummary{
		ID:          s.ID,
		CreatedAt:   s.CreatedAt,
		HasDocument: s.HasDocument(),
		TurnCount:   len(s.History),
	}
	if s.Document != nil {
		sum.DocumentName = s.Document.SourceName
	}
	return sum
}

type SessionSummary struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	HasDocument  bool      `json:"has_document"`
	TurnCount    int       `json:"turn_count"`
	DocumentName string    `json:"document_name,omitempty"`
}

type ChunkType string

const (
	ChunkStatus ChunkType = "status"
	ChunkToken  ChunkType = "token"
	ChunkDone   ChunkType = "done"
	ChunkError  ChunkType = "error"
)

// StreamChunk is one NDJSON line of the /chat/stream response.
type StreamChunk struct {
	Type           ChunkType `json:"type"`
	Content        string    `json:"content,omitempty"`
	Step           string    `json:"step,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	TokenCount     int       `json:"token_count,omitempty"`
}

type UploadResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	SessionID string    `json:"session_id"`
	Metadata  *Document `json:"metadata,omitempty"`
}

type SessionResponse struct {
	SessionSummary
	History []Turn `json:"history"`
}
