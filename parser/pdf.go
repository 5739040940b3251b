package parser

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docqa/types"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

var (
	ErrFileTooLarge    = errors.New("file too large")
	ErrInvalidDocument = errors.New("invalid document")
	ErrEmptyDocument   = errors.New("no readable text in document")
)

// PDFParser validates raw PDF bytes and extracts their plain text.
// It is a pure transformation: no session state, no retries.
type PDFParser struct {
	maxBytes int64
	maxPages int
	logger   *slog.Logger
}

func NewPDFParser(maxBytes int64, maxPages int) *PDFParser {
	return &PDFParser{
		maxBytes: maxBytes,
		maxPages: maxPages,
		logger:   slog.Default(),
	}
}

// CheckSize rejects a declared upload size before any bytes are read.
func (p *PDFParser) CheckSize(declared int64) error {
	if declared > p.maxBytes {
		return fmt.Errorf("%w: declared size %d exceeds maximum of %dMB",
			ErrFileTooLarge, declared, p.maxBytes/(1024*1024))
	}
	return nil
}

// Extract validates data as a PDF and returns the extracted document.
// Failures are reported as one of ErrFileTooLarge, ErrInvalidDocument or
// ErrEmptyDocument, never as a silently empty result.
func (p *PDFParser) Extract(data []byte, filename string) (*types.Document, error) {
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return nil, fmt.Errorf("%w: %s is not a PDF", ErrInvalidDocument, filename)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidDocument, filename)
	}
	if int64(len(data)) > p.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds maximum size of %dMB",
			ErrFileTooLarge, filename, p.maxBytes/(1024*1024))
	}

	pages, err := p.validatePDF(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is corrupted or invalid: %v", ErrInvalidDocument, filename, err)
	}
	if pages == 0 {
		return nil, fmt.Errorf("%w: %s has no pages", ErrInvalidDocument, filename)
	}
	if pages > p.maxPages {
		return nil, fmt.Errorf("%w: %s has %d pages, maximum is %d",
			ErrFileTooLarge, filename, pages, p.maxPages)
	}

	text, err := extractText(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, filename, err)
	}
	text = cleanText(text)
	if text == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}

	doc := &types.Document{
		SourceName:    filename,
		ExtractedText: text,
		ByteSize:      len(data),
		PageCount:     pages,
		Characters:    len(text),
		UploadedAt:    time.Now(),
	}

	p.logger.Info("parsed PDF",
		"filename", filename,
		"pages", doc.PageCount,
		"characters", doc.Characters,
	)
	return doc, nil
}

// validatePDF checks structural validity and returns the page count.
func (p *PDFParser) validatePDF(data []byte) (int, error) {
	conf := api.LoadConfiguration()

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return 0, err
	}
	if err := api.ValidateContext(ctx); err != nil {
		return 0, err
	}
	return ctx.PageCount, nil
}

// extractText pulls the plain text of every page. The pdf library panics on
// some malformed content streams, so the panic is converted to an error.
func extractText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("text extraction failed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// cleanText drops blank lines and trims the rest.
func cleanText(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
