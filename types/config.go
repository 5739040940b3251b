package types

import (
	"os"
	"strconv"
	"time"
)

// Config collects the environment knobs in one place instead of scattering
// os.Getenv calls across handlers.
type Config struct {
	ServerAddr string

	LLMURL       string
	LLMModel     string
	SystemPrompt string
	LLMTimeout   time.Duration

	MaxPDFSizeMB    int
	MaxPDFPages     int
	MaxContextChars int

	SessionTTL time.Duration
}

const defaultSystemPrompt = "You are a helpful document QA assistant. " +
	"You can answer questions about uploaded documents and maintain context " +
	"across the conversation. Be concise and accurate in your responses."

func LoadConfig() Config {
	return Config{
		ServerAddr:      getenv("SERVER_ADDR", ":8000"),
		LLMURL:          getenv("LLM_URL", "http://localhost:11434/api/generate"),
		LLMModel:        getenv("LLM_MODEL", "llama3.1"),
		SystemPrompt:    getenv("LLM_SYSTEM_PROMPT", defaultSystemPrompt),
		LLMTimeout:      time.Duration(getenvInt("LLM_TIMEOUT_SECONDS", 120)) * time.Second,
		MaxPDFSizeMB:    getenvInt("MAX_PDF_SIZE_MB", 10),
		MaxPDFPages:     getenvInt("MAX_PDF_PAGES", 100),
		MaxContextChars: getenvInt("MAX_CONTEXT_CHARS", 20000),
		SessionTTL:      time.Duration(getenvInt("SESSION_TTL_HOURS", 24)) * time.Hour,
	}
}

func (c Config) MaxPDFSizeBytes() int64 {
	return int64(c.MaxPDFSizeMB) * 1024 * 1024
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
