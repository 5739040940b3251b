package internal

import (
	"os"
	"strconv"
	"time"
)

// Config drives the folder watcher and the upload client.
type Config struct {
	SourceDir  string
	ArchiveDir string
	BadDir     string

	ServiceURL string
	SessionID  string

	SettleTime time.Duration
}

func LoadConfig() Config {
	return Config{
		SourceDir:  getenv("LOADER_SOURCE_DIR", "./data/source"),
		ArchiveDir: getenv("LOADER_ARCHIVE_DIR", "./data/archive"),
		BadDir:     getenv("LOADER_BAD_DIR", "./data/bad"),
		ServiceURL: getenv("LOADER_SERVICE_URL", "http://localhost:8000"),
		SessionID:  os.Getenv("LOADER_SESSION_ID"),
		SettleTime: time.Duration(getenvInt("LOADER_SETTLE_SECONDS", 3)) * time.Second,
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
