package server

import (
	"context"
	"log/slog"
	"time"

	"docqa/app/agent"
	"docqa/app/api"
	"docqa/app/middleware"
	"docqa/model"
	"docqa/parser"
	"docqa/store"
	"docqa/types"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

var config = fiber.Config{
	ErrorHandler: api.ErrorHandler,
}

type Server struct {
	listenAddr string
	cfg        types.Config
	logger     *slog.Logger
	app        *fiber.App
	stopClean  chan struct{}
}

func NewServer(cfg types.Config) *Server {
	return &Server{
		listenAddr: cfg.ServerAddr,
		cfg:        cfg,
		logger:     slog.Default(),
		stopClean:  make(chan struct{}),
	}
}

func (s *Server) Stop() {
	close(s.stopClean)
	if s.app != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			s.logger.Error("error shutting down server", "error", err.Error())
		}
	}
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	sessionStore := store.NewMemoryStore()
	pdfParser := parser.NewPDFParser(s.cfg.MaxPDFSizeBytes(), s.cfg.MaxPDFPages)
	generator := model.NewOllamaGenerator(s.cfg.LLMURL, s.cfg.LLMModel)

	qaAgent := agent.New(sessionStore, generator, agent.Config{
		SystemPrompt:    s.cfg.SystemPrompt,
		MaxContextChars: s.cfg.MaxContextChars,
		Timeout:         s.cfg.LLMTimeout,
	})

	go s.cleanupLoop(sessionStore)

	var (
		app            = fiber.New(config)
		checkHandler   = api.NewCheckHandler()
		chatHandler    = api.NewChatHandler(sessionStore, qaAgent)
		fileHandler    = api.NewFileHandler(sessionStore, pdfParser)
		sessionHandler = api.NewSessionHandler(sessionStore)
		check          = app.Group("/check")
		apiv1          = app.Group("/api/v1")
	)
	s.app = app

	app.Use(middleware.RequestLogger(s.logger))
	app.Use(cors.New())

	check.Get("/healthy", checkHandler.HandleHealthy)
	apiv1.Post("/chat/stream", chatHandler.HandleChatStream)
	apiv1.Post("/upload/pdf", fileHandler.HandleUploadPDF)
	apiv1.Post("/sessions", sessionHandler.HandleCreateSession)
	apiv1.Get("/sessions", sessionHandler.HandleListSessions)
	apiv1.Get("/sessions/:id", sessionHandler.HandleGetSession)

	if err := app.Listen(s.listenAddr); err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return
	}
}

// cleanupLoop evicts sessions idle for longer than the configured TTL.
func (s *Server) cleanupLoop(sessionStore store.SessionStorer) {
	if s.cfg.SessionTTL <= 0 {
		return
	}

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopClean:
			return
		case <-ticker.C:
			if _, err := sessionStore.DeleteExpired(context.Background(), s.cfg.SessionTTL); err != nil {
				s.logger.Error("session cleanup failed", "error", err.Error())
			}
		}
	}
}
