package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-messenger/internal/chat"
	"github.com/npezzotti/go-messenger/internal/config"
	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/stats"
	"github.com/teris-io/shortid"
)

// MessengerApp is the thin request layer: REST endpoints wrapping the
// same lifecycle operations for non-realtime clients, plus the
// websocket handshake. Realtime pushes for REST mutations go through
// the hub's exposed notify surface.
type MessengerApp struct {
	log            *log.Logger
	db             database.MessengerRepository
	mux            *http.Server
	cs             *chat.ChatServer
	svc            *chat.MessageService
	signingKey     []byte
	allowedOrigins []string
	sid            *shortid.Shortid
}

func NewMessengerApp(logger *log.Logger, cs *chat.ChatServer, db database.MessengerRepository, cfg *config.Config) (*MessengerApp, error) {
	sid, err := shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		return nil, fmt.Errorf("create shortid generator: %w", err)
	}

	s := &MessengerApp{
		log:            logger,
		db:             db,
		cs:             cs,
		svc:            chat.NewMessageService(db),
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
		sid:            sid,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/conversations", s.authMiddleware(s.listConversations))
	mux.Handle("POST /api/conversations", s.authMiddleware(s.createConversation))
	mux.Handle("POST /api/conversations/read", s.authMiddleware(s.markConversationRead))
	mux.Handle("GET /api/messages", s.authMiddleware(s.getMessages))
	mux.Handle("POST /api/messages", s.authMiddleware(s.sendMessage))
	mux.Handle("PUT /api/messages", s.authMiddleware(s.editMessage))
	mux.Handle("DELETE /api/messages", s.authMiddleware(s.deleteMessage))
	mux.Handle("POST /api/reactions", s.authMiddleware(s.toggleReaction))
	mux.Handle("GET /api/presence", s.authMiddleware(s.presence))
	mux.Handle("GET /ws", http.HandlerFunc(s.serveWs))
	mux.Handle("GET /metrics", stats.Handler())

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s, nil
}

func (s *MessengerApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *MessengerApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

func (s *MessengerApp) generateShortId() (string, error) {
	return s.sid.Generate()
}
