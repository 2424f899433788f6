// Package internalapi is the small inbound HTTP surface other services use
// to make the bot speak: posting chat messages and triggering "last score"
// replies. Every request must carry the shared secret in the Secret header.
package internalapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/xnyo/fokabot/internal/bot"
	"github.com/xnyo/fokabot/internal/plugins"
)

// response is the uniform reply envelope.
type response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Server is the internal HTTP listener.
type Server struct {
	bot    *bot.Bot
	secret string
	logger *slog.Logger
	server *http.Server
}

// New builds the server. addr is host:port.
func New(b *bot.Bot, addr, secret string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{bot: b, secret: secret, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.requireSecret)
	r.Post("/api/v0/send_message", s.handleSendMessage)
	r.Post("/api/v0/last", s.handleLast)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start listens in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("internal api listen: %w", err)
	}
	s.logger.Info("internal api listening", "addr", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("internal api server failed", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Debug("cannot write response", "error", err)
	}
}

// requestID tags each request with a correlation id for the logs.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		s.logger.Debug("internal api request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
		)
		next.ServeHTTP(w, r)
	})
}

// requireSecret rejects requests without the shared secret.
func (s *Server) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Secret") != s.secret {
			s.writeJSON(w, response{Code: http.StatusForbidden, Message: "Forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target  string `json:"target"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Target == "" || req.Message == "" {
		s.writeJSON(w, response{Code: http.StatusBadRequest, Message: "Missing required arguments."})
		return
	}
	s.bot.SendMessage(req.Message, req.Target)
	s.writeJSON(w, response{Code: http.StatusOK, Message: "ok"})
}

func (s *Server) handleLast(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		s.writeJSON(w, response{Code: http.StatusBadRequest, Message: "Missing required arguments."})
		return
	}

	user, err := s.bot.Ripple.GetUserByID(r.Context(), req.UserID)
	if err != nil {
		s.logger.Error("last: user lookup failed", "user_id", req.UserID, "error", err)
		s.writeJSON(w, response{Code: http.StatusInternalServerError, Message: "Internal server error"})
		return
	}
	if user == nil {
		s.writeJSON(w, response{Code: http.StatusNotFound, Message: "No such user"})
		return
	}

	msg, err := plugins.LastScoreMessage(r.Context(), s.bot, user.Username, true)
	if err != nil {
		s.logger.Error("last: score lookup failed", "user_id", req.UserID, "error", err)
		s.writeJSON(w, response{Code: http.StatusInternalServerError, Message: "Internal server error"})
		return
	}
	s.bot.SendMessage(msg, user.Username)
	s.writeJSON(w, response{Code: http.StatusOK, Message: "ok"})
}
