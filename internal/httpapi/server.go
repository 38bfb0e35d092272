// Package httpapi exposes the read-only administrative surface: contact
// listing, pairing code retrieval, and a direct reply-service proxy for
// synchronous testing.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tumelo/waflow/internal/ai"
	"github.com/tumelo/waflow/internal/storage"
)

// PairingSource exposes the current pairing code, if any.
type PairingSource interface {
	PairingCode() string
}

type Server struct {
	store   storage.Storage
	replier ai.Replier
	pairing PairingSource
	logger  *zap.Logger
}

func NewServer(store storage.Storage, replier ai.Replier, pairing PairingSource, logger *zap.Logger) *Server {
	return &Server{
		store:   store,
		replier: replier,
		pairing: pairing,
		logger:  logger,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/contacts", s.handleContacts)
	r.Get("/pair", s.handlePair)
	r.Post("/message", s.handleMessage)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.store.ListContacts(r.Context())
	if err != nil {
		s.logger.Error("failed to list contacts", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list contacts"})
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	code := s.pairing.PairingCode()
	if code == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no pairing code pending"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

type messageRequest struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// handleMessage proxies straight to the reply service, bypassing the
// router and every enable flag. Intended for synchronous testing only.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}

	reply, err := s.replier.GenerateReply(r.Context(), req.Message, req.From)
	if err != nil {
		s.logger.Error("reply service failed", zap.Error(err), zap.String("from", req.From))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "AI service failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply.Reply})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
