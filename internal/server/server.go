// Package server exposes the HTTP surface: the signed transaction
// webhook, webhook registration, and the email parsing API.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danuarif/duitbot/internal/auth"
	"github.com/danuarif/duitbot/internal/extract"
	"github.com/danuarif/duitbot/internal/gas"
	"github.com/danuarif/duitbot/pkg/api"
)

// Notifier delivers a confirmed-pending transaction to the user on
// Telegram. Satisfied by bot.Bot.
type Notifier interface {
	NotifyEmailTransaction(ctx context.Context, userID string, tx *api.Transaction) error
}

// Registry is the slice of the admin registry the HTTP surface needs.
type Registry interface {
	CheckAuthorized(ctx context.Context, userID string) bool
	SetWebhookURL(ctx context.Context, userID, webhookURL string) error
}

// Server handles inbound webhooks and the parsing API.
type Server struct {
	webhookSecret []byte
	parserSecret  []byte
	extractors    *extract.Registry
	registry      Registry
	notifier      Notifier
	logger        *slog.Logger
}

func New(webhookSecret, parserSecret []byte, extractors *extract.Registry, registry Registry, notifier Notifier, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		webhookSecret: webhookSecret,
		parserSecret:  parserSecret,
		extractors:    extractors,
		registry:      registry,
		notifier:      notifier,
		logger:        logger,
	}
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook/transaction", s.handleTransactionWebhook)
	mux.HandleFunc("POST /webhook/register", s.handleRegisterWebhook)
	mux.HandleFunc("POST /api/parse-email", s.handleParseEmail)
	mux.HandleFunc("GET /health", s.handleHealth)

	return requestID(logRequests(s.logger, recoverPanics(s.logger, rateLimit(s.logger, mux))))
}

type transactionWebhookRequest struct {
	UserID    string `json:"user_id"`
	Signature string `json:"signature"`
	// Raw bytes: the signature is computed over the transaction JSON
	// exactly as the sender serialized it.
	Transaction json.RawMessage `json:"transaction"`
}

func (s *Server) handleTransactionWebhook(w http.ResponseWriter, r *http.Request) {
	var req transactionWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" || req.Signature == "" || len(req.Transaction) == 0 {
		writeError(w, http.StatusBadRequest, "user_id, signature and transaction are required")
		return
	}

	if !auth.VerifySignature(s.webhookSecret, req.Transaction, req.Signature) {
		s.logger.Warn("webhook signature rejected", "user_id", req.UserID)
		writeError(w, http.StatusForbidden, "invalid signature")
		return
	}

	if !s.registry.CheckAuthorized(r.Context(), req.UserID) {
		writeError(w, http.StatusForbidden, "user not authorized")
		return
	}

	var tx api.Transaction
	if err := json.Unmarshal(req.Transaction, &tx); err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction payload")
		return
	}
	if !tx.Complete() {
		writeError(w, http.StatusBadRequest, "transaction must carry a title and a positive amount")
		return
	}

	if err := s.notifier.NotifyEmailTransaction(r.Context(), req.UserID, &tx); err != nil {
		s.logger.Error("failed to deliver transaction notification", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to notify user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type registerWebhookRequest struct {
	UserID     string `json:"user_id"`
	WebhookURL string `json:"gas_webhook_url"`
}

func (s *Server) handleRegisterWebhook(w http.ResponseWriter, r *http.Request) {
	var req registerWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" || req.WebhookURL == "" {
		writeError(w, http.StatusBadRequest, "user_id and gas_webhook_url are required")
		return
	}
	if !strings.HasPrefix(req.WebhookURL, "https://script.google.com/") {
		writeError(w, http.StatusBadRequest, "gas_webhook_url must be an Apps Script URL")
		return
	}

	if err := s.registry.SetWebhookURL(r.Context(), req.UserID, req.WebhookURL); err != nil {
		s.logger.Error("webhook registration failed", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusBadGateway, "registration failed")
		return
	}

	s.logger.Info("webhook registered", "user_id", req.UserID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type parseEmailRequest struct {
	UserID string    `json:"user_id"`
	APIKey string    `json:"api_key"`
	Email  api.Email `json:"email"`
}

// handleParseEmail runs the extractor dispatch for the caller. Auth
// failures reject with 401/403; once the dispatcher runs, the outcome
// is always HTTP 200 with a success flag, so the Apps Script caller can
// tell a failed call from a successful call that found nothing.
func (s *Server) handleParseEmail(w http.ResponseWriter, r *http.Request) {
	var req parseEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" || req.APIKey == "" {
		writeError(w, http.StatusBadRequest, "user_id and api_key are required")
		return
	}

	if !auth.VerifyAPIKey(s.parserSecret, req.UserID, req.APIKey) {
		s.logger.Warn("parse-email key rejected", "user_id", req.UserID)
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return
	}
	if !s.registry.CheckAuthorized(r.Context(), req.UserID) {
		writeError(w, http.StatusForbidden, "user not authorized")
		return
	}

	tx := s.extractors.Dispatch(req.Email)
	if tx == nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "no transaction found"})
		return
	}

	s.logger.Info("email parsed", "user_id", req.UserID, "title", tx.Title, "amount", tx.Amount)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "transaction": tx})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

var _ Registry = (*gas.Client)(nil)
