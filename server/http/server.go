// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/absmach/smsgate/gateway"
	"github.com/absmach/smsgate/inbox"
	"github.com/absmach/smsgate/sms"
)

type Config struct {
	Address         string
	ShutdownTimeout time.Duration
}

type Server struct {
	config  Config
	gateway *gateway.Gateway
	inbox   inbox.Store
	logger  *slog.Logger
	server  *http.Server
}

func New(cfg Config, gw *gateway.Gateway, store inbox.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:  cfg,
		gateway: gw,
		inbox:   store,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/messages", s.handleSend)
	mux.HandleFunc("/messages/long", s.handleSendLong)
	mux.HandleFunc("/messages/bulk", s.handleSendBulk)
	mux.HandleFunc("/signal", s.handleSignal)
	mux.HandleFunc("/inbox", s.handleInboxList)
	mux.HandleFunc("/inbox/search", s.handleInboxSearch)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:    cfg.Address,
		Handler: mux,
	}

	return s
}

func (s *Server) Listen(ctx context.Context) error {
	s.logger.Info("http_api_starting", slog.String("addr", s.config.Address))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("http_api_shutdown_initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http_api_shutdown_error", slog.String("error", err.Error()))
			return err
		}

		s.logger.Info("http_api_stopped")
		return nil
	}
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	s.send(w, r, s.gateway.Send)
}

func (s *Server) handleSendLong(w http.ResponseWriter, r *http.Request) {
	s.send(w, r, s.gateway.SendLong)
}

func (s *Server) send(w http.ResponseWriter, r *http.Request, op func(context.Context, sms.SendRequest) (sms.Outcome, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req sms.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("http_send_invalid_request", slog.String("error", err.Error()))
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	outcome, err := op(r.Context(), req)
	if err != nil {
		s.writeSendError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

type bulkRequest struct {
	Recipients   []string `json:"recipients"`
	Body         string   `json:"body"`
	Subscription int      `json:"subscription"`
}

func (s *Server) handleSendBulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	outcome, err := s.gateway.SendMultiple(r.Context(), req.Recipients, req.Body, req.Subscription)
	if err != nil {
		s.writeSendError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	subscription := 0
	if v := r.URL.Query().Get("subscription"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "subscription must be an integer", http.StatusBadRequest)
			return
		}
		subscription = n
	}

	level, err := s.gateway.CheckSignal(subscription)
	if err != nil {
		http.Error(w, fmt.Sprintf("signal check failed: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"subscription": subscription,
		"level":        int(level),
		"quality":      level.String(),
	})
}

func (s *Server) handleInboxList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	messages, err := s.inbox.List(parseLimit(r))
	if err != nil {
		http.Error(w, fmt.Sprintf("inbox list failed: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) handleInboxSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "q is required", http.StatusBadRequest)
		return
	}

	messages, err := s.inbox.Search(query, parseLimit(r))
	if err != nil {
		http.Error(w, fmt.Sprintf("inbox search failed: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// writeSendError maps the gateway error taxonomy onto HTTP statuses.
func (s *Server) writeSendError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sms.ErrEmptyDestination),
		errors.Is(err, sms.ErrEmptyBody),
		errors.Is(err, sms.ErrNoRecipients):
		status = http.StatusBadRequest
	case errors.Is(err, sms.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, sms.ErrSignalTooWeak):
		status = http.StatusServiceUnavailable
	case errors.Is(err, sms.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	http.Error(w, err.Error(), status)
}

func parseLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
