package admin

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type handler struct {
	cache        CacheControl
	auth         *Authenticator
	rateLimiter  *RateLimiter
	maxBodyBytes int64
	logger       *log.Logger
	mux          *http.ServeMux
}

type invalidateRequest struct {
	Pattern string `json:"pattern"`
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
	if requestID == "" {
		requestID = uuid.NewString()
		r.Header.Set(RequestIDHeader, requestID)
	}
	w.Header().Set(RequestIDHeader, requestID)

	if !h.rateLimiter.Allow(r.RemoteAddr, classify(r)) {
		writeError(w, requestID, http.StatusTooManyRequests, "rate_limited")
		return
	}

	if h.auth == nil {
		writeError(w, requestID, http.StatusUnauthorized, "auth unavailable")
		return
	}
	err := h.auth.Authenticate(r)
	h.rateLimiter.Observe(r.RemoteAddr, err)
	if err != nil {
		status := http.StatusUnauthorized
		message := "unauthorized"
		var authErr *AuthError
		if errors.As(err, &authErr) {
			status = authErr.Status
			message = authErr.Message
		}
		writeError(w, requestID, status, message)
		return
	}
	if h.cache == nil {
		writeError(w, requestID, http.StatusServiceUnavailable, "cache unavailable")
		return
	}

	h.mux.ServeHTTP(w, r)
}

// classify charges anything that is not a plain read to the mutate budget.
func classify(r *http.Request) Class {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return ClassRead
	}
	return ClassMutate
}

func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(RequestIDHeader)
	if r.Method != http.MethodGet {
		writeError(w, requestID, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, requestID, http.StatusOK, h.cache.Stats())
}

func (h *handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(RequestIDHeader)
	if r.Method != http.MethodPost {
		writeError(w, requestID, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodyBytes+1))
	if err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid body")
		return
	}
	if int64(len(body)) > h.maxBodyBytes {
		writeError(w, requestID, http.StatusRequestEntityTooLarge, "body too large")
		return
	}
	var req invalidateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Pattern == "" {
		writeError(w, requestID, http.StatusBadRequest, "pattern required; use /admin/cache/clear to drop everything")
		return
	}
	removed := h.cache.Invalidate(req.Pattern)
	h.logger.Printf("admin_invalidate request_id=%s pattern=%q removed=%d", requestID, req.Pattern, removed)
	writeJSON(w, requestID, http.StatusOK, map[string]any{"ok": true, "removed": removed})
}

func (h *handler) handleClear(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(RequestIDHeader)
	if r.Method != http.MethodPost {
		writeError(w, requestID, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	removed := h.cache.Clear()
	h.logger.Printf("admin_clear request_id=%s removed=%d", requestID, removed)
	writeJSON(w, requestID, http.StatusOK, map[string]any{"ok": true, "removed": removed})
}

func writeError(w http.ResponseWriter, requestID string, status int, message string) {
	writeJSON(w, requestID, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, requestID string, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(RequestIDHeader, requestID)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
