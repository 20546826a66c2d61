package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/keyhub-dev/keyhub/internal/service"
)

// Subscription serves the legacy and owner-scoped subscription endpoints.
type Subscription struct {
	subs   *service.SubscriptionService
	logger *slog.Logger
}

// NewSubscription constructs the subscription handler.
func NewSubscription(subs *service.SubscriptionService, logger *slog.Logger) *Subscription {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscription{subs: subs, logger: logger.With(slog.String("component", "subscription_handler"))}
}

// Legacy handles GET /sub/{email}, the old link format without an owner id.
func (h *Subscription) Legacy(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(chi.URLParam(r, "email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "missing email")
		return
	}

	h.serve(w, r, service.SubscriptionRequest{
		Email:     email,
		RawQuery:  r.URL.RawQuery,
		UserAgent: r.Header.Get("User-Agent"),
		Legacy:    true,
	})
}

// Modern handles GET /subscription/{email}/{ownerID}, the owner-scoped link.
func (h *Subscription) Modern(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(chi.URLParam(r, "email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "missing email")
		return
	}

	ownerID, err := strconv.ParseInt(chi.URLParam(r, "ownerID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid owner id")
		return
	}

	h.serve(w, r, service.SubscriptionRequest{
		Email:     email,
		OwnerID:   ownerID,
		RawQuery:  r.URL.RawQuery,
		UserAgent: r.Header.Get("User-Agent"),
	})
}

func (h *Subscription) serve(w http.ResponseWriter, r *http.Request, req service.SubscriptionRequest) {
	result, err := h.subs.Build(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrNoUpstreams):
			writeError(w, http.StatusNotFound, "subscription not found")
		case errors.Is(err, service.ErrOwnerMismatch):
			writeError(w, http.StatusForbidden, "forbidden")
		case errors.Is(err, service.ErrLinkExpired):
			writeError(w, http.StatusBadRequest, "link expired, request a new one")
		default:
			h.logger.Error("subscription build failed",
				slog.String("email", req.Email),
				slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for name, value := range result.Headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Payload)
}
