// Package handler is the REST adapter for Pix key registration, queries and
// claim commands.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pixkey/internal/pixkey/models"
	"pixkey/internal/platform/metrics"
	"pixkey/internal/platform/middleware"
	id "pixkey/pkg/domain"
	dErrors "pixkey/pkg/domain-errors"
	"pixkey/pkg/platform/httputil"
	"pixkey/pkg/requestcontext"
)

// Service defines the key operations exposed over HTTP.
type Service interface {
	CreateKey(ctx context.Context, userID id.UserID, keyType models.KeyType, keyValue string) (*models.Key, error)
	GetKey(ctx context.Context, keyID id.KeyID, userID id.UserID) (*models.Key, error)
	ListKeys(ctx context.Context, userID id.UserID) ([]*models.Key, error)
	StartOwnershipClaim(ctx context.Context, keyID id.KeyID, userID id.UserID) (*models.Key, error)
	ApprovePortabilityClaim(ctx context.Context, keyID id.KeyID, userID id.UserID) (*models.Key, error)
	CancelCode(ctx context.Context, keyID id.KeyID, userID id.UserID, reason models.ClaimReason) (*models.Key, error)
	CancelOwnershipClaim(ctx context.Context, keyID id.KeyID, userID id.UserID, reason models.ClaimReason) (*models.Key, error)
	Dismiss(ctx context.Context, keyID id.KeyID, userID id.UserID) (*models.Key, error)
}

// Handler handles the /v1/pix/keys endpoints.
type Handler struct {
	service      Service
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
	timeout      time.Duration
}

func New(service Service, logger *slog.Logger, metrics *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		service:      service,
		logger:       logger,
		metrics:      metrics,
		jwtValidator: jwtValidator,
		timeout:      30 * time.Second,
	}
}

// Register mounts the key routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/pix/keys", func(r chi.Router) {
		r.Use(middleware.Timeout(h.timeout))
		r.Use(middleware.Latency(h.metrics))
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

		r.Post("/", h.handleCreateKey)
		r.Get("/", h.handleListKeys)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetKey)
			r.Post("/ownership/start", h.command(h.service.StartOwnershipClaim))
			r.Post("/portability/approve", h.command(h.service.ApprovePortabilityClaim))
			r.Post("/cancel-code", h.commandWithReason(h.service.CancelCode))
			r.Post("/ownership/cancel", h.commandWithReason(h.service.CancelOwnershipClaim))
			r.Post("/dismiss", h.command(h.service.Dismiss))
		})
	})
}

func (h *Handler) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CreateKeyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	keyType, err := req.Validate()
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	key, err := h.service.CreateKey(ctx, requestcontext.UserID(ctx), keyType, req.KeyValue)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toKeyResponse(key))
}

func (h *Handler) handleListKeys(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	keys, err := h.service.ListKeys(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	resp := ListKeysResponse{Keys: make([]KeyResponse, 0, len(keys))}
	for _, k := range keys {
		resp.Keys = append(resp.Keys, toKeyResponse(k))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	keyID, err := id.ParseKeyID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	key, err := h.service.GetKey(ctx, keyID, requestcontext.UserID(ctx))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toKeyResponse(key))
}

type commandFunc func(ctx context.Context, keyID id.KeyID, userID id.UserID) (*models.Key, error)

type reasonCommandFunc func(ctx context.Context, keyID id.KeyID, userID id.UserID, reason models.ClaimReason) (*models.Key, error)

func (h *Handler) command(run commandFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		keyID, err := id.ParseKeyID(chi.URLParam(r, "id"))
		if err != nil {
			h.writeError(ctx, w, err)
			return
		}
		key, err := run(ctx, keyID, requestcontext.UserID(ctx))
		h.writeCommandResult(ctx, w, key, err)
	}
}

func (h *Handler) commandWithReason(run reasonCommandFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		keyID, err := id.ParseKeyID(chi.URLParam(r, "id"))
		if err != nil {
			h.writeError(ctx, w, err)
			return
		}
		var req ReasonRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			h.writeError(ctx, w, err)
			return
		}
		reason, err := req.Validate()
		if err != nil {
			h.writeError(ctx, w, err)
			return
		}
		key, err := run(ctx, keyID, requestcontext.UserID(ctx), reason)
		h.writeCommandResult(ctx, w, key, err)
	}
}

// writeCommandResult answers 202 when the transition committed but its side
// effects are still pending delivery.
func (h *Handler) writeCommandResult(ctx context.Context, w http.ResponseWriter, key *models.Key, err error) {
	if err != nil && key != nil && dErrors.HasCode(err, dErrors.CodeUnavailable) {
		h.logger.WarnContext(ctx, "transition accepted with pending side effects",
			"key_id", key.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteJSON(w, http.StatusAccepted, toKeyResponse(key))
		return
	}
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toKeyResponse(key))
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	if dErrors.ToHTTPStatus(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}
