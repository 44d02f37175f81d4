// Package transport provides HTTP handlers for the verification domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/explorerverify/internal/auth"
	"github.com/pendergraft/explorerverify/internal/endpoints"
	"github.com/pendergraft/explorerverify/internal/verification/domain"
)

// Service defines the verification service interface for HTTP transport.
type Service interface {
	Start(ctx context.Context, req domain.VerifyRequest) (*domain.Result, error)
	Get(ctx context.Context, id string) (*domain.Result, error)
	List(ctx context.Context, filter domain.ListFilter) (*domain.ListResult, error)
}

// Networks lists the endpoint table.
type Networks interface {
	All() []endpoints.Network
}

// Handler handles HTTP requests for verification.
type Handler struct {
	svc      Service
	networks Networks
	logger   *slog.Logger
}

// NewHandler creates a new verification HTTP handler.
func NewHandler(svc Service, networks Networks, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, networks: networks, logger: logger}
}

// RegisterRoutes registers the read routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/verifications", h.handleList)
	r.Get("/verifications/{id}", h.handleGet)
	r.Get("/networks", h.handleNetworks)
}

// RegisterWriteRoutes registers the routes that start jobs.
func (h *Handler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/verifications", h.handleCreate)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateVerificationRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON: "+err.Error())
		return
	}

	result, err := h.svc.Start(r.Context(), req.ToDomain(r.Header.Get(APIKeyHeader)))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("verification started",
		"id", result.ID,
		"chain_id", result.ChainID,
		"caller", auth.GetCallerFromContext(r.Context()),
	)

	w.Header().Set("Location", "/api/v1/verifications/"+result.ID)
	writeJSON(w, http.StatusAccepted, FromDomain(result))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromDomain(result))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 20
	if l := q.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	var chainID uint64
	if c := q.Get("chainId"); c != "" {
		parsed, err := strconv.ParseUint(c, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "chainId must be a positive integer")
			return
		}
		chainID = parsed
	}

	result, err := h.svc.List(r.Context(), domain.ListFilter{
		ChainID: chainID,
		Address: q.Get("address"),
		Status:  domain.Status(q.Get("status")),
		Limit:   limit,
		Cursor:  q.Get("cursor"),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	data := make([]VerificationResponse, len(result.Results))
	for i := range result.Results {
		data[i] = FromDomain(&result.Results[i])
	}

	writeJSON(w, http.StatusOK, ListResponse{
		Data: data,
		Pagination: Pagination{
			Limit:      limit,
			HasMore:    result.HasMore,
			NextCursor: result.NextCursor,
		},
	})
}

func (h *Handler) handleNetworks(w http.ResponseWriter, r *http.Request) {
	all := h.networks.All()
	data := make([]NetworkItem, len(all))
	for i, n := range all {
		data[i] = networkItem(n)
	}
	writeJSON(w, http.StatusOK, NetworksResponse{Data: data})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Verification not found")
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, endpoints.ErrSimulatedNetwork):
		writeError(w, http.StatusBadRequest, "UNSUPPORTED_NETWORK", err.Error())
	case errors.Is(err, endpoints.ErrEndpointNotFound):
		writeError(w, http.StatusBadRequest, "UNSUPPORTED_NETWORK", err.Error())
	case errors.Is(err, domain.ErrChainMismatch):
		writeError(w, http.StatusConflict, "CHAIN_MISMATCH", err.Error())
	case errors.Is(err, domain.ErrShuttingDown):
		writeError(w, http.StatusServiceUnavailable, "SHUTTING_DOWN", "Server is shutting down")
	default:
		h.logger.Error("verification request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process verification")
	}
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}
