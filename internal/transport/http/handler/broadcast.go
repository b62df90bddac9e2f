// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/iruldev/eroaming-broadcast-gateway/internal/domain/broadcast"
	"github.com/iruldev/eroaming-broadcast-gateway/internal/transport/http/contract"
)

// broadcaster is the subset of the orchestrator the handler depends on.
type broadcaster interface {
	Broadcast(ctx context.Context, uid string) broadcast.Report
}

// BroadcastHandler handles the charge-start fan-out endpoint.
type BroadcastHandler struct {
	orchestrator broadcaster
	logger       *slog.Logger
}

// NewBroadcastHandler creates a BroadcastHandler over orchestrator.
func NewBroadcastHandler(orchestrator broadcaster, logger *slog.Logger) *BroadcastHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BroadcastHandler{orchestrator: orchestrator, logger: logger}
}

// broadcastRequestBody is the optional JSON body accepted alongside the
// {uid} path parameter; present so a caller that prefers a body-only
// request (uid omitted from the path) is still served by the same route.
type broadcastRequestBody struct {
	UID string `json:"uid"`
}

// StartCharging handles POST /v1/broadcast/{uid}.
func (h *BroadcastHandler) StartCharging(w http.ResponseWriter, r *http.Request) {
	uid := strings.TrimSpace(chi.URLParam(r, "uid"))
	if uid == "" {
		uid = strings.TrimSpace(h.uidFromBody(r))
	}
	if uid == "" {
		writeValidationProblem(w, r, "uid", "uid must not be empty")
		return
	}

	report := h.orchestrator.Broadcast(r.Context(), uid)

	status := http.StatusOK
	if !report.Success {
		status = http.StatusBadRequest
	}
	if err := contract.WriteJSON(w, status, report); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write broadcast response", slog.String("error", err.Error()))
	}
}

// uidFromBody reads an optional JSON body of the form {"uid": "..."}.
// A missing or unparseable body is not an error here -- the path
// parameter is the primary source of uid and the body is a convenience.
func (h *BroadcastHandler) uidFromBody(r *http.Request) string {
	if r.Body == nil || r.ContentLength == 0 {
		return ""
	}
	var body broadcastRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return ""
	}
	return body.UID
}

func writeValidationProblem(w http.ResponseWriter, r *http.Request, field, message string) {
	problem := contract.NewFieldValidationProblem(r, []contract.FieldError{
		{Field: field, Message: message, Code: contract.CodeValRequired},
	})
	contract.WriteProblem(w, problem)
}
