package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/stockwise-ai/server/internal/agent/model"
	"github.com/stockwise-ai/server/internal/agent/session"
	errx "github.com/stockwise-ai/server/internal/core/error"
	logx "github.com/stockwise-ai/server/pkg/logger"
)

const maxMessageLength = 4000

// Sessions runs conversation turns.
type Sessions interface {
	Handle(ctx context.Context, sessionID, text string) (*model.TurnResult, error)
	Reset(ctx context.Context, sessionID string) error
	Status(sessionID string) session.Status
}

// Inventory exposes the raw tables for display.
type Inventory interface {
	Items(ctx context.Context) ([]model.InventoryItem, error)
	Sales(ctx context.Context) ([]model.SaleRecord, error)
}

type ChatHandler struct {
	sessions  Sessions
	inventory Inventory
}

func NewChatHandler(sessions Sessions, inventory Inventory) *ChatHandler {
	return &ChatHandler{sessions: sessions, inventory: inventory}
}

type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (r ChatRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SessionID, validation.Length(0, 128)),
		validation.Field(&r.Message, validation.Required, validation.Length(1, maxMessageLength)),
	)
}

type ChatResponse struct {
	*model.TurnResult
	SessionID string        `json:"session_id"`
	Phase     session.Phase `json:"phase"`
}

// Chat handles POST /api/chat. A missing session_id starts a new session.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := parseJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.Message = strings.TrimSpace(req.Message)
	if err := req.Validate(); err != nil {
		respondValidation(w, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	res, err := h.sessions.Handle(r.Context(), req.SessionID, req.Message)
	if err != nil {
		h.respondFailure(w, req.SessionID, err)
		return
	}
	respondJSON(w, http.StatusOK, ChatResponse{
		TurnResult: res,
		SessionID:  req.SessionID,
		Phase:      h.sessions.Status(req.SessionID).Phase,
	})
}

// Reset handles POST /api/sessions/{id}/reset.
func (h *ChatHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "session id is required", nil)
		return
	}
	if err := h.sessions.Reset(r.Context(), id); err != nil {
		h.respondFailure(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status handles GET /api/sessions/{id}.
func (h *ChatHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"status":     h.sessions.Status(id),
	})
}

// Inventory handles GET /api/inventory.
func (h *ChatHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	items, err := h.inventory.Items(r.Context())
	if err != nil {
		h.respondFailure(w, "", err)
		return
	}
	sales, err := h.inventory.Sales(r.Context())
	if err != nil {
		h.respondFailure(w, "", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"inventory": items,
		"sales":     sales,
	})
}

// Health handles GET /healthz.
func (h *ChatHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ChatHandler) respondFailure(w http.ResponseWriter, sessionID string, err error) {
	status := errx.StatusOf(err)
	if status >= http.StatusInternalServerError {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("Request failed")
	}
	var extra map[string]any
	if sessionID != "" {
		extra = map[string]any{"session_id": sessionID}
	}
	respondError(w, status, errx.MessageOf(err), extra)
}

func respondValidation(w http.ResponseWriter, err error) {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for field, ferr := range verrs {
			fields[field] = ferr.Error()
		}
		respondError(w, http.StatusBadRequest, errx.ValidationErrorMessage, map[string]any{"errors": fields})
		return
	}
	respondError(w, http.StatusBadRequest, err.Error(), nil)
}
