package pipeline

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/conamormarket-lgtm/sistema-sub001/internal/flows"
	"github.com/conamormarket-lgtm/sistema-sub001/internal/platform/httpx"
)

// Handler manages pipeline HTTP endpoints.
type Handler struct {
	logger *slog.Logger
	engine *Engine
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, engine *Engine) *Handler {
	return &Handler{logger: logger, engine: engine}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/orders/{orderID}/advance", h.advance)
	r.Post("/orders/{orderID}/recheck-hold", h.recheckHold)
	r.Post("/orders/{orderID}/evaluate", h.evaluate)
	r.Get("/on-hold", h.onHold)
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.AdvanceStage(r.Context(), chi.URLParam(r, "orderID"), actorID(r))
	if err != nil {
		h.respondErr(w, "advance stage", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) recheckHold(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.RecheckHold(r.Context(), chi.URLParam(r, "orderID"), actorID(r))
	if err != nil {
		h.respondErr(w, "recheck hold", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type evaluateRequest struct {
	Conditions []flows.Condition `json:"conditions"`
}

// evaluate answers condition lists ad hoc so configuration editors can
// preview gates against a live order.
func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	order, err := h.engine.orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.respondErr(w, "evaluate conditions", err)
		return
	}
	outcome := h.engine.eval.EvaluateAll(r.Context(), req.Conditions, order)
	httpx.JSON(w, http.StatusOK, outcome)
}

func (h *Handler) onHold(w http.ResponseWriter, r *http.Request) {
	held, err := h.engine.ListOnHold(r.Context())
	if err != nil {
		h.respondErr(w, "list on hold", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": held})
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrUnknownStage), errors.Is(err, ErrCompleted):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func actorID(r *http.Request) string {
	if v := r.Header.Get("X-Actor-ID"); v != "" {
		return v
	}
	return "system"
}
