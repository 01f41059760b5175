package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/conamormarket-lgtm/sistema-sub001/internal/inventory"
	"github.com/conamormarket-lgtm/sistema-sub001/internal/platform/httpx"
)

// Handler manages order HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{orderID}", h.get)
	r.Get("/{orderID}/balance", h.balance)
	r.Post("/{orderID}/payments", h.recordPayment)
	r.Put("/{orderID}/designer", h.assignDesigner)
	r.Put("/{orderID}/image", h.setImage)
	r.Put("/{orderID}/sizes", h.setSizes)
	r.Put("/{orderID}/note", h.setNote)
	r.Put("/{orderID}/operator", h.assignOperator)
	r.Put("/{orderID}/deliverer", h.assignDeliverer)
	r.Put("/{orderID}/stage-state", h.setStageState)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := h.service.List(r.Context(), ListFilter{
		Status:       StageKey(r.URL.Query().Get("status")),
		OverallState: NormalizeOverallState(r.URL.Query().Get("overall_state")),
		Limit:        limit,
	})
	if err != nil {
		h.logger.Error("list orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.Create(r.Context(), in, actorID(r))
	if err != nil {
		h.respondErr(w, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.respondErr(w, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.respondErr(w, "get order", err)
		return
	}
	balance := h.service.Balance(order)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"order_id": order.ID,
		"balance":  balance,
		"cleared":  balance <= 0,
	})
}

type paymentRequest struct {
	Installment int     `json:"installment" validate:"required,min=1"`
	Amount      float64 `json:"amount" validate:"min=0"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.RecordPayment(r.Context(), chi.URLParam(r, "orderID"), req.Installment, req.Amount, actorID(r))
	if err != nil {
		h.respondErr(w, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

type fieldRequest struct {
	Value string `json:"value"`
}

func (h *Handler) assignDesigner(w http.ResponseWriter, r *http.Request) {
	h.fieldUpdate(w, r, "assign designer", func(id, value, actor string) (*Order, error) {
		return h.service.AssignDesigner(r.Context(), id, value, actor)
	})
}

func (h *Handler) setImage(w http.ResponseWriter, r *http.Request) {
	h.fieldUpdate(w, r, "set image", func(id, value, actor string) (*Order, error) {
		return h.service.SetImageURL(r.Context(), id, value, actor)
	})
}

func (h *Handler) setNote(w http.ResponseWriter, r *http.Request) {
	h.fieldUpdate(w, r, "set note", func(id, value, actor string) (*Order, error) {
		return h.service.SetDesignNote(r.Context(), id, value, actor)
	})
}

func (h *Handler) assignDeliverer(w http.ResponseWriter, r *http.Request) {
	h.fieldUpdate(w, r, "assign deliverer", func(id, value, actor string) (*Order, error) {
		return h.service.AssignDeliverer(r.Context(), id, value, actor)
	})
}

type sizesRequest struct {
	SizeSpec string               `json:"size_spec"`
	Garments []inventory.LineItem `json:"garments"`
}

func (h *Handler) setSizes(w http.ResponseWriter, r *http.Request) {
	var req sizesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	order, err := h.service.SetSizes(r.Context(), chi.URLParam(r, "orderID"), req.SizeSpec, req.Garments, actorID(r))
	if err != nil {
		h.respondErr(w, "set sizes", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

type stageFieldRequest struct {
	Stage string `json:"stage" validate:"required"`
	Value string `json:"value" validate:"required"`
}

func (h *Handler) assignOperator(w http.ResponseWriter, r *http.Request) {
	var req stageFieldRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.AssignOperator(r.Context(), chi.URLParam(r, "orderID"), StageKey(req.Stage), req.Value, actorID(r))
	if err != nil {
		h.respondErr(w, "assign operator", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) setStageState(w http.ResponseWriter, r *http.Request) {
	var req stageFieldRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.SetStageState(r.Context(), chi.URLParam(r, "orderID"), StageKey(req.Stage), req.Value, actorID(r))
	if err != nil {
		h.respondErr(w, "set stage state", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) fieldUpdate(w http.ResponseWriter, r *http.Request, op string, fn func(id, value, actor string) (*Order, error)) {
	var req fieldRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	order, err := fn(chi.URLParam(r, "orderID"), req.Value, actorID(r))
	if err != nil {
		h.respondErr(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidField), errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidInstallment):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

// actorID extracts the acting user from the request header; the engine
// records it on history and audit entries.
func actorID(r *http.Request) string {
	if v := r.Header.Get("X-Actor-ID"); v != "" {
		return v
	}
	return "system"
}
