package inventory

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"github.com/conamormarket-lgtm/sistema-sub001/internal/platform/httpx"
)

// Handler manages inventory HTTP endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	group   singleflight.Group
	onHold  func() // optional hook, enqueues the hold-recheck sweep after intake
}

// NewHandler creates a new handler. afterIntake runs after a successful
// restock; the server uses it to enqueue the on-hold order recheck.
func NewHandler(logger *slog.Logger, service *Service, afterIntake func()) *Handler {
	return &Handler{logger: logger, service: service, onHold: afterIntake}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{inventoryID}/items", h.list)
	r.Post("/{inventoryID}/intake", h.intake)
	r.Post("/{inventoryID}/verify", h.verify)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), chi.URLParam(r, "inventoryID"))
	if err != nil {
		h.logger.Error("list inventory", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

type intakeRequest struct {
	GarmentType string  `json:"garment_type"`
	Color       string  `json:"color"`
	Size        string  `json:"size"`
	Qty         int     `json:"qty"`
	UnitCost    float64 `json:"unit_cost"`
	Note        string  `json:"note"`
	ActorID     string  `json:"actor_id"`
}

func (h *Handler) intake(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if req.GarmentType == "" || req.Color == "" || req.Size == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "garment_type, color and size are required")
		return
	}
	item, err := h.service.PostIntake(r.Context(), IntakeInput{
		InventoryID: chi.URLParam(r, "inventoryID"),
		GarmentType: req.GarmentType,
		Color:       req.Color,
		Size:        req.Size,
		Qty:         req.Qty,
		UnitCost:    req.UnitCost,
		Note:        req.Note,
		ActorID:     req.ActorID,
	})
	if err != nil {
		h.logger.Error("post intake", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if h.onHold != nil {
		h.onHold()
	}
	httpx.JSON(w, http.StatusCreated, item)
}

type verifyRequest struct {
	Lines []LineItem `json:"lines"`
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	inventoryID := chi.URLParam(r, "inventoryID")
	// Table views poll this endpoint per row; collapse identical checks.
	key := fmt.Sprintf("%s|%v", inventoryID, req.Lines)
	v, err, _ := h.group.Do(key, func() (any, error) {
		return h.service.Verify(r.Context(), req.Lines, inventoryID)
	})
	if err != nil {
		h.logger.Error("verify stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}
