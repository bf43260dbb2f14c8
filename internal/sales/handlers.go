package sales

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/invoice"
)

// Handler exposes the settlement endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Create handles POST /api/v1/sales.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "sales service not configured", nil)
		return
	}
	actorID, ok := common.ActorID(r.Context())
	if !ok || actorID == "" {
		common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "missing or invalid token", nil)
		return
	}
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "malformed request body", nil)
		return
	}
	sale, err := h.service.CreateInvoice(r.Context(), actorID, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": sale})
}

// Preview handles POST /api/v1/sales/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "sales service not configured", nil)
		return
	}
	var in PreviewInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "malformed request body", nil)
		return
	}
	result, err := h.service.Preview(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Get handles GET /api/v1/sales/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "sales service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid sale id", nil)
		return
	}
	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": sale})
}

// List handles GET /api/v1/sales.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "sales service not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	items, total, err := h.service.ListSales(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var insufficient *InsufficientStockError
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.WriteError(w, common.ValidationError(err.Error(), nil))
	case errors.As(err, &insufficient):
		common.WriteError(w, common.ConflictError(common.CodeInsufficientStock, insufficient.Error(), err, map[string]any{
			"productId": insufficient.ProductID.String(),
			"requested": insufficient.Requested,
			"available": insufficient.Available,
		}))
	case errors.Is(err, ErrProductNotFound):
		common.WriteError(w, common.NotFoundError(err.Error(), err))
	case errors.Is(err, ErrSaleNotFound):
		common.WriteError(w, common.NotFoundError("sale not found", err))
	case errors.Is(err, invoice.ErrAllocationExhausted):
		common.WriteError(w, common.RetryableError(err.Error(), err))
	default:
		common.WriteError(w, err)
	}
}
