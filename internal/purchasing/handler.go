package purchasing

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atelier-erp/atelier-erp/internal/platform/httpx"
)

// RenderQueue hands render work to a background worker. A nil queue makes
// the render endpoints produce the document inline.
type RenderQueue interface {
	EnqueueRenderOrder(ctx context.Context, orderID int64) error
	EnqueueRenderProject(ctx context.Context, projectID int64) error
}

// Handler exposes purchase order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	queue    RenderQueue
	validate *validator.Validate
}

// NewHandler constructs a purchase order handler.
func NewHandler(logger *slog.Logger, service *Service, queue RenderQueue) *Handler {
	return &Handler{logger: logger, service: service, queue: queue, validate: validator.New()}
}

// MountRoutes registers purchase order routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/render", h.RenderProject)
	r.Get("/categories", h.Categories)
	r.Get("/suppliers", h.Suppliers)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Post("/{id}/transition", h.Transition)
	r.Post("/{id}/render", h.Render)
	r.Delete("/{id}", h.Delete)
}

type lineRequest struct {
	Designation string `json:"designation" validate:"required"`
	Quantity    string `json:"quantity" validate:"required"`
	UnitPrice   string `json:"unit_price"`
}

type createOrderRequest struct {
	ProjectID    int64         `json:"project_id" validate:"required,gt=0"`
	SupplierID   int64         `json:"supplier_id" validate:"required,gt=0"`
	CategoryID   int64         `json:"category_id" validate:"required,gt=0"`
	Direction    string        `json:"direction" validate:"required,oneof=OUTGOING INCOMING"`
	AmountHT     string        `json:"amount_ht"`
	DeliveryMode string        `json:"delivery_mode" validate:"omitempty,oneof=NONE WORKSHOP SITE"`
	SiteAddress  string        `json:"site_address"`
	Comment      string        `json:"comment"`
	Lines        []lineRequest `json:"lines" validate:"dive"`
}

type transitionOrderRequest struct {
	Status string `json:"status" validate:"required"`
}

type deleteOrderRequest struct {
	SupervisorCode string `json:"supervisor_code"`
}

type lineResponse struct {
	ID          int64  `json:"id"`
	Designation string `json:"designation"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	LineAmount  string `json:"line_amount"`
}

type orderResponse struct {
	ID             int64          `json:"id"`
	Number         string         `json:"number"`
	ProjectID      int64          `json:"project_id"`
	SupplierID     int64          `json:"supplier_id"`
	CategoryID     int64          `json:"category_id"`
	Direction      string         `json:"direction"`
	Status         string         `json:"status"`
	AmountHT       string         `json:"amount_ht"`
	OverheadAmount string         `json:"overhead_amount"`
	ReceivedAt     *string        `json:"received_at,omitempty"`
	DeliveryMode   string         `json:"delivery_mode"`
	SiteAddress    string         `json:"site_address,omitempty"`
	Comment        string         `json:"comment,omitempty"`
	Lines          []lineResponse `json:"lines"`
}

func toOrderResponse(po PurchaseOrder) orderResponse {
	resp := orderResponse{
		ID:             po.ID,
		Number:         po.Number,
		ProjectID:      po.ProjectID,
		SupplierID:     po.SupplierID,
		CategoryID:     po.CategoryID,
		Direction:      string(po.Direction),
		Status:         string(po.Status),
		AmountHT:       po.AmountHT.String(),
		OverheadAmount: po.OverheadAmount.String(),
		DeliveryMode:   string(po.DeliveryMode),
		SiteAddress:    po.SiteAddress,
		Comment:        po.Comment,
		Lines:          make([]lineResponse, 0, len(po.Lines)),
	}
	if po.ReceivedAt != nil {
		at := po.ReceivedAt.Format(time.RFC3339)
		resp.ReceivedAt = &at
	}
	for _, l := range po.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ID:          l.ID,
			Designation: l.Designation,
			Quantity:    l.Quantity.String(),
			UnitPrice:   l.UnitPrice.String(),
			LineAmount:  l.LineAmount.String(),
		})
	}
	return resp
}

func toLineInputs(reqs []lineRequest) []LineInput {
	out := make([]LineInput, 0, len(reqs))
	for _, l := range reqs {
		out = append(out, LineInput{Designation: l.Designation, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return out
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseInt(r.URL.Query().Get("project_id"), 10, 64)
	if err != nil || projectID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "project_id query parameter required")
		return
	}
	items, err := h.service.ListByProject(r.Context(), projectID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]orderResponse, 0, len(items))
	for _, po := range items {
		out = append(out, toOrderResponse(po))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	po, err := h.service.Create(r.Context(), CreateInput{
		ProjectID:    req.ProjectID,
		SupplierID:   req.SupplierID,
		CategoryID:   req.CategoryID,
		Direction:    Direction(req.Direction),
		AmountHT:     req.AmountHT,
		DeliveryMode: DeliveryMode(req.DeliveryMode),
		SiteAddress:  req.SiteAddress,
		Comment:      req.Comment,
		Lines:        toLineInputs(req.Lines),
	})
	if err != nil {
		h.logger.Error("create purchase order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toOrderResponse(po))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r)
	if !ok {
		return
	}
	po, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(po))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r)
	if !ok {
		return
	}
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.StructExcept(req, "ProjectID"); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	po, err := h.service.Update(r.Context(), id, UpdateInput{
		SupplierID:   req.SupplierID,
		CategoryID:   req.CategoryID,
		Direction:    Direction(req.Direction),
		AmountHT:     req.AmountHT,
		DeliveryMode: DeliveryMode(req.DeliveryMode),
		SiteAddress:  req.SiteAddress,
		Comment:      req.Comment,
		Lines:        toLineInputs(req.Lines),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(po))
}

func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r)
	if !ok {
		return
	}
	var req transitionOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	po, err := h.service.Transition(r.Context(), id, Status(req.Status))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(po))
}

// Render produces the order document. With a worker queue configured the
// layout work happens in the background; a queue outage falls back to an
// inline render so the endpoint keeps working.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r)
	if !ok {
		return
	}
	if h.queue != nil {
		po, err := h.service.Get(r.Context(), id)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		if err := h.queue.EnqueueRenderOrder(r.Context(), id); err != nil {
			h.logger.Warn("enqueue render, rendering inline", slog.Int64("order_id", id), slog.Any("error", err))
		} else {
			httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "queued", "artifact": ArtifactName(po.Number)})
			return
		}
	}
	name, err := h.service.RenderOrder(r.Context(), id, time.Time{})
	if err != nil {
		h.logger.Error("render purchase order", slog.Int64("order_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"artifact": name})
}

// RenderProject renders every order of a project, queued when possible.
func (h *Handler) RenderProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseInt(r.URL.Query().Get("project_id"), 10, 64)
	if err != nil || projectID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "project_id query parameter required")
		return
	}
	if h.queue != nil {
		if err := h.queue.EnqueueRenderProject(r.Context(), projectID); err != nil {
			h.logger.Warn("enqueue project render, rendering inline", slog.Int64("project_id", projectID), slog.Any("error", err))
		} else {
			httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
			return
		}
	}
	names, err := h.service.RenderProjectOrders(r.Context(), projectID)
	if err != nil {
		h.logger.Error("render project orders", slog.Int64("project_id", projectID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"artifacts": names})
}

// Delete removes an order. The supervisor code travels in the body and is
// only required for validated orders.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r)
	if !ok {
		return
	}
	var req deleteOrderRequest
	// An empty body means no credential was presented.
	_ = httpx.DecodeJSON(r, &req)
	if err := h.service.Delete(r.Context(), id, req.SupervisorCode); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListCategories(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	type categoryResponse struct {
		ID              int64  `json:"id"`
		Code            string `json:"code"`
		Label           string `json:"label"`
		OverheadPercent string `json:"overhead_percent"`
	}
	out := make([]categoryResponse, 0, len(items))
	for _, c := range items {
		out = append(out, categoryResponse{ID: c.ID, Code: c.Code, Label: c.Label, OverheadPercent: c.OverheadPercent.String()})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Suppliers(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListSuppliers(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	type supplierResponse struct {
		ID            int64  `json:"id"`
		Name          string `json:"name"`
		Address       string `json:"address"`
		Phone         string `json:"phone"`
		Email         string `json:"email"`
		TaxID         string `json:"tax_id"`
		AccountHolder bool   `json:"account_holder"`
	}
	out := make([]supplierResponse, 0, len(items))
	for _, s := range items {
		out = append(out, supplierResponse{ID: s.ID, Name: s.Name, Address: s.Address, Phone: s.Phone, Email: s.Email, TaxID: s.TaxID, AccountHolder: s.AccountHolder})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) paramID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}
