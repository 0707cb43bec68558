package quotes

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atelier-erp/atelier-erp/internal/platform/httpx"
)

// Handler exposes quote endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a quote handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers quote routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Post("/{id}/transition", h.Transition)
	r.Delete("/{id}", h.Delete)
}

type createQuoteRequest struct {
	ProjectID  int64  `json:"project_id" validate:"required,gt=0"`
	AmountHT   string `json:"amount_ht" validate:"required"`
	ValidUntil string `json:"valid_until" validate:"required"`
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
}

type quoteResponse struct {
	ID         int64  `json:"id"`
	Number     string `json:"number"`
	ProjectID  int64  `json:"project_id"`
	AmountHT   string `json:"amount_ht"`
	ValidUntil string `json:"valid_until"`
	Status     string `json:"status"`
}

func toResponse(q Quote) quoteResponse {
	return quoteResponse{
		ID:         q.ID,
		Number:     q.Number,
		ProjectID:  q.ProjectID,
		AmountHT:   q.AmountHT.String(),
		ValidUntil: q.ValidUntil.Format("2006-01-02"),
		Status:     string(q.Status),
	}
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
	out := make([]quoteResponse, 0, len(items))
	for _, q := range items {
		out = append(out, toResponse(q))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	validUntil, err := time.Parse("2006-01-02", req.ValidUntil)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "valid_until must be YYYY-MM-DD")
		return
	}
	q, err := h.service.Create(r.Context(), CreateInput{
		ProjectID:  req.ProjectID,
		AmountHT:   req.AmountHT,
		ValidUntil: validUntil,
	})
	if err != nil {
		h.logger.Error("create quote", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(q))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r)
	if !ok {
		return
	}
	q, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(q))
}

func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	q, err := h.service.Transition(r.Context(), id, Status(req.Status))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(q))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) paramID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}
