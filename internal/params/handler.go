package params

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atelier-erp/atelier-erp/internal/platform/httpx"
)

// Handler exposes organisation parameter endpoints.
type Handler struct {
	store *Store
}

// NewHandler constructs a parameter handler.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// MountRoutes registers parameter routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.All)
	r.Get("/{key}", h.Show)
	r.Put("/{key}", h.Set)
	r.Delete("/{key}", h.Delete)
}

func (h *Handler) All(w http.ResponseWriter, r *http.Request) {
	values, err := h.store.All(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, values)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	value, err := h.store.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"value": value})
}

func (h *Handler) Set(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value string `json:"value"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.store.Set(r.Context(), chi.URLParam(r, "key"), body.Value); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
