// handlers/products.go
package handlers

import (
	"log/slog"
	"net/http"

	"vinotracker/models"
	"vinotracker/store"
)

type ProductHandler struct {
	store *store.Store
	log   *slog.Logger
}

func NewProductHandler(s *store.Store, log *slog.Logger) *ProductHandler {
	return &ProductHandler{store: s, log: log}
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListProducts(r.Context())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var p models.Product
	if !decodeJSON(w, r, &p) {
		return
	}
	if err := h.store.CreateProduct(r.Context(), &p); err != nil {
		respondError(w, h.log, err)
		return
	}
	h.log.Info("product created", "product_id", p.ID, "name", p.Name)
	respondJSON(w, http.StatusCreated, p)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var p models.Product
	if !decodeJSON(w, r, &p) {
		return
	}
	p.ID = id
	if err := h.store.UpdateProduct(r.Context(), &p); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteProduct(r.Context(), id); err != nil {
		respondError(w, h.log, err)
		return
	}
	h.log.Info("product deleted", "product_id", id)
	respondJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}
