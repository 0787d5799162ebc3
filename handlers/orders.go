// handlers/orders.go
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"vinotracker/metrics"
	"vinotracker/models"
	"vinotracker/store"
)

type OrderHandler struct {
	store   *store.Store
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOrderHandler(s *store.Store, log *slog.Logger, m *metrics.Metrics) *OrderHandler {
	return &OrderHandler{store: s, log: log, metrics: m, now: time.Now}
}

type placeOrderReq struct {
	VisitID uuid.UUID          `json:"visit_id"`
	Items   []models.OrderItem `json:"items"`
}

// Place snapshots the active visit's order into an immutable record. Items
// may come in the body; when absent, the visit's persisted draft is used.
// Prices and totals are always re-derived from the catalog server-side.
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	repID, admin, ok := requestUser(w, r)
	if !ok {
		return
	}
	var req placeOrderReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.VisitID == uuid.Nil {
		unprocessable(w, "visit_id is required")
		return
	}
	v, err := h.store.GetVisit(r.Context(), req.VisitID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if !admin && v.RepID != repID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if !v.Open() {
		respondJSON(w, http.StatusConflict, errorResponse{Error: "visit is already ended"})
		return
	}
	items := req.Items
	if len(items) == 0 {
		items, err = v.DraftOrderItems()
		if err != nil {
			unprocessable(w, "stored draft is unreadable")
			return
		}
	}
	if len(items) == 0 {
		unprocessable(w, "order must contain at least one item")
		return
	}
	for i := range items {
		if err := items[i].Validate(); err != nil {
			unprocessable(w, err.Error())
			return
		}
		// Re-price every line from the live catalog.
		p, err := h.store.GetProduct(r.Context(), items[i].ProductID)
		if err != nil {
			respondError(w, h.log, err)
			return
		}
		items[i].ProductName = p.Name
		items[i].CatalogPrice = p.Price
		items[i].Recompute()
	}
	o, err := models.NewOrder(v.ClientID, v.RepID, v.ID, items)
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	if err := h.store.CreateOrder(r.Context(), o); err != nil {
		respondError(w, h.log, err)
		return
	}
	// The order is the durable record now; failing to clear the draft only
	// risks a stale draft on resume, so it is logged and not surfaced.
	if err := h.store.ClearVisitDraft(r.Context(), v.ID); err != nil {
		h.log.Warn("order placed but draft not cleared", "visit_id", v.ID, "err", err)
	}
	h.metrics.OrdersPlaced.Inc()
	h.log.Info("order placed", "order_id", o.ID, "visit_id", v.ID,
		"client_id", o.ClientID, "total", o.TotalAmount)
	respondJSON(w, http.StatusCreated, o)
}

// List returns orders newest first, optionally filtered by client_id. Reps
// see their own orders; admins see everyone's, or one rep's via rep_id.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, admin, ok := requestUser(w, r)
	if !ok {
		return
	}
	var f store.OrderFilter
	if raw := r.URL.Query().Get("client_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(w, "invalid client_id")
			return
		}
		f.ClientID = &id
	}
	if admin {
		if raw := r.URL.Query().Get("rep_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				badRequest(w, "invalid rep_id")
				return
			}
			f.RepID = &id
		}
	} else {
		f.RepID = &userID
	}
	orders, err := h.store.ListOrders(r.Context(), f)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// loadOrder fetches the order and enforces ownership for reps.
func (h *OrderHandler) loadOrder(w http.ResponseWriter, r *http.Request) (*models.Order, bool) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return nil, false
	}
	userID, admin, ok := requestUser(w, r)
	if !ok {
		return nil, false
	}
	o, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		respondError(w, h.log, err)
		return nil, false
	}
	if !admin && o.RepID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil, false
	}
	return o, true
}
