package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"clinicstock/m/domain"
	"clinicstock/m/internal/ledger"
)

const ctxKind ctxKey = "kind"

// parseKind accepts the plural path segment as well as the singular kind.
func parseKind(s string) (domain.Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vaccines", "vaccine":
		return domain.KindVaccine, true
	case "contraceptives", "contraceptive":
		return domain.KindContraceptive, true
	}
	return "", false
}

func kindMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind, ok := parseKind(chi.URLParam(r, "kind"))
		if !ok {
			respondError(w, http.StatusNotFound, "unknown inventory kind")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKind, kind)))
	})
}

func kindFrom(r *http.Request) domain.Kind {
	kind, _ := r.Context().Value(ctxKind).(domain.Kind)
	return kind
}

// itemView is a lot as returned to the dashboard.
type itemView struct {
	domain.InventoryItem
	DaysUntilExpiration *int `json:"days_until_expiration"`
}

func (h *Handler) view(item domain.InventoryItem) itemView {
	v := itemView{InventoryItem: item}
	if days, ok := ledger.DaysUntilExpiration(item.ExpirationDate, h.alerts.Now()); ok {
		v.DaysUntilExpiration = &days
	}
	return v
}

func (h *Handler) views(items []domain.InventoryItem) []itemView {
	out := make([]itemView, 0, len(items))
	for _, it := range items {
		out = append(out, h.view(it))
	}
	return out
}

type inventoryInput struct {
	ProductName      string `json:"product_name" validate:"required,max=200"`
	BeginningBalance int64  `json:"beginning_balance" validate:"gte=0"`
	Consumption      int64  `json:"consumption" validate:"gte=0"`
	StockTransferIn  int64  `json:"stock_transfer_in" validate:"gte=0"`
	StockTransferOut int64  `json:"stock_transfer_out" validate:"gte=0"`
}

// decodeItem reads a lenient inventory record and checks it. Unknown keys
// are tolerated since dashboards echo back whole rows.
func (h *Handler) decodeItem(w http.ResponseWriter, r *http.Request) (domain.InventoryItem, bool) {
	var rec ledger.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return domain.InventoryItem{}, false
	}
	item := rec.Item(kindFrom(r))
	item.ProductName = strings.TrimSpace(item.ProductName)

	input := inventoryInput{
		ProductName:      item.ProductName,
		BeginningBalance: item.BeginningBalance,
		Consumption:      item.Consumption,
		StockTransferIn:  item.StockTransferIn,
		StockTransferOut: item.StockTransferOut,
	}
	if err := h.validate.Struct(input); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return domain.InventoryItem{}, false
	}
	for field, value := range map[string]*string{"expiration_date": item.ExpirationDate, "date_received": item.DateReceived} {
		if value == nil {
			continue
		}
		if _, ok := ledger.ParseDate(*value, nil); !ok {
			respondError(w, http.StatusBadRequest, field+" must be a date (YYYY-MM-DD)")
			return domain.InventoryItem{}, false
		}
	}
	return item, true
}

func (h *Handler) listInventory(w http.ResponseWriter, r *http.Request) {
	items, err := h.inventory.List(r.Context(), kindFrom(r), r.URL.Query().Get("query"))
	if err != nil {
		respondStoreError(w, err, "unable to list inventory")
		return
	}
	respondJSON(w, http.StatusOK, h.views(items))
}

func (h *Handler) getInventory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	item, err := h.inventory.Get(r.Context(), kindFrom(r), id)
	if err != nil {
		respondStoreError(w, err, "unable to load item")
		return
	}
	respondJSON(w, http.StatusOK, h.view(item))
}

func (h *Handler) createInventory(w http.ResponseWriter, r *http.Request) {
	item, ok := h.decodeItem(w, r)
	if !ok {
		return
	}
	item.ID = 0
	created, err := h.inventory.Create(r.Context(), item)
	if err != nil {
		respondStoreError(w, err, "unable to create item")
		return
	}
	h.record(r, "create", string(created.Kind), strconv.FormatInt(created.ID, 10), created.ProductName)
	h.refreshAlerts(r.Context())
	respondJSON(w, http.StatusCreated, h.view(created))
}

func (h *Handler) updateInventory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	item, ok := h.decodeItem(w, r)
	if !ok {
		return
	}
	item.ID = id
	updated, err := h.inventory.Update(r.Context(), item)
	if err != nil {
		respondStoreError(w, err, "unable to update item")
		return
	}
	h.record(r, "update", string(updated.Kind), strconv.FormatInt(id, 10), updated.ProductName)
	h.refreshAlerts(r.Context())
	respondJSON(w, http.StatusOK, h.view(updated))
}

func (h *Handler) deleteInventory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	kind := kindFrom(r)
	if err := h.inventory.Delete(r.Context(), kind, id); err != nil {
		respondStoreError(w, err, "unable to delete item")
		return
	}
	h.record(r, "delete", string(kind), strconv.FormatInt(id, 10), "")
	h.refreshAlerts(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type useRequest struct {
	Quantity json.RawMessage `json:"quantity"`
}

// parseQuantity accepts a JSON number or numeric string holding a whole
// number. Fractions and non-numbers are rejected; sign checks are left to
// the ledger.
func parseQuantity(raw json.RawMessage) (int64, bool) {
	s := strings.TrimSpace(string(raw))
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func (h *Handler) useInventory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req useRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	quantity, ok := parseQuantity(req.Quantity)
	if !ok {
		respondError(w, http.StatusUnprocessableEntity, ledger.ErrInvalidQuantity.Error())
		return
	}

	kind := kindFrom(r)
	item, err := h.inventory.Consume(r.Context(), kind, id, quantity)
	if err != nil {
		respondStoreError(w, err, "unable to record usage")
		return
	}
	h.record(r, "use", string(kind), strconv.FormatInt(id, 10), strconv.FormatInt(quantity, 10))
	h.refreshAlerts(r.Context())
	respondJSON(w, http.StatusOK, h.view(item))
}

func (h *Handler) reconcileInventory(w http.ResponseWriter, r *http.Request) {
	kind := kindFrom(r)
	items, err := h.inventory.List(r.Context(), kind, "")
	if err != nil {
		respondStoreError(w, err, "unable to reconcile inventory")
		return
	}
	discrepancies := ledger.Reconcile(items)
	if discrepancies == nil {
		discrepancies = []ledger.Discrepancy{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"kind":          kind,
		"checked":       len(items),
		"discrepancies": discrepancies,
	})
}
