package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"clinicstock/m/domain"
	"clinicstock/m/internal/ledger"
)

// kindsFromQuery resolves the optional kind filter. An empty filter means
// every kind.
func kindsFromQuery(r *http.Request) ([]domain.Kind, bool) {
	raw := r.URL.Query().Get("kind")
	if strings.TrimSpace(raw) == "" {
		return domain.Kinds, true
	}
	kind, ok := parseKind(raw)
	if !ok {
		return nil, false
	}
	return []domain.Kind{kind}, true
}

func (h *Handler) snapshots(kinds []domain.Kind) (map[domain.Kind]domain.AlertSet, bool) {
	out := make(map[domain.Kind]domain.AlertSet, len(kinds))
	for _, kind := range kinds {
		set, ok := h.alerts.Snapshot(kind)
		if !ok {
			return nil, false
		}
		out[kind] = set
	}
	return out, true
}

func (h *Handler) notifications(w http.ResponseWriter, r *http.Request) {
	kinds, ok := kindsFromQuery(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown inventory kind")
		return
	}
	sets, ok := h.snapshots(kinds)
	if !ok {
		if err := h.alerts.Refresh(r.Context()); err != nil {
			respondStoreError(w, err, "unable to evaluate alerts")
			return
		}
		sets, _ = h.snapshots(kinds)
	}
	respondJSON(w, http.StatusOK, sets)
}

func (h *Handler) refreshNotifications(w http.ResponseWriter, r *http.Request) {
	if err := h.alerts.Refresh(r.Context()); err != nil {
		respondStoreError(w, err, "unable to evaluate alerts")
		return
	}
	sets, _ := h.snapshots(domain.Kinds)
	respondJSON(w, http.StatusOK, sets)
}

// itemsFor loads the lots for the kind filter on r.
func (h *Handler) itemsFor(w http.ResponseWriter, r *http.Request) (domain.Kind, []domain.InventoryItem, bool) {
	kinds, ok := kindsFromQuery(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown inventory kind")
		return "", nil, false
	}
	var (
		items []domain.InventoryItem
		err   error
		kind  domain.Kind
	)
	if len(kinds) == 1 {
		kind = kinds[0]
		items, err = h.inventory.List(r.Context(), kind, "")
	} else {
		items, err = h.inventory.All(r.Context())
	}
	if err != nil {
		respondStoreError(w, err, "unable to load inventory")
		return "", nil, false
	}
	return kind, items, true
}

type alertResponse struct {
	Kind        domain.Kind `json:"kind,omitempty"`
	AsOf        time.Time   `json:"as_of"`
	HorizonDays *int        `json:"horizon_days,omitempty"`
	Threshold   *int64      `json:"threshold,omitempty"`
	Items       []itemView  `json:"items"`
}

func (h *Handler) expiringSoon(w http.ResponseWriter, r *http.Request) {
	opts := h.alerts.Options()
	switch {
	case strings.EqualFold(r.URL.Query().Get("horizon"), "month"):
		opts.Horizon = ledger.CalendarMonth()
	default:
		days, set, err := queryInt(r, "days")
		if err != nil || days < 0 {
			respondError(w, http.StatusBadRequest, "days must be a non-negative integer")
			return
		}
		if set {
			opts.Horizon = ledger.Days(days)
		}
	}

	kind, items, ok := h.itemsFor(w, r)
	if !ok {
		return
	}
	asOf := h.alerts.Now()
	set := ledger.Evaluate(kind, items, asOf, opts)
	respondJSON(w, http.StatusOK, alertResponse{
		Kind:        kind,
		AsOf:        asOf,
		HorizonDays: &set.HorizonDays,
		Items:       h.views(set.ExpiringSoon),
	})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	opts := h.alerts.Options()
	if raw := strings.TrimSpace(r.URL.Query().Get("threshold")); raw != "" {
		threshold, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || threshold <= 0 {
			respondError(w, http.StatusBadRequest, "threshold must be a positive integer")
			return
		}
		opts.LowStockThreshold = threshold
	}

	kind, items, ok := h.itemsFor(w, r)
	if !ok {
		return
	}
	asOf := h.alerts.Now()
	set := ledger.Evaluate(kind, items, asOf, opts)
	respondJSON(w, http.StatusOK, alertResponse{
		Kind:      kind,
		AsOf:      asOf,
		Threshold: &set.Threshold,
		Items:     h.views(set.LowStock),
	})
}
