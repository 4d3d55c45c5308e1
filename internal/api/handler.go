package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"clinicstock/m/domain"
	"clinicstock/m/internal/ledger"
	"clinicstock/m/internal/monitor"
	"clinicstock/m/internal/store"
)

type ctxKey string

const (
	ctxUserID ctxKey = "userID"
	ctxRole   ctxKey = "role"
)

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	inventory *store.InventoryRepo
	users     *store.UserRepo
	audits    *store.AuditRepo
	alerts    *monitor.Monitor
	secret    string
	origins   []string
	validate  *validator.Validate
}

// New constructs a Handler. alerts must be built over the same database.
func New(db *sqlx.DB, secret string, alerts *monitor.Monitor, origins []string) *Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Handler{
		inventory: store.NewInventoryRepo(db),
		users:     store.NewUserRepo(db),
		audits:    store.NewAuditRepo(db),
		alerts:    alerts,
		secret:    secret,
		origins:   origins,
		validate:  newValidator(),
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/reset-password", h.resetPassword)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Get("/me", h.me)

		pr.Route("/users", func(r chi.Router) {
			r.Use(h.adminOnly)
			r.Get("/", h.listUsers)
			r.Post("/", h.createUser)
			r.Put("/{id}", h.updateUser)
			r.Delete("/{id}", h.deleteUser)
		})

		pr.Route("/inventory/{kind}", func(r chi.Router) {
			r.Use(kindMiddleware)
			r.Get("/", h.listInventory)
			r.Post("/", h.createInventory)
			r.Get("/reconcile", h.reconcileInventory)
			r.Get("/{id}", h.getInventory)
			r.Put("/{id}", h.updateInventory)
			r.Delete("/{id}", h.deleteInventory)
			r.Post("/{id}/use", h.useInventory)
		})

		pr.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.notifications)
			r.Get("/expiring", h.expiringSoon)
			r.Get("/low-stock", h.lowStock)
			r.Post("/refresh", h.refreshNotifications)
		})

		pr.With(h.adminOnly).Get("/audit-logs", h.listAuditLogs)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// refreshAlerts re-evaluates the banners after a mutation. It outlives a
// cancelled request since the write has already committed. A failure is
// logged; the mutation itself already succeeded.
func (h *Handler) refreshAlerts(ctx context.Context) {
	if err := h.alerts.Refresh(context.WithoutCancel(ctx)); err != nil {
		log.Printf("alert refresh after mutation failed: %v", err)
	}
}

// record writes an audit entry for the current user. Audit failures are
// logged, not surfaced.
func (h *Handler) record(r *http.Request, action, entity, entityID, detail string) {
	entry := domain.AuditLog{Action: action, Entity: entity, EntityID: entityID, Detail: detail}
	if uid, ok := userIDFromContext(r); ok {
		entry.UserID = &uid
	}
	if _, err := h.audits.Record(r.Context(), entry); err != nil {
		log.Printf("audit %s %s/%s failed: %v", action, entity, entityID, err)
	}
}

// Helpers

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondStoreError maps repository and ledger errors to HTTP statuses.
// Unknown errors are logged and replaced by fallback.
func respondStoreError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		respondError(w, http.StatusConflict, "already exists")
	case errors.Is(err, ledger.ErrInvalidQuantity), errors.Is(err, ledger.ErrInsufficientStock):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("%s: %v", fallback, err)
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

func queryInt(r *http.Request, key string) (int, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	return n, true, err
}
