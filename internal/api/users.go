package api

import (
	"net/http"
	"strconv"
	"strings"

	"clinicstock/m/domain"
)

type updateUserRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Role     string `json:"role" validate:"required,oneof=admin staff"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		respondStoreError(w, err, "unable to list users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	user, ok := h.createUserFrom(w, r, req, false)
	if !ok {
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	if self, _ := userIDFromContext(r); self == id && req.Role != domain.RoleAdmin {
		respondError(w, http.StatusBadRequest, "cannot demote yourself")
		return
	}

	user, err := h.users.Update(r.Context(), domain.User{ID: id, Username: req.Username, Email: req.Email, Role: req.Role})
	if err != nil {
		respondStoreError(w, err, "unable to update user")
		return
	}
	h.record(r, "update", "user", strconv.FormatInt(id, 10), user.Role)
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if self, _ := userIDFromContext(r); self == id {
		respondError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		respondStoreError(w, err, "unable to delete user")
		return
	}
	h.record(r, "delete", "user", strconv.FormatInt(id, 10), "")
	w.WriteHeader(http.StatusNoContent)
}
