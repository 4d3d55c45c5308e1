package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"clinicstock/m/domain"
	"clinicstock/m/internal/store"
)

const tokenTTL = 24 * time.Hour

type authClaims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type userRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=admin staff"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type resetPasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

func (h *Handler) generateToken(user domain.User) (string, error) {
	now := time.Now()
	claims := authClaims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

// parseToken validates the bearer token on r, if any.
func (h *Handler) parseToken(r *http.Request) (*authClaims, error) {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return nil, errors.New("missing bearer token")
	}
	tokenString := strings.TrimSpace(header[len("Bearer "):])
	token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(h.secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	claims, ok := token.Claims.(*authClaims)
	if !ok || claims.UserID <= 0 {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.parseToken(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.requireRole(w, r, domain.RoleAdmin) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	current, ok := r.Context().Value(ctxRole).(string)
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing role")
		return false
	}
	for _, allowedRole := range allowed {
		if current == allowedRole {
			return true
		}
	}
	respondError(w, http.StatusForbidden, "insufficient permissions")
	return false
}

func userIDFromContext(r *http.Request) (int64, bool) {
	id, ok := r.Context().Value(ctxUserID).(int64)
	return id, ok
}

// register is open while no user exists; the first account becomes admin.
// After that only an admin may register new users.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	count, err := h.users.Count(r.Context())
	if err != nil {
		respondStoreError(w, err, "unable to register user")
		return
	}
	if count > 0 {
		claims, err := h.parseToken(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if claims.Role != domain.RoleAdmin {
			respondError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		r = r.WithContext(context.WithValue(ctx, ctxRole, claims.Role))
	}

	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	bootstrap := count == 0
	if bootstrap {
		req.Role = domain.RoleAdmin
	}
	user, ok := h.createUserFrom(w, r, req, bootstrap)
	if !ok {
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// createUserFrom validates req, hashes the password and stores the user.
// With bootstrap set the insert only succeeds while no user exists. It
// writes the error response itself and reports whether it succeeded.
func (h *Handler) createUserFrom(w http.ResponseWriter, r *http.Request, req userRequest, bootstrap bool) (domain.User, bool) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return domain.User{}, false
	}
	if req.Role == "" {
		req.Role = domain.RoleStaff
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return domain.User{}, false
	}
	create := h.users.Create
	if bootstrap {
		create = h.users.CreateFirst
	}
	user, err := create(r.Context(), domain.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashed),
		Role:     req.Role,
	})
	if err != nil {
		if errors.Is(err, store.ErrUsersExist) {
			respondError(w, http.StatusUnauthorized, "registration requires an admin token")
			return domain.User{}, false
		}
		if errors.Is(err, store.ErrConflict) {
			respondError(w, http.StatusConflict, "username or email already in use")
			return domain.User{}, false
		}
		respondStoreError(w, err, "unable to create user")
		return domain.User{}, false
	}
	h.record(r, "create", "user", strconv.FormatInt(user.ID, 10), user.Username)
	return user, true
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	user, err := h.users.ByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		respondStoreError(w, err, "unable to login")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.generateToken(user)
	if err != nil {
		log.Printf("sign token for user %d: %v", user.ID, err)
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}
	user.Password = ""
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	userID, _ := userIDFromContext(r)
	current, err := h.users.ByID(r.Context(), userID)
	if err != nil {
		respondStoreError(w, err, "unable to reset password")
		return
	}
	withHash, err := h.users.ByEmail(r.Context(), current.Email)
	if err != nil {
		respondStoreError(w, err, "unable to reset password")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(withHash.Password), []byte(req.CurrentPassword)) != nil {
		respondError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}
	if err := h.users.SetPassword(r.Context(), userID, string(hashed)); err != nil {
		respondStoreError(w, err, "unable to reset password")
		return
	}
	h.record(r, "reset_password", "user", strconv.FormatInt(userID, 10), "")
	respondJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r)
	user, err := h.users.ByID(r.Context(), userID)
	if err != nil {
		respondStoreError(w, err, "unable to load user")
		return
	}
	respondJSON(w, http.StatusOK, user)
}
