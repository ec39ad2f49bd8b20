package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"autodealers-backend/internal/auth"
	"autodealers-backend/internal/middleware"
	"autodealers-backend/internal/models"
	"autodealers-backend/internal/transport"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Status   string `json:"status"`
	Role     string `json:"role"`
	TenantID string `json:"tenantId,omitempty"`
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Warn("login: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := s.Val.Struct(req); err != nil {
		log.Warn("login: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", validationDetails(s.Val.ValidationErrors(err)))
		return
	}

	if s.Cfg.JWTSecret == "" {
		log.Warn("login: not configured")
		transport.WriteError(w, http.StatusServiceUnavailable, "auth not configured", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var user models.User
	err := s.Cols.Users.FindOne(ctx, bson.M{"username": strings.ToLower(strings.TrimSpace(req.Username))}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Warn("login: unknown user", slog.String("username", req.Username))
			transport.WriteError(w, http.StatusUnauthorized, "invalid credentials", nil)
			return
		}
		log.Error("login: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	if !user.Active {
		log.Warn("login: inactive account", slog.String("username", req.Username))
		transport.WriteError(w, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}
	if err := auth.ComparePassword(user.PasswordHash, req.Password); err != nil {
		log.Warn("login: invalid credentials", slog.String("username", req.Username))
		transport.WriteError(w, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	accessToken, err := s.Auth.NewAccessToken(user.Role, user.TenantID)
	if err != nil {
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}
	refreshToken, err := s.Auth.NewRefreshToken(user.Role, user.TenantID)
	if err != nil {
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}

	setAuthCookies(w, accessToken, refreshToken, s.Auth.AccessTTL, s.Auth.RefreshTTL, s.Cfg.CookieSecure)
	log.Info("login: ok", slog.String("username", user.Username), slog.String("role", user.Role))
	transport.WriteJSON(w, http.StatusOK, LoginResponse{Status: "ok", Role: user.Role, TenantID: user.TenantID})
}

func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	if s.Cfg.JWTSecret == "" {
		transport.WriteError(w, http.StatusServiceUnavailable, "auth not configured", nil)
		return
	}

	refreshCookie, err := r.Cookie(middleware.RefreshCookie)
	if err != nil || refreshCookie.Value == "" {
		log.Warn("refresh: missing refresh token")
		transport.WriteError(w, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}

	claims, err := s.Auth.Parse(refreshCookie.Value)
	if err != nil || !models.IsValidRole(claims.Role) {
		log.Warn("refresh: invalid refresh token")
		transport.WriteError(w, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}

	accessToken, err := s.Auth.NewAccessToken(claims.Role, claims.TenantID)
	if err != nil {
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}
	refreshToken, err := s.Auth.NewRefreshToken(claims.Role, claims.TenantID)
	if err != nil {
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}

	setAuthCookies(w, accessToken, refreshToken, s.Auth.AccessTTL, s.Auth.RefreshTTL, s.Cfg.CookieSecure)
	log.Info("refresh: ok", slog.String("role", claims.Role))
	transport.WriteJSON(w, http.StatusOK, LoginResponse{Status: "ok", Role: claims.Role, TenantID: claims.TenantID})
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	clearAuthCookies(w, s.Cfg.CookieSecure)
	log.Info("logout: ok")
	transport.WriteJSON(w, http.StatusOK, LoginResponse{Status: "ok"})
}

type RegisterDealerRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	TenantID string `json:"tenantId" validate:"omitempty,min=3"`
}

// RegisterDealer onboards a new dealership: a fresh tenant ID and its dealer
// account. Platform admin only; membership starts on the free tier by
// default.
func (s *Server) RegisterDealer(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req RegisterDealerRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Warn("register dealer: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := s.Val.Struct(req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "validation error", validationDetails(s.Val.ValidationErrors(err)))
		return
	}

	tenantID := strings.TrimSpace(req.TenantID)
	if tenantID == "" {
		tenantID = primitive.NewObjectID().Hex()
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, "weak password", nil)
		return
	}

	now := time.Now().UTC()
	user := models.User{
		ID:           primitive.NewObjectID().Hex(),
		TenantID:     tenantID,
		Username:     strings.ToLower(strings.TrimSpace(req.Username)),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		Role:         models.RoleDealer,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := s.Cols.Users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.Warn("register dealer: username taken", slog.String("username", user.Username))
			transport.WriteError(w, http.StatusConflict, "username already exists", nil)
			return
		}
		log.Error("register dealer: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("register dealer: ok",
		slog.String("username", user.Username),
		slog.String("tenant_id", tenantID),
	)
	transport.WriteJSON(w, http.StatusCreated, map[string]string{
		"id":       user.ID,
		"tenantId": tenantID,
	})
}

type BootstrapAdminRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=8"`
	SetupKey string `json:"setupKey" validate:"required"`
}

// BootstrapAdmin creates the first platform_admin account. Guarded by the
// one-time setup key from the environment, not by session auth.
func (s *Server) BootstrapAdmin(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req BootstrapAdminRequest
	if err := decodeJSON(r, &req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := s.Val.Struct(req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "validation error", validationDetails(s.Val.ValidationErrors(err)))
		return
	}

	if s.Cfg.AdminSetupKey == "" || req.SetupKey != s.Cfg.AdminSetupKey {
		log.Warn("bootstrap admin: invalid setup key")
		transport.WriteError(w, http.StatusUnauthorized, "invalid setup key", nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, "weak password", nil)
		return
	}

	now := time.Now().UTC()
	user := models.User{
		ID:           primitive.NewObjectID().Hex(),
		Username:     strings.ToLower(strings.TrimSpace(req.Username)),
		PasswordHash: hash,
		Role:         models.RolePlatformAdmin,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := s.Cols.Users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			transport.WriteError(w, http.StatusConflict, "username already exists", nil)
			return
		}
		log.Error("bootstrap admin: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("bootstrap admin: ok", slog.String("username", user.Username))
	transport.WriteJSON(w, http.StatusCreated, map[string]string{"id": user.ID})
}
