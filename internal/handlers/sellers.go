package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"autodealers-backend/internal/auth"
	"autodealers-backend/internal/membership"
	"autodealers-backend/internal/middleware"
	"autodealers-backend/internal/models"
	"autodealers-backend/internal/transport"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CreateSellerRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// CreateSeller adds a seller account under the caller's tenant, subject to
// the plan's seat quota.
func (s *Server) CreateSeller(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	tenantID := middleware.TenantID(r)
	if tenantID == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing tenant", nil)
		return
	}

	var req CreateSellerRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Warn("seller create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := s.Val.Struct(req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "validation error", validationDetails(s.Val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	if !middleware.IsPlatformAdmin(r.Context()) {
		decision, err := s.Entitlements.CanExecute(ctx, tenantID, membership.ActionAddSeller)
		if err != nil {
			log.Error("seller create: entitlement check failed", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusServiceUnavailable, "entitlement check unavailable", nil)
			return
		}
		if !decision.Allowed {
			log.Info("seller create: denied", slog.String("tenant_id", tenantID), slog.String("reason", decision.Reason))
			transport.WriteJSON(w, http.StatusForbidden, decision)
			return
		}
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
		Role:         models.RoleSeller,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := s.Cols.Users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.Warn("seller create: username taken", slog.String("username", user.Username))
			transport.WriteError(w, http.StatusConflict, "username already exists", nil)
			return
		}
		log.Error("seller create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("seller create: ok", slog.String("username", user.Username), slog.String("tenant_id", tenantID))
	transport.WriteJSON(w, http.StatusCreated, user)
}

func (s *Server) ListSellers(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	tenantID := middleware.TenantID(r)
	if tenantID == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing tenant", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.Cols.Users.Find(ctx, bson.M{"tenantId": tenantID, "role": models.RoleSeller}, opts)
	if err != nil {
		log.Error("seller list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	defer cursor.Close(ctx)

	sellers := make([]models.User, 0)
	for cursor.Next(ctx) {
		var u models.User
		if err := cursor.Decode(&u); err != nil {
			log.Error("seller list: decode error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
			return
		}
		sellers = append(sellers, u)
	}
	if err := cursor.Err(); err != nil {
		log.Error("seller list: cursor error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": sellers, "total": len(sellers)})
}

// DeactivateSeller frees the seat; the account stays for audit history.
func (s *Server) DeactivateSeller(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	tenantID := middleware.TenantID(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if tenantID == "" || id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing tenant or id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	filter := bson.M{"_id": id, "tenantId": tenantID, "role": models.RoleSeller}
	update := bson.M{"$set": bson.M{"active": false, "updatedAt": time.Now().UTC()}}

	var updated models.User
	err := s.Cols.Users.FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Warn("seller deactivate: not found", slog.String("seller_id", id))
			transport.WriteError(w, http.StatusNotFound, "seller not found", nil)
			return
		}
		log.Error("seller deactivate: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("seller deactivate: ok", slog.String("seller_id", id))
	transport.WriteJSON(w, http.StatusOK, updated)
}
