package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"autodealers-backend/internal/auth"
	"autodealers-backend/internal/config"
	"autodealers-backend/internal/db"
	"autodealers-backend/internal/membership"
	"autodealers-backend/internal/middleware"
	"autodealers-backend/internal/validation"
)

type EntitlementChecker interface {
	CanExecute(ctx context.Context, tenantID string, action membership.Action) (membership.Decision, error)
}

type Server struct {
	Cfg          *config.Config
	Cols         *db.Collections
	Val          *validation.Validator
	Log          *slog.Logger
	Auth         *auth.Manager
	Entitlements EntitlementChecker
}

func (s *Server) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return s.Log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return s.Log.With(slog.String("request_id", id))
	}
	return s.Log
}
