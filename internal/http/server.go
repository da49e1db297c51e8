package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gatepass/visits/internal/auth"
	"gatepass/visits/internal/config"
	"gatepass/visits/internal/directory"
	"gatepass/visits/internal/notify"
	"gatepass/visits/internal/operations"
)

type Server struct {
	cfg        config.Config
	service    *operations.Service
	engine     *notify.Engine
	notifyRepo notify.Repository
	directory  *directory.Directory
}

func NewServer(cfg config.Config, service *operations.Service, engine *notify.Engine, notifyRepo notify.Repository, dir *directory.Directory) *Server {
	return &Server{
		cfg:        cfg,
		service:    service,
		engine:     engine,
		notifyRepo: notifyRepo,
		directory:  dir,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/preapprovals", s.handleSubmitPreApproval)
		r.Get("/preapprovals", s.handleListPreApprovals)
		r.Get("/preapprovals/{preApprovalId}", s.handleGetPreApproval)
		r.Get("/preapprovals/{preApprovalId}/tokens", s.handlePassHistory)
		r.Post("/preapprovals/{preApprovalId}/approve", s.handleApprovePreApproval)
		r.Post("/preapprovals/{preApprovalId}/reject", s.handleRejectPreApproval)
		r.Patch("/preapprovals/{preApprovalId}", s.handleUpdatePreApproval)
		r.Delete("/preapprovals/{preApprovalId}", s.handleDeletePreApproval)

		r.Get("/visits/{visitId}", s.handleGetVisit)
		r.Get("/visits/by-token/{token}", s.handleGetVisitByToken)
		r.Post("/visits/{visitId}/checkin", s.handleCheckIn)
		r.Post("/visits/{visitId}/checkout", s.handleCheckOut)
		r.Post("/visits/{visitId}/cancel", s.handleCancelVisit)

		r.Post("/tokens/validate", s.handleValidateToken)

		r.Post("/notifications", s.handleCreateNotification)
		r.Get("/notifications", s.handleListNotifications)
		r.Get("/notifications/counts", s.handleNotificationCounts)
		r.Get("/notifications/{notificationId}", s.handleGetNotification)
		r.Post("/notifications/read", s.handleBulkMarkRead)
		r.Post("/notifications/{notificationId}/read", s.handleMarkRead)
		r.Delete("/notifications", s.handleBulkDeleteNotifications)
		r.Delete("/notifications/{notificationId}", s.handleDeleteNotification)
	})

	return r
}

// Auth

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

// Utilities

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeOperationError maps domain error codes onto HTTP statuses.
func writeOperationError(w http.ResponseWriter, err error) {
	var opErr *operations.Error
	if errors.As(err, &opErr) {
		status := http.StatusInternalServerError
		switch opErr.Code {
		case operations.ErrBuildingNotFound, operations.ErrHostNotFound,
			operations.ErrVisitorNotFound, operations.ErrPreApprovalNotFound,
			operations.ErrVisitNotFound, operations.ErrRecipientNotFound:
			status = http.StatusNotFound
		case operations.ErrInvalidState:
			status = http.StatusConflict
		case operations.ErrPreconditionFailed:
			status = http.StatusPreconditionFailed
		case operations.ErrMissingFields:
			status = http.StatusBadRequest
		}
		code := opErr.Code
		if opErr.Detail != "" {
			code = opErr.Code + ":" + opErr.Detail
		}
		writeError(w, status, code)
		return
	}
	if errors.Is(err, notify.ErrRecipientMissing) {
		writeError(w, http.StatusNotFound, "recipient_not_found")
		return
	}
	if errors.Is(err, notify.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeError(w, http.StatusInternalServerError, "server_error")
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func pagination(r *http.Request) (limit, offset int) {
	limit = queryInt(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}
	offset = queryInt(r, "offset", 0)
	return limit, offset
}
