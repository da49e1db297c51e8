package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gatepass/visits/internal/db"
	"gatepass/visits/internal/notify"
)

func notifyExhausted(n *db.Notification) bool {
	return notify.Exhausted(n)
}

type createNotificationRequest struct {
	RecipientID    string     `json:"recipient_id"`
	RecipientRole  string     `json:"recipient_role"`
	BuildingID     string     `json:"building_id"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	Type           string     `json:"type"`
	Category       string     `json:"category"`
	Priority       string     `json:"priority"`
	VisitID        *string    `json:"visit_id"`
	VisitorID      *string    `json:"visitor_id"`
	RequiresAction bool       `json:"requires_action"`
	ActionType     *string    `json:"action_type"`
	ActionDeadline *time.Time `json:"action_deadline"`
	Channels       []string   `json:"channels"`
	IsPersistent   bool       `json:"is_persistent"`
}

func (s *Server) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	var req createNotificationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	buildingID := req.BuildingID
	if buildingID == "" {
		buildingID = claims.BuildingID
	}
	actorID := claims.UserID
	n, err := s.engine.Create(r.Context(), notify.CreateParams{
		RecipientID:    req.RecipientID,
		RecipientRole:  req.RecipientRole,
		BuildingID:     buildingID,
		Title:          req.Title,
		Message:        req.Message,
		Type:           req.Type,
		Category:       req.Category,
		Priority:       db.Priority(req.Priority),
		VisitID:        req.VisitID,
		VisitorID:      req.VisitorID,
		ActorID:        &actorID,
		RequiresAction: req.RequiresAction,
		ActionType:     req.ActionType,
		ActionDeadline: req.ActionDeadline,
		Channels:       req.Channels,
		IsPersistent:   req.IsPersistent,
	})
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNotificationResponse(n))
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	limit, offset := pagination(r)

	recipientID := r.URL.Query().Get("recipient_id")
	if recipientID == "" {
		recipientID = claims.UserID
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifications, err := s.notifyRepo.List(r.Context(), recipientID, unreadOnly, limit, offset)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	list := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		list = append(list, toNotificationResponse(n))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": list})
}

func (s *Server) handleNotificationCounts(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	recipientID := r.URL.Query().Get("recipient_id")
	if recipientID == "" {
		recipientID = claims.UserID
	}
	unread, err := s.notifyRepo.CountUnread(r.Context(), recipientID)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	urgent, err := s.notifyRepo.CountUrgent(r.Context(), recipientID)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": unread, "urgent": urgent})
}

func (s *Server) handleGetNotification(w http.ResponseWriter, r *http.Request) {
	n, err := s.notifyRepo.Get(r.Context(), chi.URLParam(r, "notificationId"))
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNotificationResponse(n))
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	n, err := s.engine.MarkAsRead(r.Context(), chi.URLParam(r, "notificationId"), claims.UserID)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNotificationResponse(n))
}

type bulkReadRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleBulkMarkRead(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	var req bulkReadRequest
	if err := decodeJSON(r, &req); err != nil || len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	updated, err := s.notifyRepo.MarkManyRead(r.Context(), claims.UserID, req.IDs, time.Now().UTC())
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	deleted, err := s.notifyRepo.Delete(r.Context(), chi.URLParam(r, "notificationId"), claims.UserID)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	if deleted == 0 {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleBulkDeleteNotifications(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	deleted, err := s.notifyRepo.DeleteForRecipient(r.Context(), claims.UserID)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
