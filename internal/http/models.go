package http

import (
	"encoding/json"
	"time"

	"gatepass/visits/internal/db"
)

type tokenResponse struct {
	Payload   json.RawMessage `json:"payload,omitempty"`
	Token     string          `json:"token,omitempty"`
	Image     string          `json:"image,omitempty"`
	IssuedAt  *time.Time      `json:"issued_at,omitempty"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

type preApprovalResponse struct {
	ID            string         `json:"id"`
	BuildingID    string         `json:"building_id"`
	ResidentID    string         `json:"resident_id"`
	VisitorName   string         `json:"visitor_name"`
	VisitorPhone  string         `json:"visitor_phone"`
	VisitorEmail  string         `json:"visitor_email,omitempty"`
	Purpose       string         `json:"purpose,omitempty"`
	ExpectedDate  string         `json:"expected_date"`
	ExpectedTime  string         `json:"expected_time,omitempty"`
	FlatNumber    string         `json:"flat_number,omitempty"`
	Status        string         `json:"status"`
	DecidedBy     *string        `json:"decided_by,omitempty"`
	DecidedAt     *time.Time     `json:"decided_at,omitempty"`
	DecisionNotes *string        `json:"decision_notes,omitempty"`
	VisitID       *string        `json:"visit_id,omitempty"`
	Token         *tokenResponse `json:"token,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func toPreApprovalResponse(p *db.PreApproval) preApprovalResponse {
	resp := preApprovalResponse{
		ID:            p.ID,
		BuildingID:    p.BuildingID,
		ResidentID:    p.ResidentID,
		VisitorName:   p.VisitorName,
		VisitorPhone:  p.VisitorPhone,
		VisitorEmail:  p.VisitorEmail,
		Purpose:       p.Purpose,
		ExpectedDate:  p.ExpectedDate,
		ExpectedTime:  p.ExpectedTime,
		FlatNumber:    p.FlatNumber,
		Status:        string(p.Status),
		DecidedBy:     p.DecidedBy,
		DecidedAt:     p.DecidedAt,
		DecisionNotes: p.DecisionNotes,
		VisitID:       p.VisitID,
		CreatedAt:     p.CreatedAt,
	}
	if p.TokenString != "" {
		resp.Token = &tokenResponse{
			Payload:   json.RawMessage(p.TokenData),
			Token:     p.TokenString,
			Image:     p.TokenImage,
			IssuedAt:  p.TokenIssuedAt,
			ExpiresAt: p.TokenExpiresAt,
		}
	}
	return resp
}

type passArchiveResponse struct {
	ID                string          `json:"id"`
	IssuedUnderStatus string          `json:"issued_under_status"`
	Payload           json.RawMessage `json:"payload"`
	Token             string          `json:"token"`
	Image             string          `json:"image"`
	IssuedAt          time.Time       `json:"issued_at"`
	ArchivedAt        time.Time       `json:"archived_at"`
}

func toPassArchiveResponse(a db.PassArchive) passArchiveResponse {
	return passArchiveResponse{
		ID:                a.ID,
		IssuedUnderStatus: string(a.IssuedUnderStatus),
		Payload:           json.RawMessage(a.TokenData),
		Token:             a.TokenString,
		Image:             a.TokenImage,
		IssuedAt:          a.IssuedAt,
		ArchivedAt:        a.ArchivedAt,
	}
}

type visitResponse struct {
	ID              string     `json:"id"`
	BuildingID      string     `json:"building_id"`
	VisitorID       string     `json:"visitor_id"`
	HostID          string     `json:"host_id"`
	PreApprovalID   *string    `json:"pre_approval_id,omitempty"`
	Purpose         string     `json:"purpose,omitempty"`
	VisitType       string     `json:"visit_type"`
	ApprovalStatus  string     `json:"approval_status"`
	Status          string     `json:"status"`
	TokenExpiresAt  *time.Time `json:"token_expires_at,omitempty"`
	CheckInAt       *time.Time `json:"check_in_at,omitempty"`
	CheckOutAt      *time.Time `json:"check_out_at,omitempty"`
	CheckedInBy     *string    `json:"checked_in_by,omitempty"`
	CheckedOutBy    *string    `json:"checked_out_by,omitempty"`
	CancelReason    *string    `json:"cancel_reason,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toVisitResponse(v *db.Visit) visitResponse {
	return visitResponse{
		ID:              v.ID,
		BuildingID:      v.BuildingID,
		VisitorID:       v.VisitorID,
		HostID:          v.HostID,
		PreApprovalID:   v.PreApprovalID,
		Purpose:         v.Purpose,
		VisitType:       string(v.VisitType),
		ApprovalStatus:  string(v.ApprovalStatus),
		Status:          string(v.Status),
		TokenExpiresAt:  v.TokenExpiresAt,
		CheckInAt:       v.CheckInAt,
		CheckOutAt:      v.CheckOutAt,
		CheckedInBy:     v.CheckedInBy,
		CheckedOutBy:    v.CheckedOutBy,
		CancelReason:    v.CancelReason,
		DurationMinutes: v.DurationMinutes,
		CreatedAt:       v.CreatedAt,
	}
}

type notificationResponse struct {
	ID             string     `json:"id"`
	RecipientID    string     `json:"recipient_id"`
	BuildingID     string     `json:"building_id"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	Type           string     `json:"type"`
	Category       string     `json:"category,omitempty"`
	Priority       string     `json:"priority"`
	IsUrgent       bool       `json:"is_urgent"`
	VisitID        *string    `json:"visit_id,omitempty"`
	VisitorID      *string    `json:"visitor_id,omitempty"`
	RequiresAction bool       `json:"requires_action"`
	ActionType     *string    `json:"action_type,omitempty"`
	ActionDeadline *time.Time `json:"action_deadline,omitempty"`
	DeliveryStatus string     `json:"delivery_status"`
	RetryCount     int        `json:"retry_count"`
	MaxRetries     int        `json:"max_retries"`
	LastError      *string    `json:"last_error,omitempty"`
	Exhausted      bool       `json:"exhausted,omitempty"`
	ExpiresAt      time.Time  `json:"expires_at"`
	IsPersistent   bool       `json:"is_persistent"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toNotificationResponse(n *db.Notification) notificationResponse {
	return notificationResponse{
		ID:             n.ID,
		RecipientID:    n.RecipientID,
		BuildingID:     n.BuildingID,
		Title:          n.Title,
		Message:        n.Message,
		Type:           n.Type,
		Category:       n.Category,
		Priority:       string(n.Priority),
		IsUrgent:       n.IsUrgent,
		VisitID:        n.VisitID,
		VisitorID:      n.VisitorID,
		RequiresAction: n.RequiresAction,
		ActionType:     n.ActionType,
		ActionDeadline: n.ActionDeadline,
		DeliveryStatus: string(n.DeliveryStatus),
		RetryCount:     n.RetryCount,
		MaxRetries:     n.MaxRetries,
		LastError:      n.LastError,
		Exhausted:      notifyExhausted(n),
		ExpiresAt:      n.ExpiresAt,
		IsPersistent:   n.IsPersistent,
		ReadAt:         n.ReadAt,
		SentAt:         n.SentAt,
		CreatedAt:      n.CreatedAt,
	}
}
