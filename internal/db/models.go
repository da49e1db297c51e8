package db

import "time"

type PreApprovalStatus string

const (
	PreApprovalPending  PreApprovalStatus = "pending"
	PreApprovalApproved PreApprovalStatus = "approved"
	PreApprovalRejected PreApprovalStatus = "rejected"
)

type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalRejected  ApprovalStatus = "rejected"
	ApprovalCancelled ApprovalStatus = "cancelled"
)

type VisitorApproval string

const (
	VisitorPending  VisitorApproval = "pending"
	VisitorApproved VisitorApproval = "approved"
	VisitorDenied   VisitorApproval = "denied"
)

type VisitStatus string

const (
	VisitScheduled  VisitStatus = "scheduled"
	VisitInProgress VisitStatus = "in_progress"
	VisitCompleted  VisitStatus = "completed"
	VisitCancelled  VisitStatus = "cancelled"
	VisitExpired    VisitStatus = "expired"
)

type VisitType string

const (
	VisitTypePreApproved VisitType = "pre_approved"
	VisitTypeWalkIn      VisitType = "walk_in"
	VisitTypeScheduled   VisitType = "scheduled"
)

type NotificationStatus string

const (
	NotificationPending  NotificationStatus = "pending"
	NotificationInFlight NotificationStatus = "in_flight"
	NotificationSent     NotificationStatus = "sent"
	NotificationRead     NotificationStatus = "read"
	NotificationFailed   NotificationStatus = "failed"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityUrgent   Priority = "urgent"
	PriorityCritical Priority = "critical"
)

// visitTransitions is the single source of truth for legal visit status
// changes. Terminal states have no entry.
var visitTransitions = map[VisitStatus][]VisitStatus{
	VisitScheduled:  {VisitInProgress, VisitCancelled, VisitExpired},
	VisitInProgress: {VisitCompleted, VisitCancelled},
}

func CanTransition(from, to VisitStatus) bool {
	for _, next := range visitTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsTerminal(status VisitStatus) bool {
	return len(visitTransitions[status]) == 0
}

// DecisionFor maps a pre-approval decision onto the visit and visitor rows
// that mirror it.
func DecisionFor(status PreApprovalStatus) (ApprovalStatus, VisitStatus, VisitorApproval, bool) {
	switch status {
	case PreApprovalApproved:
		return ApprovalApproved, VisitScheduled, VisitorApproved, true
	case PreApprovalRejected:
		return ApprovalRejected, VisitCancelled, VisitorDenied, true
	default:
		return "", "", "", false
	}
}

type Visitor struct {
	ID             string
	BuildingID     string
	Name           string
	Phone          string
	Email          string
	Category       string
	ApprovalStatus VisitorApproval
	Blacklisted    bool
	TotalVisits    int
	LastVisitAt    *time.Time
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type PreApproval struct {
	ID             string
	BuildingID     string
	ResidentID     string
	VisitorName    string
	VisitorPhone   string
	VisitorEmail   string
	Purpose        string
	ExpectedDate   string
	ExpectedTime   string
	FlatNumber     string
	Status         PreApprovalStatus
	DecidedBy      *string
	DecidedAt      *time.Time
	DecisionNotes  *string
	VisitID        *string
	TokenData      []byte
	TokenString    string
	TokenImage     string
	TokenIssuedAt  *time.Time
	TokenExpiresAt *time.Time
	DeletedAt      *time.Time
	DeletedBy      *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PassArchive is one superseded gate pass, kept verbatim so previously
// distributed copies stay auditable after rotation.
type PassArchive struct {
	ID                string
	PreApprovalID     string
	IssuedUnderStatus ApprovalStatus
	TokenData         []byte
	TokenString       string
	TokenImage        string
	IssuedAt          time.Time
	ArchivedAt        time.Time
}

type Visit struct {
	ID              string
	BuildingID      string
	VisitorID       string
	HostID          string
	PreApprovalID   *string
	Purpose         string
	VisitType       VisitType
	ApprovalStatus  ApprovalStatus
	Status          VisitStatus
	TokenString     string
	TokenExpiresAt  *time.Time
	CheckInAt       *time.Time
	CheckOutAt      *time.Time
	CheckedInBy     *string
	CheckedOutBy    *string
	EntryPhotoRef   *string
	ExitPhotoRef    *string
	CancelReason    *string
	DurationMinutes *int
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Notification struct {
	ID             string
	RecipientID    string
	RecipientRole  string
	BuildingID     string
	Title          string
	Message        string
	Type           string
	Category       string
	Priority       Priority
	IsUrgent       bool
	VisitID        *string
	VisitorID      *string
	ActorID        *string
	RequiresAction bool
	ActionType     *string
	ActionDeadline *time.Time
	DeliveryStatus NotificationStatus
	ChannelInApp   bool
	ChannelEmail   bool
	ChannelSMS     bool
	ChannelPush    bool
	RetryCount     int
	MaxRetries     int
	LastError      *string
	ExpiresAt      time.Time
	IsPersistent   bool
	ReadAt         *time.Time
	ReadBy         *string
	SentAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
