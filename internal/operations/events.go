package operations

import (
	"context"
	"fmt"
	"log"

	"gatepass/visits/internal/db"
	"gatepass/visits/internal/notify"
)

// Notification enqueueing is best effort: a failure here is logged and
// never propagates into the transition that triggered it.

func (s *Service) notifySubmitted(ctx context.Context, pre *db.PreApproval) {
	if s.Notify == nil {
		return
	}
	_, err := s.Notify.Create(ctx, notify.CreateParams{
		RecipientID:   pre.ResidentID,
		RecipientRole: "resident",
		BuildingID:    pre.BuildingID,
		Title:         "Pre-approval submitted",
		Message:       fmt.Sprintf("Your pre-approval for %s on %s is awaiting a decision.", pre.VisitorName, pre.ExpectedDate),
		Type:          "pre_approval_submitted",
		Category:      "visit",
		Priority:      db.PriorityNormal,
		Channels:      []string{notify.ChannelInApp},
	})
	if err != nil {
		log.Printf("operations: enqueue submit notification failed: %v", err)
	}
}

func (s *Service) notifyDecision(ctx context.Context, pre *db.PreApproval, status db.PreApprovalStatus) {
	if s.Notify == nil {
		return
	}
	title := "Pre-approval approved"
	message := fmt.Sprintf("Entry for %s on %s was approved. A new gate pass has been issued.", pre.VisitorName, pre.ExpectedDate)
	priority := db.PriorityNormal
	if status == db.PreApprovalRejected {
		title = "Pre-approval rejected"
		message = fmt.Sprintf("Entry for %s on %s was rejected.", pre.VisitorName, pre.ExpectedDate)
		priority = db.PriorityHigh
	}
	_, err := s.Notify.Create(ctx, notify.CreateParams{
		RecipientID:   pre.ResidentID,
		RecipientRole: "resident",
		BuildingID:    pre.BuildingID,
		Title:         title,
		Message:       message,
		Type:          "pre_approval_" + string(status),
		Category:      "visit",
		Priority:      priority,
		ActorID:       pre.DecidedBy,
		VisitID:       pre.VisitID,
		Channels:      []string{notify.ChannelInApp, notify.ChannelEmail},
	})
	if err != nil {
		log.Printf("operations: enqueue decision notification failed: %v", err)
	}
}

func (s *Service) notifyVisitEvent(ctx context.Context, visit *db.Visit, actorID *string, eventType, title string) {
	if s.Notify == nil {
		return
	}
	_, err := s.Notify.Create(ctx, notify.CreateParams{
		RecipientID:   visit.HostID,
		RecipientRole: "resident",
		BuildingID:    visit.BuildingID,
		Title:         title,
		Message:       fmt.Sprintf("Visit %s is now %s.", visit.ID, visit.Status),
		Type:          eventType,
		Category:      "visit",
		Priority:      db.PriorityNormal,
		VisitID:       &visit.ID,
		VisitorID:     &visit.VisitorID,
		ActorID:       actorID,
		Channels:      []string{notify.ChannelInApp, notify.ChannelPush},
	})
	if err != nil {
		log.Printf("operations: enqueue %s notification failed: %v", eventType, err)
	}
}

func (s *Service) notifyExpired(ctx context.Context, v db.ExpiredVisit) {
	if s.Notify == nil {
		return
	}
	_, err := s.Notify.Create(ctx, notify.CreateParams{
		RecipientID:   v.HostID,
		RecipientRole: "resident",
		BuildingID:    v.BuildingID,
		Title:         "Gate pass expired",
		Message:       fmt.Sprintf("The gate pass for visit %s expired before check-in.", v.ID),
		Type:          "visit_expired",
		Category:      "visit",
		Priority:      db.PriorityLow,
		VisitID:       &v.ID,
		VisitorID:     &v.VisitorID,
		Channels:      []string{notify.ChannelInApp},
	})
	if err != nil {
		log.Printf("operations: enqueue expiry notification failed: %v", err)
	}
}
