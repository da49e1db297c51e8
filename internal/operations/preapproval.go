package operations

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"gatepass/visits/internal/db"
	"gatepass/visits/internal/token"
)

type SubmitParams struct {
	BuildingID   string
	ResidentID   string
	VisitorName  string
	VisitorPhone string
	VisitorEmail string
	Purpose      string
	ExpectedDate string
	ExpectedTime string
	FlatNumber   string
}

type SubmitResult struct {
	PreApproval db.PreApproval
	Visitor     *db.Visitor
	Visit       *db.Visit
	Pass        *token.Pass
	// Warning flags the degraded path: the pre-approval exists but the
	// visitor/visit/token synthesis failed and needs manual follow-up.
	Warning string
}

const WarningVisitCreationFailed = "visit_creation_failed"

// Submit records a resident's pre-approval request, then synthesizes the
// deduplicated visitor, the linked visit and the initial gate pass. The
// second stage failing does not roll back the pre-approval; the response
// carries a warning instead.
func (s *Service) Submit(ctx context.Context, arg SubmitParams) (*SubmitResult, error) {
	if arg.VisitorName == "" || arg.VisitorPhone == "" || arg.ExpectedDate == "" {
		return nil, coded(ErrMissingFields)
	}
	if _, ok, err := s.Directory.FindBuilding(ctx, arg.BuildingID); err != nil {
		return nil, err
	} else if !ok {
		return nil, coded(ErrBuildingNotFound)
	}
	if _, ok, err := s.Directory.FindUser(ctx, arg.ResidentID); err != nil {
		return nil, err
	} else if !ok {
		return nil, coded(ErrHostNotFound)
	}

	pre, err := s.Store.Queries.CreatePreApproval(ctx, db.CreatePreApprovalParams{
		ID:           uuid.New().String(),
		BuildingID:   arg.BuildingID,
		ResidentID:   arg.ResidentID,
		VisitorName:  arg.VisitorName,
		VisitorPhone: arg.VisitorPhone,
		VisitorEmail: arg.VisitorEmail,
		Purpose:      arg.Purpose,
		ExpectedDate: arg.ExpectedDate,
		ExpectedTime: arg.ExpectedTime,
		FlatNumber:   arg.FlatNumber,
	})
	if err != nil {
		return nil, err
	}

	result := &SubmitResult{PreApproval: pre}
	if err := s.synthesizeVisit(ctx, result); err != nil {
		log.Printf("operations: visit synthesis failed for pre-approval %s: %v", pre.ID, err)
		result.Warning = WarningVisitCreationFailed
		return result, nil
	}

	s.notifySubmitted(ctx, &result.PreApproval)
	return result, nil
}

// synthesizeVisit is stage two of Submit: visitor dedupe, visit creation
// and initial token issuance in one transaction.
func (s *Service) synthesizeVisit(ctx context.Context, result *SubmitResult) error {
	pre := result.PreApproval
	return s.Store.WithTx(ctx, func(q *db.Queries) error {
		visitor, err := q.GetVisitorByPhone(ctx, pre.BuildingID, pre.VisitorPhone)
		if errors.Is(err, pgx.ErrNoRows) {
			visitor, err = q.CreateVisitor(ctx, db.CreateVisitorParams{
				ID:         uuid.New().String(),
				BuildingID: pre.BuildingID,
				Name:       pre.VisitorName,
				Phone:      pre.VisitorPhone,
				Email:      pre.VisitorEmail,
				Category:   "personal",
			})
		}
		if err != nil {
			return err
		}

		visit, err := q.CreateVisit(ctx, db.CreateVisitParams{
			ID:            uuid.New().String(),
			BuildingID:    pre.BuildingID,
			VisitorID:     visitor.ID,
			HostID:        pre.ResidentID,
			PreApprovalID: &pre.ID,
			Purpose:       pre.Purpose,
			VisitType:     db.VisitTypePreApproved,
		})
		if err != nil {
			return err
		}
		if err := q.LinkPreApprovalVisit(ctx, pre.ID, visit.ID); err != nil {
			return err
		}

		pass, err := s.Issuer.Issue(passPayload(pre, visit.ID, db.ApprovalPending), time.Now())
		if err != nil {
			return err
		}
		if err := q.SetPreApprovalToken(ctx, db.SetPreApprovalTokenParams{
			ID:        pre.ID,
			Data:      pass.Data,
			Token:     pass.String,
			Image:     pass.Image,
			IssuedAt:  pass.IssuedAt,
			ExpiresAt: pass.ExpiresAt,
		}); err != nil {
			return err
		}
		if err := q.SetVisitToken(ctx, db.SetVisitTokenParams{
			ID:             visit.ID,
			TokenString:    pass.String,
			TokenExpiresAt: pass.ExpiresAt,
		}); err != nil {
			return err
		}

		visit.TokenString = pass.String
		expiresAt := pass.ExpiresAt
		visit.TokenExpiresAt = &expiresAt

		result.Visitor = &visitor
		result.Visit = &visit
		result.Pass = pass
		result.PreApproval.VisitID = &visit.ID
		result.PreApproval.TokenData = pass.Data
		result.PreApproval.TokenString = pass.String
		result.PreApproval.TokenImage = pass.Image
		result.PreApproval.TokenIssuedAt = &pass.IssuedAt
		result.PreApproval.TokenExpiresAt = &expiresAt

		if s.Index != nil {
			if err := s.Index.Save(ctx, pass.String, visit.ID, pass.ExpiresAt); err != nil {
				log.Printf("operations: token index save failed: %v", err)
			}
		}
		passesIssued.Inc()
		return nil
	})
}

func (s *Service) Approve(ctx context.Context, preApprovalID, deciderID string, notes *string) (*db.PreApproval, error) {
	return s.decide(ctx, preApprovalID, deciderID, notes, db.PreApprovalApproved)
}

func (s *Service) Reject(ctx context.Context, preApprovalID, deciderID string, reason *string) (*db.PreApproval, error) {
	return s.decide(ctx, preApprovalID, deciderID, reason, db.PreApprovalRejected)
}

// decide applies a terminal decision: CAS on the pending status, mirror
// onto visit and visitor, archive the current pass and issue a fresh one
// embedding the decision. All in one transaction.
func (s *Service) decide(ctx context.Context, preApprovalID, deciderID string, notes *string, status db.PreApprovalStatus) (*db.PreApproval, error) {
	pre, err := s.Store.Queries.GetPreApproval(ctx, preApprovalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, coded(ErrPreApprovalNotFound)
	}
	if err != nil {
		return nil, err
	}

	visitApproval, visitStatus, visitorApproval, ok := db.DecisionFor(status)
	if !ok {
		return nil, coded(ErrInvalidState)
	}

	oldToken := pre.TokenString
	var pass *token.Pass
	err = s.Store.WithTx(ctx, func(q *db.Queries) error {
		affected, err := q.DecidePreApproval(ctx, db.DecidePreApprovalParams{
			ID:        pre.ID,
			Status:    status,
			DecidedBy: deciderID,
			DecidedAt: time.Now(),
			Notes:     notes,
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return coded(ErrInvalidState)
		}

		if pre.TokenString != "" {
			if err := q.ArchivePass(ctx, db.ArchivePassParams{
				ID:                uuid.New().String(),
				PreApprovalID:     pre.ID,
				IssuedUnderStatus: embeddedStatus(pre.TokenData),
				TokenData:         pre.TokenData,
				TokenString:       pre.TokenString,
				TokenImage:        pre.TokenImage,
				IssuedAt:          tokenIssuedAt(pre),
			}); err != nil {
				return err
			}
		}

		if pre.VisitID == nil {
			// Degraded submit left no visit to mirror onto; the decision
			// still lands on the pre-approval itself.
			return nil
		}

		visit, err := q.GetVisit(ctx, *pre.VisitID)
		if err != nil {
			return err
		}

		pass, err = s.Issuer.Issue(passPayload(pre, visit.ID, visitApproval), time.Now())
		if err != nil {
			return err
		}
		if err := q.SetPreApprovalToken(ctx, db.SetPreApprovalTokenParams{
			ID:        pre.ID,
			Data:      pass.Data,
			Token:     pass.String,
			Image:     pass.Image,
			IssuedAt:  pass.IssuedAt,
			ExpiresAt: pass.ExpiresAt,
		}); err != nil {
			return err
		}

		var cancelReason *string
		if status == db.PreApprovalRejected {
			cancelReason = notes
		}
		if err := q.SetVisitDecision(ctx, db.SetVisitDecisionParams{
			ID:             visit.ID,
			ApprovalStatus: visitApproval,
			Status:         visitStatus,
			TokenString:    pass.String,
			TokenExpiresAt: pass.ExpiresAt,
			CancelReason:   cancelReason,
		}); err != nil {
			return err
		}
		return q.SetVisitorApproval(ctx, visit.VisitorID, visitorApproval)
	})
	if err != nil {
		return nil, err
	}

	if s.Index != nil {
		if oldToken != "" {
			if err := s.Index.Drop(ctx, oldToken); err != nil {
				log.Printf("operations: token index drop failed: %v", err)
			}
		}
		if pass != nil && pre.VisitID != nil {
			if err := s.Index.Save(ctx, pass.String, *pre.VisitID, pass.ExpiresAt); err != nil {
				log.Printf("operations: token index save failed: %v", err)
			}
		}
	}
	if pass != nil {
		passesIssued.Inc()
	}

	updated, err := s.Store.Queries.GetPreApproval(ctx, pre.ID)
	if err != nil {
		return nil, err
	}
	s.notifyDecision(ctx, &updated, status)
	return &updated, nil
}

type UpdateParams struct {
	PreApprovalID string
	VisitorName   string
	VisitorPhone  string
	VisitorEmail  string
	Purpose       string
	ExpectedDate  string
	ExpectedTime  string
	FlatNumber    string
}

// Update edits contact and schedule fields. Only legal while pending.
func (s *Service) Update(ctx context.Context, arg UpdateParams) (*db.PreApproval, error) {
	pre, err := s.Store.Queries.GetPreApproval(ctx, arg.PreApprovalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, coded(ErrPreApprovalNotFound)
	}
	if err != nil {
		return nil, err
	}

	merged := db.UpdatePreApprovalParams{
		ID:           pre.ID,
		VisitorName:  orDefault(arg.VisitorName, pre.VisitorName),
		VisitorPhone: orDefault(arg.VisitorPhone, pre.VisitorPhone),
		VisitorEmail: orDefault(arg.VisitorEmail, pre.VisitorEmail),
		Purpose:      orDefault(arg.Purpose, pre.Purpose),
		ExpectedDate: orDefault(arg.ExpectedDate, pre.ExpectedDate),
		ExpectedTime: orDefault(arg.ExpectedTime, pre.ExpectedTime),
		FlatNumber:   orDefault(arg.FlatNumber, pre.FlatNumber),
	}
	affected, err := s.Store.Queries.UpdatePreApproval(ctx, merged)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, coded(ErrInvalidState)
	}
	updated, err := s.Store.Queries.GetPreApproval(ctx, pre.ID)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete soft-deletes a pending request, recording the actor.
func (s *Service) Delete(ctx context.Context, preApprovalID, actorID string) error {
	affected, err := s.Store.Queries.SoftDeletePreApproval(ctx, preApprovalID, actorID, time.Now())
	if err != nil {
		return err
	}
	if affected == 0 {
		_, err := s.Store.Queries.GetPreApproval(ctx, preApprovalID)
		if errors.Is(err, pgx.ErrNoRows) {
			return coded(ErrPreApprovalNotFound)
		}
		if err != nil {
			return err
		}
		return coded(ErrInvalidState)
	}
	return nil
}

func (s *Service) GetPreApproval(ctx context.Context, id string) (*db.PreApproval, error) {
	pre, err := s.Store.Queries.GetPreApproval(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, coded(ErrPreApprovalNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &pre, nil
}

func (s *Service) ListPreApprovalsByResident(ctx context.Context, residentID string, limit, offset int) ([]db.PreApproval, error) {
	return s.Store.Queries.ListPreApprovalsByResident(ctx, residentID, limit, offset)
}

func (s *Service) ListPreApprovalsByBuilding(ctx context.Context, buildingID string, limit, offset int) ([]db.PreApproval, error) {
	return s.Store.Queries.ListPreApprovalsByBuilding(ctx, buildingID, limit, offset)
}

func (s *Service) PassHistory(ctx context.Context, preApprovalID string) ([]db.PassArchive, error) {
	if _, err := s.GetPreApproval(ctx, preApprovalID); err != nil {
		return nil, err
	}
	return s.Store.Queries.ListPassHistory(ctx, preApprovalID)
}

func passPayload(pre db.PreApproval, visitID string, status db.ApprovalStatus) token.Payload {
	return token.Payload{
		PreApprovalID:  pre.ID,
		VisitID:        visitID,
		VisitorName:    pre.VisitorName,
		VisitorPhone:   pre.VisitorPhone,
		VisitorEmail:   pre.VisitorEmail,
		Purpose:        pre.Purpose,
		ExpectedDate:   pre.ExpectedDate,
		ExpectedTime:   pre.ExpectedTime,
		FlatNumber:     pre.FlatNumber,
		ResidentID:     pre.ResidentID,
		BuildingID:     pre.BuildingID,
		ApprovalStatus: status,
	}
}

// embeddedStatus recovers the approval status a stored pass was issued
// under from its persisted payload.
func embeddedStatus(data []byte) db.ApprovalStatus {
	var payload struct {
		ApprovalStatus db.ApprovalStatus `json:"approval_status"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.ApprovalStatus == "" {
		return db.ApprovalPending
	}
	return payload.ApprovalStatus
}

func tokenIssuedAt(pre db.PreApproval) time.Time {
	if pre.TokenIssuedAt != nil {
		return *pre.TokenIssuedAt
	}
	return pre.CreatedAt
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
