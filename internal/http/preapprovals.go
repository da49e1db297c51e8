package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"gatepass/visits/internal/operations"
)

type submitPreApprovalRequest struct {
	BuildingID   string `json:"building_id"`
	VisitorName  string `json:"visitor_name"`
	VisitorPhone string `json:"visitor_phone"`
	VisitorEmail string `json:"visitor_email"`
	Purpose      string `json:"purpose"`
	ExpectedDate string `json:"expected_date"`
	ExpectedTime string `json:"expected_time"`
	FlatNumber   string `json:"flat_number"`
}

func (s *Server) handleSubmitPreApproval(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	var req submitPreApprovalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	buildingID := req.BuildingID
	if buildingID == "" {
		buildingID = claims.BuildingID
	}

	result, err := s.service.Submit(r.Context(), operations.SubmitParams{
		BuildingID:   buildingID,
		ResidentID:   claims.UserID,
		VisitorName:  req.VisitorName,
		VisitorPhone: req.VisitorPhone,
		VisitorEmail: req.VisitorEmail,
		Purpose:      req.Purpose,
		ExpectedDate: req.ExpectedDate,
		ExpectedTime: req.ExpectedTime,
		FlatNumber:   req.FlatNumber,
	})
	if err != nil {
		writeOperationError(w, err)
		return
	}

	payload := map[string]interface{}{
		"pre_approval": toPreApprovalResponse(&result.PreApproval),
	}
	if result.Visit != nil {
		payload["visit"] = toVisitResponse(result.Visit)
	}
	if result.Warning != "" {
		// Degraded success: the request is recorded but needs manual
		// follow-up for its visit/token.
		payload["warning"] = result.Warning
	}
	writeJSON(w, http.StatusCreated, payload)
}

func (s *Server) handleListPreApprovals(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	limit, offset := pagination(r)

	buildingID := r.URL.Query().Get("building_id")
	residentID := r.URL.Query().Get("resident_id")

	var (
		list []preApprovalResponse
		err  error
	)
	switch {
	case buildingID != "":
		pres, listErr := s.service.ListPreApprovalsByBuilding(r.Context(), buildingID, limit, offset)
		err = listErr
		for i := range pres {
			list = append(list, toPreApprovalResponse(&pres[i]))
		}
	default:
		if residentID == "" {
			residentID = claims.UserID
		}
		pres, listErr := s.service.ListPreApprovalsByResident(r.Context(), residentID, limit, offset)
		err = listErr
		for i := range pres {
			list = append(list, toPreApprovalResponse(&pres[i]))
		}
	}
	if err != nil {
		writeOperationError(w, err)
		return
	}
	if list == nil {
		list = []preApprovalResponse{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pre_approvals": list})
}

func (s *Server) handleGetPreApproval(w http.ResponseWriter, r *http.Request) {
	pre, err := s.service.GetPreApproval(r.Context(), chi.URLParam(r, "preApprovalId"))
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreApprovalResponse(pre))
}

func (s *Server) handlePassHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.service.PassHistory(r.Context(), chi.URLParam(r, "preApprovalId"))
	if err != nil {
		writeOperationError(w, err)
		return
	}
	list := make([]passArchiveResponse, 0, len(history))
	for _, entry := range history {
		list = append(list, toPassArchiveResponse(entry))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tokens": list})
}

type decisionRequest struct {
	Notes  *string `json:"notes"`
	Reason *string `json:"reason"`
}

func (s *Server) handleApprovePreApproval(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	var req decisionRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request")
			return
		}
	}
	pre, err := s.service.Approve(r.Context(), chi.URLParam(r, "preApprovalId"), claims.UserID, req.Notes)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreApprovalResponse(pre))
}

func (s *Server) handleRejectPreApproval(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	var req decisionRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request")
			return
		}
	}
	reason := req.Reason
	if reason == nil {
		reason = req.Notes
	}
	pre, err := s.service.Reject(r.Context(), chi.URLParam(r, "preApprovalId"), claims.UserID, reason)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreApprovalResponse(pre))
}

type updatePreApprovalRequest struct {
	VisitorName  string `json:"visitor_name"`
	VisitorPhone string `json:"visitor_phone"`
	VisitorEmail string `json:"visitor_email"`
	Purpose      string `json:"purpose"`
	ExpectedDate string `json:"expected_date"`
	ExpectedTime string `json:"expected_time"`
	FlatNumber   string `json:"flat_number"`
}

func (s *Server) handleUpdatePreApproval(w http.ResponseWriter, r *http.Request) {
	var req updatePreApprovalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	pre, err := s.service.Update(r.Context(), operations.UpdateParams{
		PreApprovalID: chi.URLParam(r, "preApprovalId"),
		VisitorName:   req.VisitorName,
		VisitorPhone:  req.VisitorPhone,
		VisitorEmail:  req.VisitorEmail,
		Purpose:       req.Purpose,
		ExpectedDate:  req.ExpectedDate,
		ExpectedTime:  req.ExpectedTime,
		FlatNumber:    req.FlatNumber,
	})
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreApprovalResponse(pre))
}

func (s *Server) handleDeletePreApproval(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	if err := s.service.Delete(r.Context(), chi.URLParam(r, "preApprovalId"), claims.UserID); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
