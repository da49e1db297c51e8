package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleGetVisit(w http.ResponseWriter, r *http.Request) {
	visit, err := s.service.GetVisit(r.Context(), chi.URLParam(r, "visitId"))
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVisitResponse(visit))
}

func (s *Server) handleGetVisitByToken(w http.ResponseWriter, r *http.Request) {
	visit, err := s.service.GetVisitByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVisitResponse(visit))
}

type checkInRequest struct {
	EntryPhotoRef *string `json:"entry_photo_ref"`
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	var req checkInRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request")
			return
		}
	}
	visit, err := s.service.CheckIn(r.Context(), chi.URLParam(r, "visitId"), claims.UserID, req.EntryPhotoRef)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVisitResponse(visit))
}

type checkOutRequest struct {
	ExitPhotoRef *string `json:"exit_photo_ref"`
}

func (s *Server) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	var req checkOutRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request")
			return
		}
	}
	verifierID := claims.UserID
	visit, err := s.service.CheckOut(r.Context(), chi.URLParam(r, "visitId"), &verifierID, req.ExitPhotoRef)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVisitResponse(visit))
}

type cancelVisitRequest struct {
	Reason *string `json:"reason"`
}

func (s *Server) handleCancelVisit(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	var req cancelVisitRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request")
			return
		}
	}
	visit, err := s.service.Cancel(r.Context(), chi.URLParam(r, "visitId"), claims.UserID, req.Reason)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVisitResponse(visit))
}

type validateTokenRequest struct {
	Token string `json:"token"`
}

// handleValidateToken is the gate check: it never errors for an invalid
// pass, it answers with the verdict and its reason.
func (s *Server) handleValidateToken(w http.ResponseWriter, r *http.Request) {
	var req validateTokenRequest
	if err := decodeJSON(r, &req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	verdict, err := s.service.ValidateToken(r.Context(), req.Token)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}
