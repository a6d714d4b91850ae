package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/recognizer"
)

// SessionsHandler handles attendance session lifecycle requests.
type SessionsHandler struct {
	ledger  *ledger.Ledger
	service *recognizer.Service
}

// NewSessionsHandler creates a sessions handler.
func NewSessionsHandler(ldg *ledger.Ledger, service *recognizer.Service) *SessionsHandler {
	return &SessionsHandler{ledger: ldg, service: service}
}

type startSessionRequest struct {
	CourseID  string `json:"course_id"`
	FacultyID string `json:"faculty_id"`
}

// Start opens an attendance session for a course. Starting a session for a
// course that already has one active today returns the existing session.
func (h *SessionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.CourseID == "" || req.FacultyID == "" {
		respondError(w, http.StatusBadRequest, "course_id and faculty_id are required")
		return
	}

	session, err := h.ledger.StartSession(r.Context(), req.CourseID, req.FacultyID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

// Get returns a session with its records and counts.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.ledger.GetSession(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// End transitions a session to its terminal state and returns the final counts.
func (h *SessionsHandler) End(w http.ResponseWriter, r *http.Request) {
	session, err := h.ledger.EndSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

type markRequest struct {
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
	MarkedBy  string `json:"marked_by"`
	Notes     string `json:"notes,omitempty"`
}

// Mark records a manual attendance decision for a student in a session.
func (h *SessionsHandler) Mark(w http.ResponseWriter, r *http.Request) {
	var req markRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.StudentID == "" {
		respondError(w, http.StatusBadRequest, "student_id is required")
		return
	}

	record, err := h.service.MarkManual(r.Context(), chi.URLParam(r, "id"),
		req.StudentID, database.AttendanceStatus(req.Status), req.MarkedBy, req.Notes)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}
