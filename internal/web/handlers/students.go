package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/recognizer"
)

// StudentsHandler handles student registration and face enrollment.
type StudentsHandler struct {
	service *recognizer.Service
}

// NewStudentsHandler creates a students handler.
func NewStudentsHandler(service *recognizer.Service) *StudentsHandler {
	return &StudentsHandler{service: service}
}

type registerStudentRequest struct {
	ExternalCode string `json:"external_code"`
	DisplayName  string `json:"display_name"`
	Image        string `json:"image,omitempty"` // base64, optional data URI prefix
}

type registerStudentResponse struct {
	StudentID string `json:"student_id"`
	Created   bool   `json:"created"`
}

// Register creates a student keyed by external code, or reuses the existing
// one, optionally enrolling a face from the supplied image.
func (h *StudentsHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerStudentRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	var imageData []byte
	if req.Image != "" {
		var err error
		imageData, err = decodeImagePayload(req.Image)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid base64 image")
			return
		}
	}

	studentID, created, err := h.service.RegisterStudent(r.Context(), req.ExternalCode, req.DisplayName, imageData)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, registerStudentResponse{StudentID: studentID, Created: created})
}

type enrollDescriptorRequest struct {
	Image      string    `json:"image,omitempty"` // base64, optional data URI prefix
	Descriptor []float32 `json:"descriptor,omitempty"`
}

// EnrollDescriptor adds a descriptor to a student, either precomputed or
// extracted from an uploaded image.
func (h *StudentsHandler) EnrollDescriptor(w http.ResponseWriter, r *http.Request) {
	var req enrollDescriptorRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	studentID := chi.URLParam(r, "id")

	var err error
	switch {
	case len(req.Descriptor) > 0:
		err = h.service.EnrollDescriptor(r.Context(), studentID, database.Descriptor(req.Descriptor))
	case req.Image != "":
		imageData, decodeErr := decodeImagePayload(req.Image)
		if decodeErr != nil {
			respondError(w, http.StatusBadRequest, "invalid base64 image")
			return
		}
		err = h.service.EnrollFace(r.Context(), studentID, imageData)
	default:
		respondError(w, http.StatusBadRequest, "either descriptor or image is required")
		return
	}
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "enrolled"})
}
