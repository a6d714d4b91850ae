package handlers

import (
	"log"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/recognizer"
)

// RecognitionHandler handles face recognition requests.
type RecognitionHandler struct {
	service *recognizer.Service
}

// NewRecognitionHandler creates a recognition handler.
func NewRecognitionHandler(service *recognizer.Service) *RecognitionHandler {
	return &RecognitionHandler{service: service}
}

type recognizeRequest struct {
	SessionID  string    `json:"session_id"`
	Descriptor []float32 `json:"descriptor,omitempty"`
	Image      string    `json:"image,omitempty"` // base64, optional data URI prefix
}

// Recognize matches a captured face against the session roster. The caller
// sends either a precomputed descriptor or a base64 image; images go through
// the descriptor service first.
func (h *RecognitionHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	var req recognizeRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	var result *recognizer.Result
	var err error
	switch {
	case len(req.Descriptor) > 0:
		result, err = h.service.Recognize(r.Context(), req.SessionID, database.Descriptor(req.Descriptor))
	case req.Image != "":
		imageData, decodeErr := decodeImagePayload(req.Image)
		if decodeErr != nil {
			respondError(w, http.StatusBadRequest, "invalid base64 image")
			return
		}
		result, err = h.service.RecognizeImage(r.Context(), req.SessionID, imageData)
	default:
		respondError(w, http.StatusBadRequest, "either descriptor or image is required")
		return
	}
	if err != nil {
		log.Printf("recognition failed for session %s: %v", req.SessionID, err)
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ReloadDescriptors discards the descriptor cache and reloads it from storage.
func (h *RecognitionHandler) ReloadDescriptors(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ReloadDescriptors(r.Context()); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}
