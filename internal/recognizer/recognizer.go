// Package recognizer glues the descriptor cache, the matcher and the
// attendance ledger into the recognition workflow: descriptor in, ranked
// candidates out, with high-confidence matches marked present automatically.
package recognizer

import (
	"context"
	"fmt"
	"log"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/descriptors"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/matcher"
)

// AutoMarkedBy identifies unattended marks in attendance records.
const AutoMarkedBy = "face-recognition"

// Result is the outcome of one recognition call.
type Result struct {
	// Matches holds every qualified candidate, best first.
	Matches []matcher.Candidate `json:"matches"`

	// AutoMarked holds the records written for candidates whose score
	// reached the auto-mark floor. Candidates below it stay in Matches
	// as suggestions for manual confirmation.
	AutoMarked []database.AttendanceRecord `json:"auto_marked,omitempty"`

	// Stale is true when matching ran against an outdated descriptor
	// snapshot because a reload failed.
	Stale bool `json:"stale,omitempty"`
}

// Service coordinates recognition against a session roster.
type Service struct {
	students  database.StudentStore
	cache     *descriptors.Cache
	ledger    *ledger.Ledger
	extractor extractor.Extractor
	cfg       config.RecognitionConfig
}

// New creates a recognition service.
func New(
	students database.StudentStore,
	cache *descriptors.Cache,
	ldg *ledger.Ledger,
	ext extractor.Extractor,
	cfg config.RecognitionConfig,
) *Service {
	return &Service{
		students:  students,
		cache:     cache,
		ledger:    ldg,
		extractor: ext,
		cfg:       cfg,
	}
}

// Recognize matches an input descriptor against the roster of an active
// session. Candidates scoring at or above the auto-mark floor are written to
// the ledger as present; the rest qualify only as suggestions.
func (s *Service) Recognize(ctx context.Context, sessionID string, input database.Descriptor) (*Result, error) {
	if len(input) != s.cfg.Dim {
		return nil, fmt.Errorf("descriptor has %d dimensions, expected %d: %w",
			len(input), s.cfg.Dim, database.ErrMalformedInput)
	}

	session, err := s.ledger.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == ledger.SessionEnded {
		return nil, fmt.Errorf("session %s already ended: %w", sessionID, database.ErrInvalidState)
	}

	snap, err := s.cache.Snapshot(ctx)
	if snap == nil {
		return nil, err
	}
	result := &Result{}
	if err != nil {
		// Stale snapshot beats no recognition at all.
		log.Printf("descriptor cache reload failed, matching against snapshot from %s: %v",
			snap.LoadedAt().Format("15:04:05"), err)
		result.Stale = true
	}

	result.Matches = matcher.Match(snap, input, session.Roster, matcher.Options{
		Accept: s.cfg.Accept,
		TopN:   s.cfg.TopN,
	})

	for _, c := range result.Matches {
		if c.Score < s.cfg.AutoMark {
			continue
		}
		rec, err := s.ledger.ApplyAttendance(ctx, sessionID, c.StudentID,
			database.StatusPresent, database.MethodAutomatic, c.Score, AutoMarkedBy, "")
		if err != nil {
			return nil, fmt.Errorf("auto-mark student %s: %w", c.StudentID, err)
		}
		result.AutoMarked = append(result.AutoMarked, *rec)
	}

	return result, nil
}

// RecognizeImage extracts a descriptor from raw image bytes and runs
// Recognize with it.
func (s *Service) RecognizeImage(ctx context.Context, sessionID string, imageData []byte) (*Result, error) {
	desc, err := s.extractor.Extract(ctx, imageData)
	if err != nil {
		return nil, err
	}
	return s.Recognize(ctx, sessionID, desc)
}

// MarkManual records a faculty decision for a student in a session. It
// overwrites any earlier mark for the same student, automatic ones included.
func (s *Service) MarkManual(
	ctx context.Context,
	sessionID, studentID string,
	status database.AttendanceStatus,
	markedBy, notes string,
) (*database.AttendanceRecord, error) {
	return s.ledger.ApplyAttendance(ctx, sessionID, studentID, status,
		database.MethodManual, 0, markedBy, notes)
}

// RegisterStudent creates a student keyed by external code, or reuses the
// existing one, and enrolls the face from the optional image. Returns the
// student id and whether a new student was created.
func (s *Service) RegisterStudent(ctx context.Context, externalCode, displayName string, imageData []byte) (string, bool, error) {
	if externalCode == "" || displayName == "" {
		return "", false, fmt.Errorf("external code and display name are required: %w", database.ErrMalformedInput)
	}

	existing, err := s.students.GetByExternalCode(ctx, externalCode)
	if err != nil {
		return "", false, fmt.Errorf("lookup student %s: %s: %w", externalCode, err, database.ErrUnavailable)
	}

	var studentID string
	created := false
	if existing != nil {
		studentID = existing.StudentID
	} else {
		studentID, err = s.students.Register(ctx, externalCode, displayName)
		if err != nil {
			return "", false, fmt.Errorf("register student %s: %s: %w", externalCode, err, database.ErrUnavailable)
		}
		created = true
	}

	if len(imageData) > 0 {
		if err := s.EnrollFace(ctx, studentID, imageData); err != nil {
			return studentID, created, err
		}
	}

	return studentID, created, nil
}

// EnrollFace extracts a descriptor from an image and appends it to the
// student's enrollment, both durably and in the cache.
func (s *Service) EnrollFace(ctx context.Context, studentID string, imageData []byte) error {
	desc, err := s.extractor.Extract(ctx, imageData)
	if err != nil {
		return err
	}
	return s.EnrollDescriptor(ctx, studentID, desc)
}

// EnrollDescriptor appends a precomputed descriptor to the student's
// enrollment, both durably and in the cache.
func (s *Service) EnrollDescriptor(ctx context.Context, studentID string, desc database.Descriptor) error {
	if len(desc) != s.cfg.Dim {
		return fmt.Errorf("descriptor has %d dimensions, expected %d: %w",
			len(desc), s.cfg.Dim, database.ErrMalformedInput)
	}
	return s.cache.AddDescriptor(ctx, studentID, desc)
}

// ReloadDescriptors discards the cached descriptor set and loads a fresh one.
func (s *Service) ReloadDescriptors(ctx context.Context) error {
	s.cache.Invalidate()
	return s.cache.Load(ctx)
}
