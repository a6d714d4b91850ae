// Package ledger owns the attendance-session lifecycle and the invariant
// that each student is marked at most once per course per day.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// SessionStatus is the lifecycle state of an attendance session.
type SessionStatus string

// Session lifecycle states.
const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// StatusCounts holds per-status record counts for a session. Absent is
// always derived from the roster size, never tracked independently, so the
// counts cannot drift under overwrites.
type StatusCounts struct {
	Present int `json:"present"`
	Late    int `json:"late"`
	Excused int `json:"excused"`
	Absent  int `json:"absent"`
}

// Session is a read-only view of an attendance session.
type Session struct {
	ID        string                      `json:"id"`
	CourseID  string                      `json:"course_id"`
	FacultyID string                      `json:"faculty_id"`
	Date      string                      `json:"date"`
	StartTime time.Time                   `json:"start_time"`
	EndTime   *time.Time                  `json:"end_time,omitempty"`
	Status    SessionStatus               `json:"status"`
	Roster    []string                    `json:"roster"`
	Counts    StatusCounts                `json:"counts"`
	Records   []database.AttendanceRecord `json:"records,omitempty"`
}

// session is the mutable ledger-internal state. Its mutex is the per-session
// critical section: every read-modify-write of records and counts runs under
// it, so independent sessions proceed in parallel.
type session struct {
	mu sync.Mutex

	id        string
	courseID  string
	facultyID string
	date      string
	startTime time.Time
	endTime   *time.Time
	status    SessionStatus
	roster    map[string]struct{}
	rosterIDs []string // snapshot order at session start
	records   map[string]*database.AttendanceRecord
	counts    StatusCounts
}

// view builds a copy safe to hand to callers. Caller must hold s.mu.
func (s *session) view() *Session {
	v := &Session{
		ID:        s.id,
		CourseID:  s.courseID,
		FacultyID: s.facultyID,
		Date:      s.date,
		StartTime: s.startTime,
		EndTime:   s.endTime,
		Status:    s.status,
		Roster:    append([]string(nil), s.rosterIDs...),
		Counts:    s.counts,
	}
	for _, r := range s.records {
		v.Records = append(v.Records, *r)
	}
	return v
}

// recompute rebuilds counts from the full record set. Recomputing instead of
// incrementing keeps the counts correct under any history of overwrites.
// Caller must hold s.mu.
func (s *session) recompute() {
	counts := StatusCounts{}
	for _, r := range s.records {
		switch r.Status {
		case database.StatusPresent:
			counts.Present++
		case database.StatusLate:
			counts.Late++
		case database.StatusExcused:
			counts.Excused++
		}
	}
	counts.Absent = len(s.rosterIDs) - counts.Present - counts.Late - counts.Excused
	s.counts = counts
}

// Ledger tracks active attendance sessions and writes durable records
// through the attendance store.
type Ledger struct {
	records     database.AttendanceStore
	enrollments database.EnrollmentStore

	mu          sync.RWMutex
	sessions    map[string]*session
	activeByKey map[string]string // courseID|date -> session id

	// Now returns the current time. Overridable in tests.
	Now func() time.Time
}

// New creates an empty ledger.
func New(records database.AttendanceStore, enrollments database.EnrollmentStore) *Ledger {
	return &Ledger{
		records:     records,
		enrollments: enrollments,
		sessions:    make(map[string]*session),
		activeByKey: make(map[string]string),
		Now:         time.Now,
	}
}

func sessionKey(courseID, date string) string {
	return courseID + "|" + date
}

// StartSession opens an attendance session for a course with a frozen roster
// snapshot. At most one active session exists per (course, date); starting a
// second one returns the existing session instead of creating a duplicate.
func (l *Ledger) StartSession(ctx context.Context, courseID, facultyID string) (*Session, error) {
	date := l.Now().Format("2006-01-02")

	l.mu.RLock()
	existingID, exists := l.activeByKey[sessionKey(courseID, date)]
	l.mu.RUnlock()
	if exists {
		return l.GetSession(existingID)
	}

	roster, err := l.enrollments.ListEnrolledStudentIDs(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load roster for %s: %s: %w", courseID, err, database.ErrUnavailable)
	}

	l.mu.Lock()

	// Re-check under the write lock; a concurrent start may have won.
	if existingID, exists := l.activeByKey[sessionKey(courseID, date)]; exists {
		l.mu.Unlock()
		return l.GetSession(existingID)
	}

	s := &session{
		id:        uuid.NewString(),
		courseID:  courseID,
		facultyID: facultyID,
		date:      date,
		startTime: l.Now(),
		status:    SessionActive,
		roster:    make(map[string]struct{}, len(roster)),
		rosterIDs: append([]string(nil), roster...),
		records:   make(map[string]*database.AttendanceRecord),
	}
	for _, id := range roster {
		s.roster[id] = struct{}{}
	}
	s.recompute()

	l.sessions[s.id] = s
	l.activeByKey[sessionKey(courseID, date)] = s.id
	l.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(), nil
}

// GetSession returns a view of the session with the given id.
func (l *Ledger) GetSession(sessionID string) (*Session, error) {
	l.mu.RLock()
	s, ok := l.sessions[sessionID]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, database.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(), nil
}

// ApplyAttendance creates or overwrites the attendance record for a student
// in a session and recomputes the session counts. Repeated calls for the
// same student always update the single existing record; two records for one
// (student, course, date) can never exist.
func (l *Ledger) ApplyAttendance(
	ctx context.Context,
	sessionID, studentID string,
	status database.AttendanceStatus,
	method database.MarkMethod,
	confidence float64,
	markedBy, notes string,
) (*database.AttendanceRecord, error) {
	if !database.ValidStatus(status) {
		return nil, fmt.Errorf("status %q: %w", status, database.ErrMalformedInput)
	}

	l.mu.RLock()
	s, ok := l.sessions[sessionID]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, database.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == SessionEnded {
		return nil, fmt.Errorf("session %s already ended: %w", sessionID, database.ErrInvalidState)
	}
	if _, enrolled := s.roster[studentID]; !enrolled {
		return nil, fmt.Errorf("student %s not on session roster: %w", studentID, database.ErrNotFound)
	}

	var rec database.AttendanceRecord
	if existing := s.records[studentID]; existing != nil {
		rec = *existing
	} else {
		// The record may exist durably from an earlier session the same
		// day; overwrite it rather than creating a duplicate.
		stored, err := l.records.FindRecord(ctx, studentID, s.courseID, s.date)
		if err != nil {
			return nil, fmt.Errorf("find record: %s: %w", err, database.ErrUnavailable)
		}
		if stored != nil {
			rec = *stored
		} else {
			rec = database.AttendanceRecord{
				ID:        uuid.NewString(),
				StudentID: studentID,
				CourseID:  s.courseID,
				Date:      s.date,
			}
		}
	}

	rec.SessionID = s.id
	rec.Timestamp = l.Now()
	rec.Status = status
	rec.Method = method
	rec.Confidence = confidence
	rec.MarkedBy = markedBy
	rec.Notes = notes

	// Persist first; the session only reflects committed records.
	if err := l.records.UpsertRecord(ctx, &rec); err != nil {
		return nil, fmt.Errorf("upsert record: %s: %w", err, database.ErrUnavailable)
	}

	s.records[studentID] = &rec
	s.recompute()

	copied := rec
	return &copied, nil
}

// EndSession transitions a session to its terminal state, freezing the final
// counts. Ending an already-ended session is an invalid-state error.
func (l *Ledger) EndSession(ctx context.Context, sessionID string) (*Session, error) {
	l.mu.RLock()
	s, ok := l.sessions[sessionID]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, database.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == SessionEnded {
		return nil, fmt.Errorf("session %s already ended: %w", sessionID, database.ErrInvalidState)
	}

	s.recompute()
	now := l.Now()
	s.endTime = &now
	s.status = SessionEnded

	l.mu.Lock()
	delete(l.activeByKey, sessionKey(s.courseID, s.date))
	l.mu.Unlock()

	return s.view(), nil
}
