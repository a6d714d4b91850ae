// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// MockStudentStore is a mock implementation of database.StudentStore
type MockStudentStore struct {
	mu       sync.RWMutex
	students map[string]*database.StudentEntry
	nextID   int

	// Error injection
	ListError     error
	GetError      error
	RegisterError error
	AppendError   error
}

// NewMockStudentStore creates a new mock student store
func NewMockStudentStore() *MockStudentStore {
	return &MockStudentStore{
		students: make(map[string]*database.StudentEntry),
	}
}

// AddStudent adds a student to the mock store
func (m *MockStudentStore) AddStudent(entry database.StudentEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[entry.StudentID] = &entry
}

// ListActiveWithDescriptors returns active students that own at least one descriptor
func (m *MockStudentStore) ListActiveWithDescriptors(ctx context.Context) ([]database.StudentEntry, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []database.StudentEntry
	for _, s := range m.students {
		if s.Active && len(s.Descriptors) > 0 {
			entries = append(entries, *s)
		}
	}
	return entries, nil
}

// GetByID returns the student with the given id, or nil
func (m *MockStudentStore) GetByID(ctx context.Context, studentID string) (*database.StudentEntry, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.students[studentID]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

// GetByExternalCode returns the student with the given external code, or nil
func (m *MockStudentStore) GetByExternalCode(ctx context.Context, code string) (*database.StudentEntry, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.students {
		if s.ExternalCode == code {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

// Register creates a new active student and returns its id
func (m *MockStudentStore) Register(ctx context.Context, externalCode, displayName string) (string, error) {
	if m.RegisterError != nil {
		return "", m.RegisterError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.students {
		if s.ExternalCode == externalCode {
			return "", fmt.Errorf("external code %s already registered: %w", externalCode, database.ErrConflict)
		}
	}

	m.nextID++
	id := fmt.Sprintf("student-%d", m.nextID)
	m.students[id] = &database.StudentEntry{
		StudentID:    id,
		ExternalCode: externalCode,
		DisplayName:  displayName,
		Active:       true,
	}
	return id, nil
}

// AppendDescriptor adds a descriptor to an existing student
func (m *MockStudentStore) AppendDescriptor(ctx context.Context, studentID string, descriptor database.Descriptor) error {
	if m.AppendError != nil {
		return m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.students[studentID]
	if !ok {
		return fmt.Errorf("append descriptor: student %s: %w", studentID, database.ErrNotFound)
	}
	s.Descriptors = append(s.Descriptors, descriptor)
	return nil
}

// MockEnrollmentStore is a mock implementation of database.EnrollmentStore
type MockEnrollmentStore struct {
	mu          sync.RWMutex
	enrollments map[string][]string // courseID -> student ids

	// Error injection
	ListError   error
	EnrollError error
}

// NewMockEnrollmentStore creates a new mock enrollment store
func NewMockEnrollmentStore() *MockEnrollmentStore {
	return &MockEnrollmentStore{
		enrollments: make(map[string][]string),
	}
}

// ListEnrolledStudentIDs returns the ids of students enrolled in a course
func (m *MockEnrollmentStore) ListEnrolledStudentIDs(ctx context.Context, courseID string) ([]string, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, len(m.enrollments[courseID]))
	copy(ids, m.enrollments[courseID])
	return ids, nil
}

// Enroll adds a student to a course
func (m *MockEnrollmentStore) Enroll(ctx context.Context, courseID, studentID string) error {
	if m.EnrollError != nil {
		return m.EnrollError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.enrollments[courseID] {
		if id == studentID {
			return nil
		}
	}
	m.enrollments[courseID] = append(m.enrollments[courseID], studentID)
	return nil
}

// MockAttendanceStore is a mock implementation of database.AttendanceStore
type MockAttendanceStore struct {
	mu      sync.RWMutex
	records map[string]*database.AttendanceRecord // keyed by studentID|courseID|date

	// Error injection
	FindError   error
	UpsertError error
}

// NewMockAttendanceStore creates a new mock attendance store
func NewMockAttendanceStore() *MockAttendanceStore {
	return &MockAttendanceStore{
		records: make(map[string]*database.AttendanceRecord),
	}
}

func recordKey(studentID, courseID, date string) string {
	return studentID + "|" + courseID + "|" + date
}

// FindRecord returns the record for (studentID, courseID, date), or nil
func (m *MockAttendanceStore) FindRecord(ctx context.Context, studentID, courseID, date string) (*database.AttendanceRecord, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[recordKey(studentID, courseID, date)]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

// UpsertRecord creates or overwrites a record by its natural key
func (m *MockAttendanceStore) UpsertRecord(ctx context.Context, record *database.AttendanceRecord) error {
	if m.UpsertError != nil {
		return m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *record
	m.records[recordKey(record.StudentID, record.CourseID, record.Date)] = &copied
	return nil
}

// Count returns the number of stored records
func (m *MockAttendanceStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
