package database

import (
	"time"
)

// Descriptor is a fixed-length face descriptor vector. Immutable once captured.
type Descriptor []float32

// StudentEntry represents an enrolled student with their face descriptors.
type StudentEntry struct {
	StudentID    string
	DisplayName  string
	ExternalCode string
	Active       bool
	Descriptors  []Descriptor
}

// AttendanceStatus is the state of a student's attendance record.
type AttendanceStatus string

// Attendance statuses. Absent is never stored on automatic recognition;
// it exists for explicit manual overrides and derived session counts.
const (
	StatusPresent AttendanceStatus = "present"
	StatusLate    AttendanceStatus = "late"
	StatusExcused AttendanceStatus = "excused"
	StatusAbsent  AttendanceStatus = "absent"
)

// ValidStatus reports whether s is a known attendance status.
func ValidStatus(s AttendanceStatus) bool {
	switch s {
	case StatusPresent, StatusLate, StatusExcused, StatusAbsent:
		return true
	}
	return false
}

// MarkMethod records how an attendance record was produced.
type MarkMethod string

// Mark methods.
const (
	MethodAutomatic MarkMethod = "automatic"
	MethodManual    MarkMethod = "manual"
)

// AttendanceRecord is a durable attendance entry. At most one record exists
// per (StudentID, CourseID, Date); repeated marks overwrite in place.
type AttendanceRecord struct {
	ID         string           `json:"id"`
	StudentID  string           `json:"student_id"`
	CourseID   string           `json:"course_id"`
	SessionID  string           `json:"session_id"`
	Date       string           `json:"date"` // calendar day, YYYY-MM-DD
	Timestamp  time.Time        `json:"timestamp"`
	Status     AttendanceStatus `json:"status"`
	Confidence float64          `json:"confidence,omitempty"`
	Method     MarkMethod       `json:"method"`
	MarkedBy   string           `json:"marked_by,omitempty"`
	Notes      string           `json:"notes,omitempty"`
}
