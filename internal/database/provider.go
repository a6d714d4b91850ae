package database

import "context"

// StudentStore provides access to persistent student and descriptor storage.
type StudentStore interface {
	// ListActiveWithDescriptors returns every active student that owns at
	// least one descriptor.
	ListActiveWithDescriptors(ctx context.Context) ([]StudentEntry, error)

	// GetByID returns the student with the given id, or nil if no such
	// student exists.
	GetByID(ctx context.Context, studentID string) (*StudentEntry, error)

	// GetByExternalCode returns the student with the given external code,
	// or nil if no such student exists.
	GetByExternalCode(ctx context.Context, code string) (*StudentEntry, error)

	// Register creates a new active student and returns its id.
	Register(ctx context.Context, externalCode, displayName string) (string, error)

	// AppendDescriptor adds a descriptor to an existing student.
	AppendDescriptor(ctx context.Context, studentID string, descriptor Descriptor) error
}

// EnrollmentStore provides course enrollment lookups.
type EnrollmentStore interface {
	// ListEnrolledStudentIDs returns the ids of students enrolled in a course.
	ListEnrolledStudentIDs(ctx context.Context, courseID string) ([]string, error)

	// Enroll adds a student to a course. Enrolling twice is a no-op.
	Enroll(ctx context.Context, courseID, studentID string) error
}

// AttendanceStore provides access to persistent attendance records.
type AttendanceStore interface {
	// FindRecord returns the record for (studentID, courseID, date),
	// or nil if none exists.
	FindRecord(ctx context.Context, studentID, courseID, date string) (*AttendanceRecord, error)

	// UpsertRecord creates or overwrites the record identified by its
	// (StudentID, CourseID, Date) natural key.
	UpsertRecord(ctx context.Context, record *AttendanceRecord) error
}
