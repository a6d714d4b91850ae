package postgres

import (
	"context"
	"fmt"
)

// EnrollmentRepository provides PostgreSQL-backed course enrollment storage.
type EnrollmentRepository struct {
	pool *Pool
}

// NewEnrollmentRepository creates a new PostgreSQL enrollment repository.
func NewEnrollmentRepository(pool *Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// ListEnrolledStudentIDs returns the ids of students enrolled in a course.
func (r *EnrollmentRepository) ListEnrolledStudentIDs(ctx context.Context, courseID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT student_id FROM enrollments WHERE course_id = $1 ORDER BY student_id
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("query enrollments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan enrollment row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Enroll adds a student to a course. Enrolling twice is a no-op.
func (r *EnrollmentRepository) Enroll(ctx context.Context, courseID, studentID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO enrollments (course_id, student_id)
		VALUES ($1, $2)
		ON CONFLICT (course_id, student_id) DO NOTHING
	`, courseID, studentID)
	if err != nil {
		return fmt.Errorf("enroll student: %w", err)
	}
	return nil
}
