package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceRepository provides PostgreSQL-backed attendance record storage.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// FindRecord returns the record for (studentID, courseID, date), or nil if
// none exists.
func (r *AttendanceRepository) FindRecord(ctx context.Context, studentID, courseID, date string) (*database.AttendanceRecord, error) {
	var rec database.AttendanceRecord
	err := r.pool.QueryRow(ctx, `
		SELECT id, student_id, course_id, session_id, date, ts, status, confidence, method, marked_by, notes
		FROM attendance_records
		WHERE student_id = $1 AND course_id = $2 AND date = $3
	`, studentID, courseID, date).Scan(
		&rec.ID,
		&rec.StudentID,
		&rec.CourseID,
		&rec.SessionID,
		&rec.Date,
		&rec.Timestamp,
		&rec.Status,
		&rec.Confidence,
		&rec.Method,
		&rec.MarkedBy,
		&rec.Notes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find attendance record: %w", err)
	}
	return &rec, nil
}

// UpsertRecord creates or overwrites the record identified by its
// (StudentID, CourseID, Date) natural key.
func (r *AttendanceRepository) UpsertRecord(ctx context.Context, record *database.AttendanceRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO attendance_records
			(id, student_id, course_id, session_id, date, ts, status, confidence, method, marked_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (student_id, course_id, date) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			ts = EXCLUDED.ts,
			status = EXCLUDED.status,
			confidence = EXCLUDED.confidence,
			method = EXCLUDED.method,
			marked_by = EXCLUDED.marked_by,
			notes = EXCLUDED.notes
	`,
		record.ID,
		record.StudentID,
		record.CourseID,
		record.SessionID,
		record.Date,
		record.Timestamp,
		record.Status,
		record.Confidence,
		record.Method,
		record.MarkedBy,
		record.Notes,
	)
	if err != nil {
		return fmt.Errorf("upsert attendance record: %w", err)
	}
	return nil
}

// ListBySession returns all records attached to a session, oldest first.
func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID string) ([]database.AttendanceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, student_id, course_id, session_id, date, ts, status, confidence, method, marked_by, notes
		FROM attendance_records
		WHERE session_id = $1
		ORDER BY ts
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session records: %w", err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		var rec database.AttendanceRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.StudentID,
			&rec.CourseID,
			&rec.SessionID,
			&rec.Date,
			&rec.Timestamp,
			&rec.Status,
			&rec.Confidence,
			&rec.Method,
			&rec.MarkedBy,
			&rec.Notes,
		); err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
