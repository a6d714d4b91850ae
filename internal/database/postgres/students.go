package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/pgvector/pgvector-go"
)

// StudentRepository provides PostgreSQL-backed student and descriptor storage.
type StudentRepository struct {
	pool *Pool
}

// NewStudentRepository creates a new PostgreSQL student repository.
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// ListActiveWithDescriptors returns every active student that owns at least
// one descriptor, with all descriptors attached.
func (r *StudentRepository) ListActiveWithDescriptors(ctx context.Context) ([]database.StudentEntry, error) {
	query := `
		SELECT s.id, s.external_code, s.display_name, d.embedding
		FROM students s
		JOIN descriptors d ON d.student_id = s.id
		WHERE s.active
		ORDER BY s.id, d.id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active students: %w", err)
	}
	defer rows.Close()

	var entries []database.StudentEntry
	var current *database.StudentEntry
	for rows.Next() {
		var id, code, name string
		var vec pgvector.Vector
		if err := rows.Scan(&id, &code, &name, &vec); err != nil {
			return nil, fmt.Errorf("scan student row: %w", err)
		}

		if current == nil || current.StudentID != id {
			entries = append(entries, database.StudentEntry{
				StudentID:    id,
				ExternalCode: code,
				DisplayName:  name,
				Active:       true,
			})
			current = &entries[len(entries)-1]
		}
		current.Descriptors = append(current.Descriptors, database.Descriptor(vec.Slice()))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate student rows: %w", err)
	}

	return entries, nil
}

// GetByID returns the student with the given id along with their
// descriptors, or nil if no such student exists.
func (r *StudentRepository) GetByID(ctx context.Context, studentID string) (*database.StudentEntry, error) {
	return r.getStudent(ctx, "id", studentID)
}

// GetByExternalCode returns the student with the given external code along
// with their descriptors, or nil if no such student exists.
func (r *StudentRepository) GetByExternalCode(ctx context.Context, code string) (*database.StudentEntry, error) {
	return r.getStudent(ctx, "external_code", code)
}

func (r *StudentRepository) getStudent(ctx context.Context, column, value string) (*database.StudentEntry, error) {
	var entry database.StudentEntry
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, external_code, display_name, active
		FROM students
		WHERE %s = $1
	`, column), value).Scan(&entry.StudentID, &entry.ExternalCode, &entry.DisplayName, &entry.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student by %s: %w", column, err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT embedding FROM descriptors WHERE student_id = $1 ORDER BY id
	`, entry.StudentID)
	if err != nil {
		return nil, fmt.Errorf("query student descriptors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var vec pgvector.Vector
		if err := rows.Scan(&vec); err != nil {
			return nil, fmt.Errorf("scan descriptor row: %w", err)
		}
		entry.Descriptors = append(entry.Descriptors, database.Descriptor(vec.Slice()))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate descriptor rows: %w", err)
	}

	return &entry, nil
}

// Register creates a new active student and returns its id.
func (r *StudentRepository) Register(ctx context.Context, externalCode, displayName string) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO students (id, external_code, display_name, active)
		VALUES ($1, $2, $3, TRUE)
	`, id, externalCode, displayName)
	if isUniqueViolation(err) {
		return "", fmt.Errorf("external code %s already registered: %w", externalCode, database.ErrConflict)
	}
	if err != nil {
		return "", fmt.Errorf("register student: %w", err)
	}
	return id, nil
}

// AppendDescriptor adds a descriptor to an existing student.
func (r *StudentRepository) AppendDescriptor(ctx context.Context, studentID string, descriptor database.Descriptor) error {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM students WHERE id = $1)", studentID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check student exists: %w", err)
	}
	if !exists {
		return fmt.Errorf("append descriptor: student %s: %w", studentID, database.ErrNotFound)
	}

	vec := pgvector.NewVector(descriptor)
	_, err = r.pool.Exec(ctx, `
		INSERT INTO descriptors (student_id, embedding, dim)
		VALUES ($1, $2, $3)
	`, studentID, vec, len(descriptor))
	if err != nil {
		return fmt.Errorf("append descriptor: %w", err)
	}
	return nil
}

// Deactivate marks a student inactive so they are excluded from matching
// without physical deletion.
func (r *StudentRepository) Deactivate(ctx context.Context, studentID string) error {
	result, err := r.pool.Exec(ctx, "UPDATE students SET active = FALSE WHERE id = $1", studentID)
	if err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate student: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("deactivate student %s: %w", studentID, database.ErrNotFound)
	}
	return nil
}
