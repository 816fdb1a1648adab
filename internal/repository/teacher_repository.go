package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TeacherRepository reads the teacher directory.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// ListRoster returns active teachers with their subjects, oldest first. The order is the
// resolver's tie-break order and must stay stable.
func (r *TeacherRepository) ListRoster(ctx context.Context) ([]models.TeacherRosterRow, error) {
	const query = `SELECT t.id, t.full_name,
COALESCE(array_agg(ts.subject_name ORDER BY ts.position, ts.subject_name) FILTER (WHERE ts.subject_name IS NOT NULL), '{}') AS subjects
FROM teachers t LEFT JOIN teacher_subjects ts ON ts.teacher_id = t.id
WHERE t.active = TRUE
GROUP BY t.id, t.full_name, t.created_at
ORDER BY t.created_at ASC, t.id ASC`
	var rows []models.TeacherRosterRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list teacher roster: %w", err)
	}
	return rows, nil
}

// FindByName fetches a teacher by full name, ignoring case.
func (r *TeacherRepository) FindByName(ctx context.Context, name string) (*models.Teacher, error) {
	const query = `SELECT id, full_name, email, active, created_at FROM teachers WHERE LOWER(full_name) = LOWER($1) ORDER BY created_at ASC LIMIT 1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, name); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// FindByID fetches a teacher by ID regardless of the active flag.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	const query = `SELECT id, full_name, email, active, created_at FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}
