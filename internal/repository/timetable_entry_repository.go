package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TimetableEntryRepository stores the per-class timetable rows.
type TimetableEntryRepository struct {
	db *sqlx.DB
}

// NewTimetableEntryRepository builds repository.
func NewTimetableEntryRepository(db *sqlx.DB) *TimetableEntryRepository {
	return &TimetableEntryRepository{db: db}
}

func (r *TimetableEntryRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// DeleteByClass removes every row of the class and reports how many were removed.
func (r *TimetableEntryRepository) DeleteByClass(ctx context.Context, exec sqlx.ExtContext, className string) (int64, error) {
	const query = `DELETE FROM timetable_entries WHERE class_name = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, className)
	if err != nil {
		return 0, fmt.Errorf("delete timetable entries: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("timetable entries rows affected: %w", err)
	}
	return affected, nil
}

// InsertBatch writes all entries in a single multi-row INSERT. An empty batch is a no-op.
func (r *TimetableEntryRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range entries {
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
	}

	const query = `
INSERT INTO timetable_entries (class_name, day, start_time, end_time, subject, teacher_id, status, created_at)
VALUES (:class_name, :day, :start_time, :end_time, :subject, :teacher_id, :status, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entries); err != nil {
		return fmt.Errorf("insert timetable entries: %w", err)
	}
	return nil
}

// ListByClass returns the rows of a class ordered by insertion.
func (r *TimetableEntryRepository) ListByClass(ctx context.Context, className string) ([]models.TimetableEntry, error) {
	const query = `SELECT id, class_name, day, start_time, end_time, subject, teacher_id, status, created_at
FROM timetable_entries WHERE class_name = $1 ORDER BY id ASC`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, className); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}
	return entries, nil
}

// ListBookings returns other classes' rows taught by any of the given teachers.
func (r *TimetableEntryRepository) ListBookings(ctx context.Context, excludeClass string, teacherIDs []string) ([]models.TeacherBooking, error) {
	if len(teacherIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT class_name, day, start_time, teacher_id
FROM timetable_entries WHERE class_name <> $1 AND teacher_id = ANY($2)`
	var bookings []models.TeacherBooking
	if err := r.db.SelectContext(ctx, &bookings, query, excludeClass, pq.Array(teacherIDs)); err != nil {
		return nil, fmt.Errorf("list teacher bookings: %w", err)
	}
	return bookings, nil
}
