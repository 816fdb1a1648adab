package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TimetableLifecycleRepository persists the class-level publish flag.
type TimetableLifecycleRepository struct {
	db *sqlx.DB
}

// NewTimetableLifecycleRepository constructs repository.
func NewTimetableLifecycleRepository(db *sqlx.DB) *TimetableLifecycleRepository {
	return &TimetableLifecycleRepository{db: db}
}

func (r *TimetableLifecycleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Get loads the lifecycle of a class. It returns sql.ErrNoRows for classes never saved.
func (r *TimetableLifecycleRepository) Get(ctx context.Context, className string) (*models.TimetableLifecycle, error) {
	const query = `SELECT class_name, status, published_at, updated_at FROM timetable_lifecycles WHERE class_name = $1`
	var lc models.TimetableLifecycle
	if err := r.db.GetContext(ctx, &lc, query, className); err != nil {
		return nil, err
	}
	return &lc, nil
}

// Upsert records the latest save. A stored published_at is never overwritten or cleared,
// and a Published status never goes back to Draft.
func (r *TimetableLifecycleRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, lc *models.TimetableLifecycle) error {
	if lc == nil || lc.ClassName == "" {
		return fmt.Errorf("class_name is required")
	}
	lc.UpdatedAt = time.Now().UTC()

	const query = `
INSERT INTO timetable_lifecycles (class_name, status, published_at, updated_at)
VALUES (:class_name, :status, :published_at, :updated_at)
ON CONFLICT (class_name) DO UPDATE
SET status = CASE WHEN timetable_lifecycles.published_at IS NOT NULL THEN 'Published' ELSE EXCLUDED.status END,
    published_at = COALESCE(timetable_lifecycles.published_at, EXCLUDED.published_at),
    updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, lc); err != nil {
		return fmt.Errorf("upsert timetable lifecycle: %w", err)
	}
	return nil
}
