package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const rosterCacheKey = "timetable:roster"

type teacherDirectory interface {
	ListRoster(ctx context.Context) ([]models.TeacherRosterRow, error)
	FindByName(ctx context.Context, name string) (*models.Teacher, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// RosterService serves the teacher roster used for resolution and ID lookups.
type RosterService struct {
	teachers teacherDirectory
	cache    *CacheService
	ttl      time.Duration
	logger   *zap.Logger
}

// NewRosterService constructs a roster service. cache may be nil.
func NewRosterService(teachers teacherDirectory, cache *CacheService, ttl time.Duration, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{teachers: teachers, cache: cache, ttl: ttl, logger: logger}
}

// Roster returns active teachers in resolver order.
func (s *RosterService) Roster(ctx context.Context) (timetable.Roster, error) {
	var cached timetable.Roster
	if s.cache.Get(ctx, rosterCacheKey, &cached) {
		return cached, nil
	}

	rows, err := s.teachers.ListRoster(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher roster")
	}
	roster := make(timetable.Roster, 0, len(rows))
	for _, row := range rows {
		roster = append(roster, timetable.RosterEntry{
			TeacherID: row.ID,
			Name:      row.FullName,
			Subjects:  append([]string(nil), row.Subjects...),
		})
	}
	s.cache.Set(ctx, rosterCacheKey, roster, s.ttl)
	return roster, nil
}

// Invalidate drops the cached roster.
func (s *RosterService) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx, rosterCacheKey)
}

// TeacherID maps a teacher name to its directory ID, case-insensitively. The roster is
// tried first; names outside it fall back to the directory. Unknown names return "".
func (s *RosterService) TeacherID(ctx context.Context, roster timetable.Roster, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}
	if entry, ok := roster.FindByName(name); ok && entry.TeacherID != "" {
		return entry.TeacherID, nil
	}
	teacher, err := s.teachers.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("teacher not in directory", zap.String("teacher", name))
			return "", nil
		}
		return "", err
	}
	return teacher.ID, nil
}

// TeacherName maps a stored teacher ID back to a name. The roster is tried first; IDs outside
// it, such as inactive teachers, fall back to the directory. Unknown IDs return "".
func (s *RosterService) TeacherName(ctx context.Context, roster timetable.Roster, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", nil
	}
	if entry, ok := roster.FindByID(id); ok {
		return entry.Name, nil
	}
	teacher, err := s.teachers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("teacher id not in directory", zap.String("teacher_id", id))
			return "", nil
		}
		return "", err
	}
	return teacher.FullName, nil
}
