package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type timetableEntryStore interface {
	DeleteByClass(ctx context.Context, exec sqlx.ExtContext, className string) (int64, error)
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error
	ListByClass(ctx context.Context, className string) ([]models.TimetableEntry, error)
	ListBookings(ctx context.Context, excludeClass string, teacherIDs []string) ([]models.TeacherBooking, error)
}

type timetableLifecycleStore interface {
	Get(ctx context.Context, className string) (*models.TimetableLifecycle, error)
	Upsert(ctx context.Context, exec sqlx.ExtContext, lc *models.TimetableLifecycle) error
}

type teacherIDLookup interface {
	TeacherID(ctx context.Context, roster timetable.Roster, name string) (string, error)
	TeacherName(ctx context.Context, roster timetable.Roster, id string) (string, error)
}

// SaveInput is one replace-all write of a class timetable.
type SaveInput struct {
	ClassName string
	Snapshot  timetable.Snapshot
	Calendar  timetable.Calendar
	Roster    timetable.Roster
	Status    timetable.Status
}

// SaveResult summarises a completed write.
type SaveResult struct {
	ClassName string
	Status    timetable.Status
	Entries   int
	Replaced  int64
	Clashes   []timetable.Clash
}

// LoadResult is a stored timetable rebuilt over a calendar.
type LoadResult struct {
	ClassName string
	Snapshot  timetable.Snapshot
	// Status is the row-level status, or the class lifecycle when no rows exist.
	Status timetable.Status
	// Published reports whether the class has ever been published.
	Published bool
	Rows      int
	Dropped   int
}

// TimetableSyncService writes grid snapshots to the store and reads them back.
type TimetableSyncService struct {
	tx         txProvider
	entries    timetableEntryStore
	lifecycles timetableLifecycleStore
	teachers   teacherIDLookup
	guard      *SaveGuard
	resolver   timetable.Resolver
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewTimetableSyncService wires persistence dependencies.
func NewTimetableSyncService(
	tx txProvider,
	entries timetableEntryStore,
	lifecycles timetableLifecycleStore,
	teachers teacherIDLookup,
	guard *SaveGuard,
	resolver timetable.Resolver,
	metrics *MetricsService,
	logger *zap.Logger,
) *TimetableSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if guard == nil {
		guard = NewSaveGuard(nil, 0, logger)
	}
	return &TimetableSyncService{
		tx:         tx,
		entries:    entries,
		lifecycles: lifecycles,
		teachers:   teachers,
		guard:      guard,
		resolver:   resolver,
		metrics:    metrics,
		logger:     logger,
	}
}

// Save deletes every stored row of the class and inserts the snapshot in one transaction.
// A second save of the same class fails fast while the first is running.
func (s *TimetableSyncService) Save(ctx context.Context, in SaveInput) (result *SaveResult, err error) {
	className := strings.TrimSpace(in.ClassName)
	if className == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class name is required")
	}
	if in.Status != timetable.StatusDraft && in.Status != timetable.StatusPublished {
		return nil, timetable.ErrInvalidStatus
	}
	if err := in.Snapshot.Validate(in.Calendar); err != nil {
		return nil, err
	}

	release, err := s.guard.Acquire(ctx, className)
	if err != nil {
		if errors.Is(err, appErrors.ErrSaveInProgress) {
			s.metrics.RecordSave(string(in.Status), outcomeConflict, 0)
		}
		return nil, err
	}
	defer release()

	start := time.Now()
	defer func() {
		if err != nil {
			s.metrics.RecordSave(string(in.Status), outcomeFailure, 0)
			s.logger.Error("timetable save failed", zap.String("class", className), zap.String("status", string(in.Status)), zap.Error(err))
			return
		}
		s.metrics.RecordSave(string(in.Status), outcomeSuccess, time.Since(start))
	}()

	rows, err := s.buildEntries(ctx, className, in)
	if err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrPersistence, err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	replaced, err := s.entries.DeleteByClass(ctx, tx, className)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrPersistence, err, "failed to delete stored timetable")
	}
	if err = s.entries.InsertBatch(ctx, tx, rows); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrPersistence, err, "failed to insert timetable entries")
	}

	lc := &models.TimetableLifecycle{ClassName: className, Status: string(in.Status)}
	if in.Status == timetable.StatusPublished {
		now := time.Now().UTC()
		lc.PublishedAt = &now
	}
	if err = s.lifecycles.Upsert(ctx, tx, lc); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrPersistence, err, "failed to record timetable lifecycle")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrPersistence, err, "failed to commit timetable")
	}

	s.logger.Info("timetable saved",
		zap.String("class", className),
		zap.String("status", string(in.Status)),
		zap.Int("entries", len(rows)),
		zap.Int64("replaced", replaced),
	)

	return &SaveResult{
		ClassName: className,
		Status:    in.Status,
		Entries:   len(rows),
		Replaced:  replaced,
		Clashes:   s.clashes(ctx, className, in, rows),
	}, nil
}

// buildEntries walks the calendar in display order and emits one row per occupied slot.
func (s *TimetableSyncService) buildEntries(ctx context.Context, className string, in SaveInput) ([]models.TimetableEntry, error) {
	ids := make(map[string]*string)
	var rows []models.TimetableEntry
	for _, slot := range in.Calendar.AssignableSlots() {
		subject, ok := in.Snapshot.Subjects[slot]
		if !ok {
			continue
		}
		period, _ := in.Calendar.Period(slot.Period)
		entry := models.TimetableEntry{
			ClassName: className,
			Day:       slot.Day,
			StartTime: period.Start,
			EndTime:   period.End,
			Subject:   subject,
			Status:    string(in.Status),
		}
		if teacher, has := in.Snapshot.Teachers[slot]; has {
			key := strings.ToLower(strings.TrimSpace(teacher.Name))
			id, cached := ids[key]
			if !cached {
				found, err := s.teachers.TeacherID(ctx, in.Roster, teacher.Name)
				if err != nil {
					return nil, appErrors.WrapAs(appErrors.ErrPersistence, err, "failed to look up teacher "+teacher.Name)
				}
				if found != "" {
					id = &found
				}
				ids[key] = id
			}
			entry.TeacherID = id
		}
		rows = append(rows, entry)
	}
	return rows, nil
}

// clashes reports other classes holding the same teacher at the same day and start time.
// Lookup failures are logged and yield no warnings.
func (s *TimetableSyncService) clashes(ctx context.Context, className string, in SaveInput, rows []models.TimetableEntry) []timetable.Clash {
	seen := make(map[string]struct{})
	var ids []string
	for _, row := range rows {
		if row.TeacherID == nil {
			continue
		}
		if _, ok := seen[*row.TeacherID]; ok {
			continue
		}
		seen[*row.TeacherID] = struct{}{}
		ids = append(ids, *row.TeacherID)
	}
	if len(ids) == 0 {
		return nil
	}

	stored, err := s.entries.ListBookings(ctx, className, ids)
	if err != nil {
		s.logger.Warn("teacher clash lookup failed", zap.String("class", className), zap.Error(err))
		return nil
	}
	names := newTeacherNames(s.teachers, in.Roster)
	bookings := make([]timetable.Booking, 0, len(stored))
	for _, b := range stored {
		period, ok := in.Calendar.PeriodByStart(b.StartTime)
		if !ok || period.Break {
			continue
		}
		name, err := names.lookup(ctx, b.TeacherID)
		if err != nil {
			s.logger.Warn("teacher clash lookup failed", zap.String("class", className), zap.Error(err))
			return nil
		}
		if name == "" {
			continue
		}
		bookings = append(bookings, timetable.Booking{
			ClassName: b.ClassName,
			Slot:      timetable.SlotKey{Day: b.Day, Period: period.Name},
			Teacher:   name,
		})
	}
	clashes := timetable.DetectClashes(className, in.Snapshot, bookings)
	s.metrics.RecordClashes(len(clashes))
	return clashes
}

// Lifecycle returns the class-level publish state. Classes never saved start as Draft.
func (s *TimetableSyncService) Lifecycle(ctx context.Context, className string) (*timetable.Lifecycle, error) {
	lc, err := s.lifecycles.Get(ctx, className)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return timetable.NewLifecycle(className, timetable.StatusDraft), nil
	case err != nil:
		return nil, appErrors.WrapAs(appErrors.ErrPersistence, err, "failed to load timetable lifecycle")
	}
	status := timetable.StatusDraft
	if lc.PublishedAt != nil || lc.Status == string(timetable.StatusPublished) {
		status = timetable.StatusPublished
	}
	return timetable.NewLifecycle(className, status), nil
}

// Load rebuilds the stored timetable of a class. Rows whose day or start time do not match
// the calendar are dropped; teacher IDs unknown to the directory are left unassigned.
func (s *TimetableSyncService) Load(ctx context.Context, className string, calendar timetable.Calendar, roster timetable.Roster) (*LoadResult, error) {
	className = strings.TrimSpace(className)
	if className == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class name is required")
	}

	rows, err := s.entries.ListByClass(ctx, className)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrPersistence, err, "failed to load timetable")
	}

	lifecycle, err := s.Lifecycle(ctx, className)
	if err != nil {
		return nil, err
	}
	published := lifecycle.Published()

	result := &LoadResult{
		ClassName: className,
		Snapshot: timetable.Snapshot{
			Subjects: make(map[timetable.SlotKey]string, len(rows)),
			Teachers: make(map[timetable.SlotKey]timetable.SlotTeacher, len(rows)),
		},
		Status:    timetable.StatusDraft,
		Published: published,
		Rows:      len(rows),
	}

	names := newTeacherNames(s.teachers, roster)
	rowPublished := false
	for _, row := range rows {
		if row.Status == string(timetable.StatusPublished) {
			rowPublished = true
		}
		period, ok := calendar.PeriodByStart(row.StartTime)
		if !ok || period.Break || !calendar.HasDay(row.Day) || strings.TrimSpace(row.Subject) == "" {
			result.Dropped++
			continue
		}
		slot := timetable.SlotKey{Day: row.Day, Period: period.Name}
		result.Snapshot.Subjects[slot] = row.Subject
		delete(result.Snapshot.Teachers, slot)
		if row.TeacherID == nil {
			continue
		}
		name, err := names.lookup(ctx, *row.TeacherID)
		if err != nil {
			return nil, appErrors.WrapAs(appErrors.ErrPersistence, err, "failed to look up teacher "+*row.TeacherID)
		}
		if name == "" {
			continue
		}
		result.Snapshot.Teachers[slot] = timetable.SlotTeacher{
			Name:   name,
			Source: teacherSource(s.resolver, row.Subject, name, roster),
		}
	}

	switch {
	case len(rows) > 0 && rowPublished:
		result.Status = timetable.StatusPublished
	case len(rows) == 0 && published:
		result.Status = timetable.StatusPublished
	}

	if result.Dropped > 0 {
		s.logger.Warn("dropped stored timetable rows outside the calendar",
			zap.String("class", className), zap.Int("dropped", result.Dropped))
	}
	return result, nil
}

// teacherNames memoises ID to name lookups for one load or save.
type teacherNames struct {
	lookupFn teacherIDLookup
	roster   timetable.Roster
	names    map[string]string
}

func newTeacherNames(lookup teacherIDLookup, roster timetable.Roster) *teacherNames {
	return &teacherNames{lookupFn: lookup, roster: roster, names: make(map[string]string)}
}

func (t *teacherNames) lookup(ctx context.Context, id string) (string, error) {
	if name, ok := t.names[id]; ok {
		return name, nil
	}
	name, err := t.lookupFn.TeacherName(ctx, t.roster, id)
	if err != nil {
		return "", err
	}
	t.names[id] = name
	return name, nil
}
