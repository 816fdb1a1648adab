package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/notify"
)

const (
	originGenerated = "generated"
	originStored    = "stored"
)

// ErrSessionNotFound is returned for unknown or expired editor sessions.
var ErrSessionNotFound = appErrors.Clone(appErrors.ErrNotFound, "timetable session not found or expired")

type rosterProvider interface {
	Roster(ctx context.Context) (timetable.Roster, error)
	Invalidate(ctx context.Context) error
}

type timetableStore interface {
	Save(ctx context.Context, in SaveInput) (*SaveResult, error)
	Load(ctx context.Context, className string, calendar timetable.Calendar, roster timetable.Roster) (*LoadResult, error)
	Lifecycle(ctx context.Context, className string) (*timetable.Lifecycle, error)
}

type candidateGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest, calendar timetable.Calendar, roster timetable.Roster) (*Candidate, error)
}

type publishNotifier interface {
	Notify(ctx context.Context, msg notify.Message) error
}

// TimetableServiceConfig governs editor behaviour.
type TimetableServiceConfig struct {
	Calendar   timetable.Calendar
	Grid       timetable.GridOptions
	SessionTTL time.Duration
}

// TimetableService runs editor sessions: each holds one class grid between generate or open
// and save or publish.
type TimetableService struct {
	roster    rosterProvider
	store     timetableStore
	generator candidateGenerator
	notifier  publishNotifier
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       TimetableServiceConfig
	sessions  *sessionStore
	now       func() time.Time
}

// NewTimetableService wires the editor. generator and notifier may be nil.
func NewTimetableService(
	roster rosterProvider,
	store timetableStore,
	generator candidateGenerator,
	notifier publishNotifier,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg TimetableServiceConfig,
) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	if len(cfg.Calendar.Days) == 0 {
		cfg.Calendar = timetable.DefaultCalendar()
	}
	return &TimetableService{
		roster:    roster,
		store:     store,
		generator: generator,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		sessions:  newSessionStore(cfg.SessionTTL),
		now:       time.Now,
	}
}

// Calendar describes the teaching week.
func (s *TimetableService) Calendar() dto.CalendarResponse {
	return dto.CalendarResponse{
		Days:    append([]string{}, s.cfg.Calendar.Days...),
		Periods: append([]timetable.Period{}, s.cfg.Calendar.Periods...),
	}
}

// Roster lists the teachers used for resolution.
func (s *TimetableService) Roster(ctx context.Context) (*dto.RosterResponse, error) {
	roster, err := s.roster.Roster(ctx)
	if err != nil {
		return nil, err
	}
	teachers := append([]timetable.RosterEntry{}, roster...)
	subjects := roster.Subjects()
	if subjects == nil {
		subjects = []string{}
	}
	return &dto.RosterResponse{Teachers: teachers, Subjects: subjects}, nil
}

// RefreshRoster drops the cached roster and reloads it from the teacher directory.
func (s *TimetableService) RefreshRoster(ctx context.Context) (*dto.RosterResponse, error) {
	if err := s.roster.Invalidate(ctx); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to refresh teacher roster")
	}
	return s.Roster(ctx)
}

// Generate asks the collaborator for a week and opens a session seeded with it.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableSessionResponse, error) {
	if s.generator == nil {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "timetable generation is not configured")
	}
	roster, err := s.roster.Roster(ctx)
	if err != nil {
		return nil, err
	}
	candidate, err := s.generator.Generate(ctx, req, s.cfg.Calendar, roster)
	if err != nil {
		return nil, err
	}
	lifecycle, err := s.store.Lifecycle(ctx, candidate.ClassName)
	if err != nil {
		return nil, err
	}

	grid := timetable.NewGrid(s.cfg.Calendar, roster, s.cfg.Grid)
	if err := grid.Seed(candidate.Snapshot); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrGeneration, err, "generated timetable does not fit the calendar")
	}
	sess := s.openSession(candidate.ClassName, originGenerated, grid, lifecycle)
	sess.suggestions = candidate.Suggestions
	s.logger.Info("timetable session opened",
		zap.String("session_id", sess.id),
		zap.String("class", sess.className),
		zap.String("origin", originGenerated),
		zap.Int("lessons", candidate.Snapshot.Len()),
	)
	return s.view(sess), nil
}

// Open starts a session from the stored timetable of className.
func (s *TimetableService) Open(ctx context.Context, className string) (*dto.TimetableSessionResponse, error) {
	className = strings.TrimSpace(className)
	if className == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class name is required")
	}
	roster, err := s.roster.Roster(ctx)
	if err != nil {
		return nil, err
	}
	loaded, err := s.store.Load(ctx, className, s.cfg.Calendar, roster)
	if err != nil {
		return nil, err
	}

	grid := timetable.NewGrid(s.cfg.Calendar, roster, s.cfg.Grid)
	if err := grid.Seed(loaded.Snapshot); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "stored timetable could not be opened")
	}
	status := timetable.StatusDraft
	if loaded.Published {
		status = timetable.StatusPublished
	}
	sess := s.openSession(className, originStored, grid, timetable.NewLifecycle(className, status))
	sess.dropped = loaded.Dropped
	s.logger.Info("timetable session opened",
		zap.String("session_id", sess.id),
		zap.String("class", className),
		zap.String("origin", originStored),
		zap.Int("rows", loaded.Rows),
	)
	resp := s.view(sess)
	// the stored row status is what the class currently shows downstream
	resp.Status = loaded.Status
	return resp, nil
}

// Get returns the current state of a session.
func (s *TimetableService) Get(ctx context.Context, id string) (*dto.TimetableSessionResponse, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

// Assign places subject in slot. An empty subject clears the slot.
func (s *TimetableService) Assign(ctx context.Context, id, slot, subject string) (*dto.TimetableSessionResponse, error) {
	return s.mutate(id, slot, func(g *timetable.Grid, key timetable.SlotKey) error {
		return g.Assign(key, subject)
	})
}

// Clear frees slot.
func (s *TimetableService) Clear(ctx context.Context, id, slot string) (*dto.TimetableSessionResponse, error) {
	return s.mutate(id, slot, func(g *timetable.Grid, key timetable.SlotKey) error {
		g.Clear(key)
		return nil
	})
}

// OverrideTeacher pins teacher to an occupied slot.
func (s *TimetableService) OverrideTeacher(ctx context.Context, id, slot, teacher string) (*dto.TimetableSessionResponse, error) {
	return s.mutate(id, slot, func(g *timetable.Grid, key timetable.SlotKey) error {
		return g.OverrideTeacher(key, teacher)
	})
}

// ClearOverride returns slot to its resolved teacher.
func (s *TimetableService) ClearOverride(ctx context.Context, id, slot string) (*dto.TimetableSessionResponse, error) {
	return s.mutate(id, slot, func(g *timetable.Grid, key timetable.SlotKey) error {
		return g.ClearOverride(key)
	})
}

// TeacherLoad computes weekly periods per teacher for the session.
func (s *TimetableService) TeacherLoad(ctx context.Context, id string) (*dto.TeacherLoadResponse, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	load := timetable.ComputeLoad(sess.grid.Snapshot())
	sess.mu.Unlock()
	return &dto.TeacherLoadResponse{SessionID: sess.id, ClassName: sess.className, TeacherLoad: load}, nil
}

// Save writes the session as Draft rows. A published class stays published.
func (s *TimetableService) Save(ctx context.Context, id string) (*dto.SaveTimetableResponse, error) {
	return s.persist(ctx, id, timetable.StatusDraft)
}

// Publish writes the session as Published rows and queues the publish notification.
// An empty grid may be published.
func (s *TimetableService) Publish(ctx context.Context, id string) (*dto.SaveTimetableResponse, error) {
	return s.persist(ctx, id, timetable.StatusPublished)
}

// Discard closes a session without saving.
func (s *TimetableService) Discard(ctx context.Context, id string) error {
	if !s.sessions.Delete(id) {
		return ErrSessionNotFound
	}
	s.metrics.SetSessions(s.sessions.Len())
	return nil
}

// SweepSessions drops expired sessions and reports how many were removed.
func (s *TimetableService) SweepSessions() int {
	removed := s.sessions.Sweep(s.now())
	s.metrics.SetSessions(s.sessions.Len())
	if removed > 0 {
		s.logger.Info("expired timetable sessions removed", zap.Int("count", removed))
	}
	return removed
}

func (s *TimetableService) persist(ctx context.Context, id string, status timetable.Status) (*dto.SaveTimetableResponse, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	in := SaveInput{
		ClassName: sess.className,
		Snapshot:  sess.grid.Snapshot(),
		Calendar:  sess.grid.Calendar(),
		Roster:    sess.grid.Roster(),
		Status:    status,
	}
	sess.mu.Unlock()

	result, err := s.store.Save(ctx, in)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if status == timetable.StatusPublished {
		sess.lifecycle.MarkPublished()
	}
	lifecycle := sess.lifecycle.Status()
	sess.mu.Unlock()

	clashes := result.Clashes
	if clashes == nil {
		clashes = []timetable.Clash{}
	}
	resp := &dto.SaveTimetableResponse{
		SessionID: sess.id,
		ClassName: result.ClassName,
		Status:    result.Status,
		Lifecycle: lifecycle,
		Entries:   result.Entries,
		Replaced:  result.Replaced,
		Clashes:   clashes,
	}
	if status == timetable.StatusPublished {
		resp.Notified = s.announce(ctx, result.ClassName, result.Entries)
	}
	return resp, nil
}

// announce hands the publish message to the notifier. Failures never undo the publish.
func (s *TimetableService) announce(ctx context.Context, className string, lessons int) bool {
	if s.notifier == nil {
		return false
	}
	if err := s.notifier.Notify(ctx, notify.PublishedMessage(className, lessons)); err != nil {
		s.logger.Warn("publish notification not queued", zap.String("class", className), zap.Error(err))
		return false
	}
	return true
}

func (s *TimetableService) mutate(id, rawSlot string, apply func(*timetable.Grid, timetable.SlotKey) error) (*dto.TimetableSessionResponse, error) {
	slot, err := timetable.ParseSlotKey(rawSlot)
	if err != nil {
		return nil, appErrors.WrapAs(timetable.ErrUnknownSlot, err, "slot must look like Day-Period")
	}
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	err = apply(sess.grid, slot)
	sess.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

func (s *TimetableService) session(id string) (*editorSession, error) {
	sess, ok := s.sessions.Get(id, s.now())
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *TimetableService) openSession(className, origin string, grid *timetable.Grid, lifecycle *timetable.Lifecycle) *editorSession {
	sess := &editorSession{
		id:        uuid.NewString(),
		className: className,
		origin:    origin,
		grid:      grid,
		lifecycle: lifecycle,
		touched:   s.now(),
	}
	s.sessions.Put(sess)
	s.metrics.SetSessions(s.sessions.Len())
	return sess
}

func (s *TimetableService) view(sess *editorSession) *dto.TimetableSessionResponse {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	snapshot := sess.grid.Snapshot()
	cells := snapshot.Cells(sess.grid.Calendar())
	slots := make([]dto.TimetableSlot, 0, len(cells))
	for _, cell := range cells {
		slot := dto.TimetableSlot{
			Slot:    cell.Slot.String(),
			Day:     cell.Slot.Day,
			Period:  cell.Slot.Period,
			Start:   cell.Start,
			End:     cell.End,
			Break:   cell.Break,
			Subject: cell.Subject,
		}
		if cell.Teacher != nil {
			slot.Teacher = cell.Teacher.Name
			slot.TeacherSource = string(cell.Teacher.Source)
		}
		slots = append(slots, slot)
	}
	return &dto.TimetableSessionResponse{
		SessionID:   sess.id,
		ClassName:   sess.className,
		Status:      sess.lifecycle.Status(),
		Origin:      sess.origin,
		ExpiresAt:   s.now().Add(s.cfg.SessionTTL),
		Slots:       slots,
		TeacherLoad: timetable.ComputeLoad(snapshot),
		Suggestions: append([]string(nil), sess.suggestions...),
		Dropped:     sess.dropped,
	}
}

// editorSession is one open grid. Its mutex guards grid and lifecycle; touched belongs to the store.
type editorSession struct {
	mu          sync.Mutex
	id          string
	className   string
	origin      string
	grid        *timetable.Grid
	lifecycle   *timetable.Lifecycle
	suggestions []string
	dropped     int
	touched     time.Time
}

type sessionStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]*editorSession
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{ttl: ttl, items: make(map[string]*editorSession)}
}

func (s *sessionStore) Put(sess *editorSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[sess.id] = sess
}

// Get returns a live session and slides its expiry forward.
func (s *sessionStore) Get(id string, now time.Time) (*editorSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[id]
	if !ok {
		return nil, false
	}
	if now.Sub(sess.touched) > s.ttl {
		delete(s.items, id)
		return nil, false
	}
	sess.touched = now
	return sess, true
}

func (s *sessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	return true
}

func (s *sessionStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.items {
		if now.Sub(sess.touched) > s.ttl {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

func (s *sessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
