package service

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	"github.com/noah-isme/sma-timetable-api/pkg/generation"
	"github.com/noah-isme/sma-timetable-api/pkg/notify"
)

const (
	classA = "Grade 10A"
	classB = "Grade 11B"
)

func testRosterRows() []models.TeacherRosterRow {
	return []models.TeacherRosterRow{
		{ID: "t-1", FullName: "Mrs. A", Subjects: []string{"Mathematics"}},
		{ID: "t-2", FullName: "Mr. B", Subjects: []string{"Physics", "Mathematics"}},
		{ID: "t-3", FullName: "Ms. C", Subjects: []string{"History"}},
	}
}

type directoryStub struct {
	rows    []models.TeacherRosterRow
	extra   map[string]models.Teacher
	listErr error
	calls   int
}

func (d *directoryStub) ListRoster(ctx context.Context) ([]models.TeacherRosterRow, error) {
	d.calls++
	return d.rows, d.listErr
}

func (d *directoryStub) FindByName(ctx context.Context, name string) (*models.Teacher, error) {
	for _, row := range d.rows {
		if strings.EqualFold(row.FullName, name) {
			return &models.Teacher{ID: row.ID, FullName: row.FullName, Active: true}, nil
		}
	}
	if t, ok := d.extra[strings.ToLower(name)]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (d *directoryStub) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	for _, row := range d.rows {
		if row.ID == id {
			return &models.Teacher{ID: row.ID, FullName: row.FullName, Active: true}, nil
		}
	}
	for _, t := range d.extra {
		if t.ID == id {
			found := t
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

type fakeEntryStore struct {
	mu        sync.Mutex
	rows      map[string][]models.TimetableEntry
	nextID    int64
	deleteErr error
	insertErr error
	bookings  []models.TeacherBooking
}

func newFakeEntryStore() *fakeEntryStore {
	return &fakeEntryStore{rows: make(map[string][]models.TimetableEntry)}
}

func (f *fakeEntryStore) DeleteByClass(ctx context.Context, exec sqlx.ExtContext, className string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	n := int64(len(f.rows[className]))
	delete(f.rows, className)
	return n, nil
}

func (f *fakeEntryStore) InsertBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	for _, e := range entries {
		f.nextID++
		e.ID = f.nextID
		f.rows[e.ClassName] = append(f.rows[e.ClassName], e)
	}
	return nil
}

func (f *fakeEntryStore) ListByClass(ctx context.Context, className string) ([]models.TimetableEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.TimetableEntry(nil), f.rows[className]...), nil
}

func (f *fakeEntryStore) ListBookings(ctx context.Context, excludeClass string, teacherIDs []string) ([]models.TeacherBooking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TeacherBooking
	for _, b := range f.bookings {
		if b.ClassName == excludeClass {
			continue
		}
		for _, id := range teacherIDs {
			if b.TeacherID == id {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

type fakeLifecycleStore struct {
	mu    sync.Mutex
	items map[string]models.TimetableLifecycle
}

func newFakeLifecycleStore() *fakeLifecycleStore {
	return &fakeLifecycleStore{items: make(map[string]models.TimetableLifecycle)}
}

func (f *fakeLifecycleStore) Get(ctx context.Context, className string) (*models.TimetableLifecycle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lc, ok := f.items[className]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &lc, nil
}

func (f *fakeLifecycleStore) Upsert(ctx context.Context, exec sqlx.ExtContext, lc *models.TimetableLifecycle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := *lc
	if prev, ok := f.items[lc.ClassName]; ok && prev.PublishedAt != nil {
		next.Status = string(timetable.StatusPublished)
		next.PublishedAt = prev.PublishedAt
	}
	f.items[lc.ClassName] = next
	return nil
}

type generatorStub struct {
	resp    *generation.Response
	err     error
	lastReq generation.Request
}

func (g *generatorStub) Generate(ctx context.Context, req generation.Request) (*generation.Response, error) {
	g.lastReq = req
	return g.resp, g.err
}

type notifierStub struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (n *notifierStub) Notify(ctx context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.msgs = append(n.msgs, msg)
	return nil
}

type sqlmockTx struct {
	db *sqlx.DB
}

func (t *sqlmockTx) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func newSQLMockTx(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &sqlmockTx{db: sqlx.NewDb(db, "sqlmock")}, mock
}

type timetableFixture struct {
	entries    *fakeEntryStore
	lifecycles *fakeLifecycleStore
	directory  *directoryStub
	mock       sqlmock.Sqlmock
	guard      *SaveGuard
	metrics    *MetricsService
	roster     *RosterService
	sync       *TimetableSyncService
	generator  *generatorStub
	notifier   *notifierStub
	svc        *TimetableService
	clock      time.Time
}

func newTimetableFixture(t *testing.T) *timetableFixture {
	t.Helper()
	f := &timetableFixture{
		entries:    newFakeEntryStore(),
		lifecycles: newFakeLifecycleStore(),
		directory:  &directoryStub{rows: testRosterRows(), extra: map[string]models.Teacher{"mr. retired": {ID: "t-old", FullName: "Mr. Retired"}}},
		generator:  &generatorStub{},
		notifier:   &notifierStub{},
		metrics:    NewMetricsService(),
		clock:      time.Date(2024, 7, 15, 8, 0, 0, 0, time.UTC),
	}
	tx, mock := newSQLMockTx(t)
	f.mock = mock
	f.guard = NewSaveGuard(nil, time.Second, nil)
	f.roster = NewRosterService(f.directory, nil, time.Minute, nil)
	resolver := timetable.Resolver{Policy: timetable.PolicyFirstMatch}
	f.sync = NewTimetableSyncService(tx, f.entries, f.lifecycles, f.roster, f.guard, resolver, f.metrics, nil)
	gen := NewTimetableGeneratorService(f.generator, resolver, f.metrics, nil)
	f.svc = NewTimetableService(f.roster, f.sync, gen, f.notifier, f.metrics, nil, TimetableServiceConfig{
		Calendar:   timetable.DefaultCalendar(),
		Grid:       timetable.GridOptions{Resolver: resolver},
		SessionTTL: 2 * time.Hour,
	})
	f.svc.now = func() time.Time { return f.clock }
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
	})
	return f
}

func (f *timetableFixture) expectCommit() {
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
}

func (f *timetableFixture) rosterNow(t *testing.T) timetable.Roster {
	roster, err := f.roster.Roster(context.Background())
	require.NoError(t, err)
	return roster
}
