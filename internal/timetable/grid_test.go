package timetable

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	mondayP1 = SlotKey{Day: "Monday", Period: "Period 1"}
	mondayP2 = SlotKey{Day: "Monday", Period: "Period 2"}
	mondayBr = SlotKey{Day: "Monday", Period: "Break"}
)

func testRoster() Roster {
	return Roster{
		{TeacherID: "t-a", Name: "Mrs. A", Subjects: []string{"Mathematics"}},
		{TeacherID: "t-b", Name: "Mr. B", Subjects: []string{"Physics", "Mathematics"}},
		{TeacherID: "t-c", Name: "Ms. C", Subjects: []string{"History"}},
	}
}

func newTestGrid(opts GridOptions) *Grid {
	return NewGrid(DefaultCalendar(), testRoster(), opts)
}

func TestGridAssignResolvesTeacher(t *testing.T) {
	g := NewGrid(DefaultCalendar(), Roster{{Name: "Mrs. A", Subjects: []string{"Mathematics"}}}, GridOptions{})

	require.NoError(t, g.Assign(mondayP1, "Mathematics"))

	snap := g.Snapshot()
	assert.Equal(t, "Mathematics", snap.Subjects[mondayP1])
	assert.Equal(t, SlotTeacher{Name: "Mrs. A", Source: SourceAuto}, snap.Teachers[mondayP1])
}

func TestGridAssignWithoutMatchingTeacher(t *testing.T) {
	g := NewGrid(DefaultCalendar(), Roster{{Name: "Mrs. A", Subjects: []string{"Mathematics"}}}, GridOptions{})

	require.NoError(t, g.Assign(mondayP1, "Art"))

	snap := g.Snapshot()
	assert.Equal(t, "Art", snap.Subjects[mondayP1])
	_, ok := snap.Teachers[mondayP1]
	assert.False(t, ok)
}

func TestGridReassignDropsPreviousTeacher(t *testing.T) {
	g := newTestGrid(GridOptions{})
	require.NoError(t, g.Assign(mondayP1, "Mathematics"))
	require.NoError(t, g.Assign(mondayP1, "Art"))

	_, ok := g.Snapshot().Teachers[mondayP1]
	assert.False(t, ok)
}

func TestGridAssignThenClearRoundTrip(t *testing.T) {
	g := newTestGrid(GridOptions{})
	require.NoError(t, g.Assign(mondayP2, "History"))
	before := g.Snapshot()

	require.NoError(t, g.Assign(mondayP1, "Mathematics"))
	g.Clear(mondayP1)

	assert.Equal(t, before, g.Snapshot())
}

func TestGridAssignEmptyEqualsClear(t *testing.T) {
	a := newTestGrid(GridOptions{})
	b := newTestGrid(GridOptions{})
	for _, g := range []*Grid{a, b} {
		require.NoError(t, g.Assign(mondayP1, "Mathematics"))
		require.NoError(t, g.Assign(mondayP2, "Physics"))
	}

	require.NoError(t, a.Assign(mondayP1, "   "))
	b.Clear(mondayP1)

	assert.Equal(t, b.Snapshot(), a.Snapshot())
	assert.Equal(t, 1, a.Snapshot().Len())
}

func TestGridClearAbsentSlotIsNoop(t *testing.T) {
	g := newTestGrid(GridOptions{})
	g.Clear(mondayP1)
	g.Clear(mondayBr)
	assert.Zero(t, g.Snapshot().Len())
}

func TestGridRejectsBreakAndUnknownSlots(t *testing.T) {
	g := newTestGrid(GridOptions{})

	err := g.Assign(mondayBr, "Mathematics")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBreakSlot))

	err = g.Assign(SlotKey{Day: "Sunday", Period: "Period 1"}, "Mathematics")
	assert.True(t, errors.Is(err, ErrUnknownSlot))

	err = g.Assign(SlotKey{Day: "Monday", Period: "Period 42"}, "Mathematics")
	assert.True(t, errors.Is(err, ErrUnknownSlot))

	snap := g.Snapshot()
	assert.Zero(t, snap.Len())
	assert.Empty(t, snap.Teachers)
}

func TestGridFirstMatchTieBreak(t *testing.T) {
	g := NewGrid(DefaultCalendar(), Roster{
		{Name: "Mr. B", Subjects: []string{"Mathematics"}},
		{Name: "Mrs. A", Subjects: []string{"Mathematics"}},
	}, GridOptions{})
	require.NoError(t, g.Assign(mondayP1, "Mathematics"))
	assert.Equal(t, "Mr. B", g.Snapshot().Teachers[mondayP1].Name)
}

func TestGridUniquePolicyLeavesAmbiguousSlotEmpty(t *testing.T) {
	g := newTestGrid(GridOptions{Resolver: Resolver{Policy: PolicyUnique}})

	require.NoError(t, g.Assign(mondayP1, "Mathematics"))
	require.NoError(t, g.Assign(mondayP2, "History"))

	snap := g.Snapshot()
	_, ok := snap.Teachers[mondayP1]
	assert.False(t, ok)
	assert.Equal(t, "Ms. C", snap.Teachers[mondayP2].Name)
}

func TestGridOverrideReplacedOnReassignByDefault(t *testing.T) {
	g := newTestGrid(GridOptions{})
	require.NoError(t, g.Assign(mondayP1, "Mathematics"))
	require.NoError(t, g.OverrideTeacher(mondayP1, "Mr. B"))
	assert.Equal(t, SlotTeacher{Name: "Mr. B", Source: SourceManual}, g.Snapshot().Teachers[mondayP1])

	require.NoError(t, g.Assign(mondayP1, "Mathematics"))
	assert.Equal(t, SlotTeacher{Name: "Mrs. A", Source: SourceAuto}, g.Snapshot().Teachers[mondayP1])
}

func TestGridOverrideSurvivesReassignWhenPreserved(t *testing.T) {
	g := newTestGrid(GridOptions{PreserveOverrides: true})
	require.NoError(t, g.Assign(mondayP1, "Mathematics"))
	require.NoError(t, g.OverrideTeacher(mondayP1, "Mr. B"))

	require.NoError(t, g.Assign(mondayP1, "Physics"))
	assert.Equal(t, SlotTeacher{Name: "Mr. B", Source: SourceManual}, g.Snapshot().Teachers[mondayP1])

	require.NoError(t, g.ClearOverride(mondayP1))
	assert.Equal(t, SlotTeacher{Name: "Mr. B", Source: SourceAuto}, g.Snapshot().Teachers[mondayP1])

	g.Clear(mondayP1)
	require.NoError(t, g.Assign(mondayP1, "History"))
	assert.Equal(t, "Ms. C", g.Snapshot().Teachers[mondayP1].Name)
}

func TestGridOverrideRequiresSubject(t *testing.T) {
	g := newTestGrid(GridOptions{})
	err := g.OverrideTeacher(mondayP1, "Mr. B")
	assert.True(t, errors.Is(err, ErrSlotUnassigned))

	require.NoError(t, g.Assign(mondayP1, "Art"))
	assert.True(t, errors.Is(g.OverrideTeacher(mondayP1, " "), ErrEmptyTeacher))
	assert.True(t, errors.Is(g.OverrideTeacher(mondayBr, "Mr. B"), ErrBreakSlot))
}

func TestGridSeedIsAllOrNothing(t *testing.T) {
	g := newTestGrid(GridOptions{})
	require.NoError(t, g.Assign(mondayP1, "Mathematics"))
	before := g.Snapshot()

	err := g.Seed(Snapshot{
		Subjects: map[SlotKey]string{mondayP2: "Physics", mondayBr: "History"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSnapshot))
	assert.Equal(t, before, g.Snapshot())

	err = g.Seed(Snapshot{
		Subjects: map[SlotKey]string{mondayP2: "Physics"},
		Teachers: map[SlotKey]SlotTeacher{mondayP1: {Name: "Mrs. A"}},
	})
	assert.True(t, errors.Is(err, ErrInvalidSnapshot))
	assert.Equal(t, before, g.Snapshot())

	require.NoError(t, g.Seed(Snapshot{
		Subjects: map[SlotKey]string{mondayP2: "Physics"},
		Teachers: map[SlotKey]SlotTeacher{mondayP2: {Name: "Mr. B"}},
	}))
	snap := g.Snapshot()
	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, SlotTeacher{Name: "Mr. B", Source: SourceAuto}, snap.Teachers[mondayP2])
}

func TestSnapshotIsDetached(t *testing.T) {
	g := newTestGrid(GridOptions{})
	require.NoError(t, g.Assign(mondayP1, "Mathematics"))
	snap := g.Snapshot()
	snap.Subjects[mondayP2] = "Physics"
	delete(snap.Teachers, mondayP1)

	again := g.Snapshot()
	assert.Equal(t, 1, again.Len())
	assert.Contains(t, again.Teachers, mondayP1)
}

func TestSnapshotCellsFollowCalendar(t *testing.T) {
	g := newTestGrid(GridOptions{})
	require.NoError(t, g.Assign(mondayP2, "Physics"))

	cells := g.Snapshot().Cells(g.Calendar())
	cal := DefaultCalendar()
	require.Len(t, cells, len(cal.Days)*len(cal.Periods))
	assert.Equal(t, mondayP1, cells[0].Slot)
	assert.Equal(t, "Physics", cells[1].Subject)
	assert.Equal(t, "Mr. B", cells[1].Teacher.Name)
	assert.True(t, cells[2].Break)
	assert.Equal(t, "09:30", cells[2].Start)
}
