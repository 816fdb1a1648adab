package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeLoadEmpty(t *testing.T) {
	assert.Empty(t, ComputeLoad(NewGrid(DefaultCalendar(), nil, GridOptions{}).Snapshot()))
}

func TestComputeLoadSingleSlot(t *testing.T) {
	g := newTestGrid(GridOptions{})
	require.NoError(t, g.Assign(mondayP1, "History"))
	assert.Equal(t, []TeacherLoad{{TeacherName: "Ms. C", TotalPeriods: 1}}, ComputeLoad(g.Snapshot()))
}

func TestComputeLoadOrdering(t *testing.T) {
	g := newTestGrid(GridOptions{})
	for _, day := range []string{"Monday", "Tuesday", "Wednesday"} {
		require.NoError(t, g.Assign(SlotKey{Day: day, Period: "Period 1"}, "Mathematics"))
	}
	require.NoError(t, g.Assign(SlotKey{Day: "Monday", Period: "Period 2"}, "History"))
	require.NoError(t, g.Assign(SlotKey{Day: "Monday", Period: "Period 3"}, "Physics"))
	require.NoError(t, g.Assign(SlotKey{Day: "Monday", Period: "Period 4"}, "Art"))

	assert.Equal(t, []TeacherLoad{
		{TeacherName: "Mrs. A", TotalPeriods: 3},
		{TeacherName: "Mr. B", TotalPeriods: 1},
		{TeacherName: "Ms. C", TotalPeriods: 1},
	}, ComputeLoad(g.Snapshot()))
}

func TestComputeLoadIgnoresTeacherOnFreeSlot(t *testing.T) {
	snap := Snapshot{
		Subjects: map[SlotKey]string{},
		Teachers: map[SlotKey]SlotTeacher{mondayP1: {Name: "Mrs. A"}},
	}
	assert.Empty(t, ComputeLoad(snap))
}

func TestResolverPolicies(t *testing.T) {
	roster := testRoster()

	name, ok := Resolver{}.Resolve("Mathematics", roster)
	assert.True(t, ok)
	assert.Equal(t, "Mrs. A", name)

	_, ok = Resolver{Policy: PolicyUnique}.Resolve("Mathematics", roster)
	assert.False(t, ok)

	name, ok = Resolver{Policy: PolicyUnique}.Resolve("Physics", roster)
	assert.True(t, ok)
	assert.Equal(t, "Mr. B", name)

	_, ok = Resolver{}.Resolve("Art", roster)
	assert.False(t, ok)
	_, ok = Resolver{}.Resolve("mathematics", roster)
	assert.False(t, ok)

	assert.Equal(t, PolicyUnique, ParseResolvePolicy(" UNIQUE"))
	assert.Equal(t, PolicyFirstMatch, ParseResolvePolicy("whatever"))
}

func TestRosterLookups(t *testing.T) {
	roster := testRoster()

	entry, ok := roster.FindByName("  mrs. a ")
	require.True(t, ok)
	assert.Equal(t, "t-a", entry.TeacherID)

	entry, ok = roster.FindByID("t-c")
	require.True(t, ok)
	assert.Equal(t, "Ms. C", entry.Name)

	_, ok = roster.FindByID("")
	assert.False(t, ok)
	assert.Equal(t, []string{"Mathematics", "Physics", "History"}, roster.Subjects())
}
