package timetable

import (
	"fmt"
	"strings"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// TeacherSource records how a slot teacher was chosen.
type TeacherSource string

const (
	SourceAuto   TeacherSource = "auto"
	SourceManual TeacherSource = "manual"
)

// SlotTeacher is the teacher held by one slot.
type SlotTeacher struct {
	Name   string        `json:"name"`
	Source TeacherSource `json:"source"`
}

// GridOptions tunes teacher resolution for a grid.
type GridOptions struct {
	Resolver Resolver
	// PreserveOverrides keeps a manual teacher when the slot's subject is reassigned.
	PreserveOverrides bool
}

// Grid is the in-memory sparse timetable of one class. It is not safe for concurrent use.
type Grid struct {
	calendar Calendar
	roster   Roster
	opts     GridOptions
	subjects map[SlotKey]string
	teachers map[SlotKey]SlotTeacher
}

// NewGrid builds an empty grid over the calendar.
func NewGrid(calendar Calendar, roster Roster, opts GridOptions) *Grid {
	return &Grid{
		calendar: calendar,
		roster:   append(Roster(nil), roster...),
		opts:     opts,
		subjects: make(map[SlotKey]string),
		teachers: make(map[SlotKey]SlotTeacher),
	}
}

// Calendar returns the grid's period calendar.
func (g *Grid) Calendar() Calendar { return g.calendar }

// Roster returns a copy of the roster used for resolution.
func (g *Grid) Roster() Roster { return append(Roster(nil), g.roster...) }

func (g *Grid) checkAssignable(slot SlotKey) error {
	if !g.calendar.Contains(slot) {
		return slotError(ErrUnknownSlot, slot)
	}
	if g.calendar.IsBreak(slot) {
		return slotError(ErrBreakSlot, slot)
	}
	return nil
}

// Assign places subject in slot and re-resolves the slot teacher.
// An empty subject clears the slot.
func (g *Grid) Assign(slot SlotKey, subject string) error {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		g.Clear(slot)
		return nil
	}
	if err := g.checkAssignable(slot); err != nil {
		return err
	}

	g.subjects[slot] = subject
	if current, ok := g.teachers[slot]; ok && current.Source == SourceManual && g.opts.PreserveOverrides {
		return nil
	}
	g.resolveTeacher(slot, subject)
	return nil
}

func (g *Grid) resolveTeacher(slot SlotKey, subject string) {
	if name, ok := g.opts.Resolver.Resolve(subject, g.roster); ok {
		g.teachers[slot] = SlotTeacher{Name: name, Source: SourceAuto}
		return
	}
	delete(g.teachers, slot)
}

// Clear frees the slot. Clearing an empty slot is a no-op.
func (g *Grid) Clear(slot SlotKey) {
	delete(g.subjects, slot)
	delete(g.teachers, slot)
}

// OverrideTeacher pins teacher to an occupied slot.
func (g *Grid) OverrideTeacher(slot SlotKey, teacher string) error {
	teacher = strings.TrimSpace(teacher)
	if teacher == "" {
		return ErrEmptyTeacher
	}
	if err := g.checkAssignable(slot); err != nil {
		return err
	}
	if _, ok := g.subjects[slot]; !ok {
		return slotError(ErrSlotUnassigned, slot)
	}
	g.teachers[slot] = SlotTeacher{Name: teacher, Source: SourceManual}
	return nil
}

// ClearOverride drops a manual teacher and falls back to the resolver.
func (g *Grid) ClearOverride(slot SlotKey) error {
	if err := g.checkAssignable(slot); err != nil {
		return err
	}
	subject, ok := g.subjects[slot]
	if !ok {
		return nil
	}
	if current, has := g.teachers[slot]; has && current.Source != SourceManual {
		return nil
	}
	g.resolveTeacher(slot, subject)
	return nil
}

// Seed replaces the whole grid with snapshot. Nothing is applied when any entry is invalid.
func (g *Grid) Seed(snapshot Snapshot) error {
	if err := snapshot.Validate(g.calendar); err != nil {
		return err
	}
	g.subjects = make(map[SlotKey]string, len(snapshot.Subjects))
	g.teachers = make(map[SlotKey]SlotTeacher, len(snapshot.Teachers))
	for slot, subject := range snapshot.Subjects {
		g.subjects[slot] = strings.TrimSpace(subject)
	}
	for slot, teacher := range snapshot.Teachers {
		if teacher.Source == "" {
			teacher.Source = SourceAuto
		}
		teacher.Name = strings.TrimSpace(teacher.Name)
		g.teachers[slot] = teacher
	}
	return nil
}

// Snapshot returns a value copy of the grid.
func (g *Grid) Snapshot() Snapshot {
	out := Snapshot{
		Subjects: make(map[SlotKey]string, len(g.subjects)),
		Teachers: make(map[SlotKey]SlotTeacher, len(g.teachers)),
	}
	for k, v := range g.subjects {
		out.Subjects[k] = v
	}
	for k, v := range g.teachers {
		out.Teachers[k] = v
	}
	return out
}

// Snapshot is a detached copy of a grid's subjects and teachers.
type Snapshot struct {
	Subjects map[SlotKey]string
	Teachers map[SlotKey]SlotTeacher
}

// Len returns the number of occupied slots.
func (s Snapshot) Len() int { return len(s.Subjects) }

// Validate checks every key is an assignable slot and every teacher sits on an occupied slot.
func (s Snapshot) Validate(calendar Calendar) error {
	for slot, subject := range s.Subjects {
		if !calendar.Contains(slot) {
			return appErrors.Wrap(slotError(ErrUnknownSlot, slot), ErrInvalidSnapshot.Code, ErrInvalidSnapshot.Status, ErrInvalidSnapshot.Message)
		}
		if calendar.IsBreak(slot) {
			return appErrors.Wrap(slotError(ErrBreakSlot, slot), ErrInvalidSnapshot.Code, ErrInvalidSnapshot.Status, ErrInvalidSnapshot.Message)
		}
		if strings.TrimSpace(subject) == "" {
			return appErrors.Wrap(slotError(ErrEmptySubject, slot), ErrInvalidSnapshot.Code, ErrInvalidSnapshot.Status, ErrInvalidSnapshot.Message)
		}
	}
	for slot, teacher := range s.Teachers {
		if _, ok := s.Subjects[slot]; !ok {
			return appErrors.Wrap(fmt.Errorf("teacher %q assigned to free slot %s", teacher.Name, slot), ErrInvalidSnapshot.Code, ErrInvalidSnapshot.Status, ErrInvalidSnapshot.Message)
		}
		if strings.TrimSpace(teacher.Name) == "" {
			return appErrors.Wrap(slotError(ErrEmptyTeacher, slot), ErrInvalidSnapshot.Code, ErrInvalidSnapshot.Status, ErrInvalidSnapshot.Message)
		}
	}
	return nil
}

// Cell is one rendered slot of a snapshot.
type Cell struct {
	Slot    SlotKey
	Start   string
	End     string
	Break   bool
	Subject string
	Teacher *SlotTeacher
}

// Cells lays the snapshot out over the calendar in display order, breaks and free slots included.
func (s Snapshot) Cells(calendar Calendar) []Cell {
	cells := make([]Cell, 0, len(calendar.Days)*len(calendar.Periods))
	for _, day := range calendar.Days {
		for _, p := range calendar.Periods {
			slot := SlotKey{Day: day, Period: p.Name}
			cell := Cell{Slot: slot, Start: p.Start, End: p.End, Break: p.Break}
			if !p.Break {
				cell.Subject = s.Subjects[slot]
				if t, ok := s.Teachers[slot]; ok {
					teacher := t
					cell.Teacher = &teacher
				}
			}
			cells = append(cells, cell)
		}
	}
	return cells
}
