package timetable

import (
	"fmt"
	"strings"
)

// Period is one named time slot of a school day.
type Period struct {
	Name  string `json:"name" mapstructure:"name" validate:"required"`
	Start string `json:"start" mapstructure:"start" validate:"required"`
	End   string `json:"end" mapstructure:"end" validate:"required"`
	Break bool   `json:"break" mapstructure:"break"`
}

// Calendar defines the ordered days and periods of the teaching week.
type Calendar struct {
	Days    []string `json:"days" mapstructure:"days" validate:"required,min=1,dive,required"`
	Periods []Period `json:"periods" mapstructure:"periods" validate:"required,min=1,dive"`
}

// DefaultCalendar is a Monday to Friday week with seven lessons, a short break and lunch.
func DefaultCalendar() Calendar {
	return Calendar{
		Days: []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		Periods: []Period{
			{Name: "Period 1", Start: "08:00", End: "08:45"},
			{Name: "Period 2", Start: "08:45", End: "09:30"},
			{Name: "Break", Start: "09:30", End: "09:45", Break: true},
			{Name: "Period 3", Start: "09:45", End: "10:30"},
			{Name: "Period 4", Start: "10:30", End: "11:15"},
			{Name: "Lunch", Start: "11:15", End: "12:00", Break: true},
			{Name: "Period 5", Start: "12:00", End: "12:45"},
			{Name: "Period 6", Start: "12:45", End: "13:30"},
			{Name: "Period 7", Start: "13:30", End: "14:15"},
		},
	}
}

// Validate checks names are unique, days are free of the key separator and start times are distinct.
func (c Calendar) Validate() error {
	if len(c.Days) == 0 {
		return fmt.Errorf("calendar has no days")
	}
	if len(c.Periods) == 0 {
		return fmt.Errorf("calendar has no periods")
	}
	days := make(map[string]struct{}, len(c.Days))
	for _, day := range c.Days {
		if strings.TrimSpace(day) == "" {
			return fmt.Errorf("calendar day name is empty")
		}
		if strings.Contains(day, keySeparator) {
			return fmt.Errorf("calendar day %q must not contain %q", day, keySeparator)
		}
		if _, dup := days[day]; dup {
			return fmt.Errorf("calendar day %q is duplicated", day)
		}
		days[day] = struct{}{}
	}
	names := make(map[string]struct{}, len(c.Periods))
	starts := make(map[string]struct{}, len(c.Periods))
	for _, p := range c.Periods {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("calendar period name is empty")
		}
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("calendar period %q is duplicated", p.Name)
		}
		names[p.Name] = struct{}{}
		start := NormalizeClock(p.Start)
		if start == "" {
			return fmt.Errorf("calendar period %q has no start time", p.Name)
		}
		if _, dup := starts[start]; dup {
			return fmt.Errorf("calendar period %q reuses start time %s", p.Name, start)
		}
		starts[start] = struct{}{}
	}
	return nil
}

// HasDay reports whether day is part of the week.
func (c Calendar) HasDay(day string) bool {
	for _, d := range c.Days {
		if d == day {
			return true
		}
	}
	return false
}

// Period returns the period definition with the given name.
func (c Calendar) Period(name string) (Period, bool) {
	for _, p := range c.Periods {
		if p.Name == name {
			return p, true
		}
	}
	return Period{}, false
}

// PeriodByStart matches a stored start time against the calendar.
func (c Calendar) PeriodByStart(start string) (Period, bool) {
	start = NormalizeClock(start)
	if start == "" {
		return Period{}, false
	}
	for _, p := range c.Periods {
		if NormalizeClock(p.Start) == start {
			return p, true
		}
	}
	return Period{}, false
}

// Contains reports whether the slot names a known day and period, break or not.
func (c Calendar) Contains(slot SlotKey) bool {
	if !c.HasDay(slot.Day) {
		return false
	}
	_, ok := c.Period(slot.Period)
	return ok
}

// IsBreak reports whether the slot names a break period.
func (c Calendar) IsBreak(slot SlotKey) bool {
	p, ok := c.Period(slot.Period)
	return ok && p.Break
}

// AssignableSlots lists the non-break slots in calendar order.
func (c Calendar) AssignableSlots() []SlotKey {
	out := make([]SlotKey, 0, len(c.Days)*len(c.Periods))
	for _, day := range c.Days {
		for _, p := range c.Periods {
			if p.Break {
				continue
			}
			out = append(out, SlotKey{Day: day, Period: p.Name})
		}
	}
	return out
}

// NormalizeClock reduces "08:00:00" and " 8:00" style values to "08:00".
func NormalizeClock(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, ":")
	if len(parts) < 2 {
		return raw
	}
	hour := parts[0]
	if len(hour) == 1 {
		hour = "0" + hour
	}
	return hour + ":" + parts[1]
}
