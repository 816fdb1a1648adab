package timetable

import (
	"fmt"
	"strings"
)

const keySeparator = "-"

// SlotKey identifies one (day, period) cell of the week.
type SlotKey struct {
	Day    string `json:"day"`
	Period string `json:"period"`
}

// String renders the key in the "Day-Period" form used on the wire.
func (k SlotKey) String() string {
	return k.Day + keySeparator + k.Period
}

// ParseSlotKey splits "Monday-Period 1" on the first separator.
func ParseSlotKey(raw string) (SlotKey, error) {
	day, period, ok := strings.Cut(strings.TrimSpace(raw), keySeparator)
	day = strings.TrimSpace(day)
	period = strings.TrimSpace(period)
	if !ok || day == "" || period == "" {
		return SlotKey{}, fmt.Errorf("invalid slot key %q", raw)
	}
	return SlotKey{Day: day, Period: period}, nil
}
