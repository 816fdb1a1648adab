package timetable

import (
	"sort"
	"strings"
)

// Booking is a teacher occupying a slot in some class's stored timetable.
type Booking struct {
	ClassName string
	Slot      SlotKey
	Teacher   string
}

// Clash flags a teacher held by this grid and another class at the same slot.
type Clash struct {
	Slot       SlotKey `json:"slot"`
	Teacher    string  `json:"teacher"`
	OtherClass string  `json:"otherClass"`
}

// DetectClashes compares the snapshot against other classes' bookings. Bookings of
// className itself are skipped; teacher names compare case-insensitively.
func DetectClashes(className string, snapshot Snapshot, others []Booking) []Clash {
	index := make(map[SlotKey][]Booking)
	for _, b := range others {
		if b.ClassName == className || b.Teacher == "" {
			continue
		}
		index[b.Slot] = append(index[b.Slot], b)
	}

	var clashes []Clash
	for slot, teacher := range snapshot.Teachers {
		if _, occupied := snapshot.Subjects[slot]; !occupied {
			continue
		}
		for _, b := range index[slot] {
			if strings.EqualFold(strings.TrimSpace(b.Teacher), strings.TrimSpace(teacher.Name)) {
				clashes = append(clashes, Clash{Slot: slot, Teacher: teacher.Name, OtherClass: b.ClassName})
			}
		}
	}
	sort.Slice(clashes, func(i, j int) bool {
		if clashes[i].Slot.Day != clashes[j].Slot.Day {
			return clashes[i].Slot.Day < clashes[j].Slot.Day
		}
		if clashes[i].Slot.Period != clashes[j].Slot.Period {
			return clashes[i].Slot.Period < clashes[j].Slot.Period
		}
		return clashes[i].OtherClass < clashes[j].OtherClass
	})
	return clashes
}
