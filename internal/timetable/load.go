package timetable

import "sort"

// TeacherLoad is a teacher's weekly period count.
type TeacherLoad struct {
	TeacherName  string `json:"teacherName"`
	TotalPeriods int    `json:"totalPeriods"`
}

// ComputeLoad counts occupied slots per teacher, busiest first and then by name.
// Slots without a subject are ignored even if a stray teacher entry exists.
func ComputeLoad(snapshot Snapshot) []TeacherLoad {
	counts := make(map[string]int)
	for slot, teacher := range snapshot.Teachers {
		if _, occupied := snapshot.Subjects[slot]; !occupied || teacher.Name == "" {
			continue
		}
		counts[teacher.Name]++
	}

	out := make([]TeacherLoad, 0, len(counts))
	for name, total := range counts {
		out = append(out, TeacherLoad{TeacherName: name, TotalPeriods: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPeriods != out[j].TotalPeriods {
			return out[i].TotalPeriods > out[j].TotalPeriods
		}
		return out[i].TeacherName < out[j].TeacherName
	})
	return out
}
