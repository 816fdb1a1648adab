package models

import "time"

// TimetableEntry is one stored lesson of a class timetable. A class's rows are always
// replaced as a whole.
type TimetableEntry struct {
	ID        int64     `db:"id" json:"id"`
	ClassName string    `db:"class_name" json:"class_name"`
	Day       string    `db:"day" json:"day"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Subject   string    `db:"subject" json:"subject"`
	TeacherID *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TimetableLifecycle keeps the class-level publish flag. PublishedAt is set once and never cleared.
type TimetableLifecycle struct {
	ClassName   string     `db:"class_name" json:"class_name"`
	Status      string     `db:"status" json:"status"`
	PublishedAt *time.Time `db:"published_at" json:"published_at,omitempty"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// TeacherBooking is a stored lesson of another class used for clash detection.
type TeacherBooking struct {
	ClassName string `db:"class_name"`
	Day       string `db:"day"`
	StartTime string `db:"start_time"`
	TeacherID string `db:"teacher_id"`
}
