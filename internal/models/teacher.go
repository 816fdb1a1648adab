package models

import (
	"time"

	"github.com/lib/pq"
)

// Teacher represents an instructor record.
type Teacher struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TeacherRosterRow is a teacher together with the subjects they teach.
type TeacherRosterRow struct {
	ID       string         `db:"id" json:"id"`
	FullName string         `db:"full_name" json:"full_name"`
	Subjects pq.StringArray `db:"subjects" json:"subjects"`
}
