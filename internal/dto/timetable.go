package dto

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/timetable"
)

// SubjectPeriodTarget asks the generator for a weekly number of periods of a subject.
type SubjectPeriodTarget struct {
	Name    string `json:"name" validate:"required"`
	Periods int    `json:"periods" validate:"min=0,max=60"`
}

// GenerateTimetableRequest starts an editor session from a generated candidate week.
type GenerateTimetableRequest struct {
	ClassName            string                `json:"className" validate:"required,max=128"`
	Subjects             []string              `json:"subjects" validate:"omitempty,dive,required"`
	SubjectPeriodTargets []SubjectPeriodTarget `json:"subjectPeriodTargets" validate:"omitempty,dive"`
	FreeformRules        string                `json:"freeformRules" validate:"max=4000"`
}

// AssignSlotRequest places a subject in a slot. An empty subject frees the slot.
type AssignSlotRequest struct {
	Subject string `json:"subject"`
}

// OverrideTeacherRequest pins a teacher to an occupied slot.
type OverrideTeacherRequest struct {
	Teacher string `json:"teacher" validate:"required"`
}

// TimetableSlot is one rendered cell of the week.
type TimetableSlot struct {
	Slot          string `json:"slot"`
	Day           string `json:"day"`
	Period        string `json:"period"`
	Start         string `json:"start"`
	End           string `json:"end"`
	Break         bool   `json:"break"`
	Subject       string `json:"subject,omitempty"`
	Teacher       string `json:"teacher,omitempty"`
	TeacherSource string `json:"teacherSource,omitempty"`
}

// TimetableSessionResponse is the state of an editor session.
type TimetableSessionResponse struct {
	SessionID   string                  `json:"sessionId"`
	ClassName   string                  `json:"className"`
	Status      timetable.Status        `json:"status"`
	Origin      string                  `json:"origin"`
	ExpiresAt   time.Time               `json:"expiresAt"`
	Slots       []TimetableSlot         `json:"slots"`
	TeacherLoad []timetable.TeacherLoad `json:"teacherLoad"`
	Suggestions []string                `json:"suggestions,omitempty"`
	Dropped     int                     `json:"droppedRows,omitempty"`
}

// TeacherLoadResponse lists weekly periods per teacher for a session.
type TeacherLoadResponse struct {
	SessionID   string                  `json:"sessionId"`
	ClassName   string                  `json:"className"`
	TeacherLoad []timetable.TeacherLoad `json:"teacherLoad"`
}

// SaveTimetableResponse reports a save or publish.
type SaveTimetableResponse struct {
	SessionID string            `json:"sessionId"`
	ClassName string            `json:"className"`
	Status    timetable.Status  `json:"status"`
	Lifecycle timetable.Status  `json:"lifecycle"`
	Entries   int               `json:"entries"`
	Replaced  int64             `json:"replaced"`
	Clashes   []timetable.Clash `json:"clashes"`
	Notified  bool              `json:"notificationQueued"`
}

// CalendarResponse describes the teaching week.
type CalendarResponse struct {
	Days    []string           `json:"days"`
	Periods []timetable.Period `json:"periods"`
}

// RosterResponse lists teachers in resolver order.
type RosterResponse struct {
	Teachers []timetable.RosterEntry `json:"teachers"`
	Subjects []string                `json:"subjects"`
}

// TimetableExportQuery selects the export format.
type TimetableExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
