package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func TestTimetableExportServiceCSV(t *testing.T) {
	f := newTimetableFixture(t)
	f.entries.rows[classA] = []models.TimetableEntry{
		{ClassName: classA, Day: "Monday", StartTime: "08:00", EndTime: "08:45", Subject: "Mathematics", TeacherID: strRef("t-1"), Status: "Published"},
		{ClassName: classA, Day: "Friday", StartTime: "13:30", EndTime: "14:15", Subject: "Art", Status: "Published"},
	}
	svc := NewTimetableExportService(f.roster, f.sync, timetable.DefaultCalendar())

	file, err := svc.Export(context.Background(), classA, "")
	require.NoError(t, err)
	assert.Equal(t, "timetable-grade-10a.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)

	body := string(file.Body)
	assert.Contains(t, body, "Period,Monday,Tuesday,Wednesday,Thursday,Friday\n")
	assert.Contains(t, body, "Period 1 (08:00-08:45),Mathematics / Mrs. A,,,,\n")
	assert.Contains(t, body, "Break (09:30-09:45),Break,Break,Break,Break,Break\n")
	assert.Contains(t, body, "Period 7 (13:30-14:15),,,,,Art\n")
}

func TestTimetableExportServicePDF(t *testing.T) {
	f := newTimetableFixture(t)
	svc := NewTimetableExportService(f.roster, f.sync, timetable.DefaultCalendar())

	file, err := svc.Export(context.Background(), classB, "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Body, []byte("%PDF")))
}

func TestTimetableExportServiceRejectsFormat(t *testing.T) {
	f := newTimetableFixture(t)
	svc := NewTimetableExportService(f.roster, f.sync, timetable.DefaultCalendar())
	_, err := svc.Export(context.Background(), classA, "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestWeekTableTitle(t *testing.T) {
	table := WeekTable(classA, timetable.StatusDraft, timetable.Snapshot{}, timetable.DefaultCalendar())
	assert.Equal(t, "Grade 10A timetable (Draft)", table.Title)
	assert.Len(t, table.Rows, 9)
	assert.Equal(t, "", table.Rows[0][1])
}
