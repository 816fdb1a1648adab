package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

// Export formats.
const (
	ExportCSV = "csv"
	ExportPDF = "pdf"
)

type tableRenderer interface {
	Render(table export.Table) ([]byte, error)
}

// ExportFile is a rendered timetable ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// TimetableExportService renders stored timetables as week grids.
type TimetableExportService struct {
	roster    rosterProvider
	store     timetableStore
	calendar  timetable.Calendar
	renderers map[string]tableRenderer
}

// NewTimetableExportService wires the CSV and PDF renderers.
func NewTimetableExportService(roster rosterProvider, store timetableStore, calendar timetable.Calendar) *TimetableExportService {
	return &TimetableExportService{
		roster:   roster,
		store:    store,
		calendar: calendar,
		renderers: map[string]tableRenderer{
			ExportCSV: export.NewCSVExporter(),
			ExportPDF: export.NewPDFExporter(),
		},
	}
}

// Export renders the stored timetable of className. format defaults to csv.
func (s *TimetableExportService) Export(ctx context.Context, className, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	roster, err := s.roster.Roster(ctx)
	if err != nil {
		return nil, err
	}
	loaded, err := s.store.Load(ctx, className, s.calendar, roster)
	if err != nil {
		return nil, err
	}

	table := WeekTable(loaded.ClassName, loaded.Status, loaded.Snapshot, s.calendar)
	body, err := renderer.Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable export")
	}
	contentType := "text/csv"
	if format == ExportPDF {
		contentType = "application/pdf"
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("timetable-%s.%s", slugify(loaded.ClassName), format),
		ContentType: contentType,
		Body:        body,
	}, nil
}

// WeekTable lays a snapshot out with one row per period and one column per day.
func WeekTable(className string, status timetable.Status, snapshot timetable.Snapshot, calendar timetable.Calendar) export.Table {
	table := export.Table{
		Title:   fmt.Sprintf("%s timetable (%s)", className, status),
		Headers: append([]string{"Period"}, calendar.Days...),
	}
	for _, period := range calendar.Periods {
		row := make([]string, 0, len(calendar.Days)+1)
		row = append(row, fmt.Sprintf("%s (%s-%s)", period.Name, period.Start, period.End))
		for _, day := range calendar.Days {
			if period.Break {
				row = append(row, period.Name)
				continue
			}
			slot := timetable.SlotKey{Day: day, Period: period.Name}
			cell := snapshot.Subjects[slot]
			if teacher, ok := snapshot.Teachers[slot]; ok && cell != "" {
				cell += " / " + teacher.Name
			}
			row = append(row, cell)
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
