package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	"github.com/noah-isme/sma-timetable-api/pkg/generation"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// ErrGenerationCancelled is returned when the caller went away before the candidate arrived.
var ErrGenerationCancelled = appErrors.New("GENERATION_CANCELLED", http.StatusRequestTimeout, "schedule generation cancelled")

// Candidate is a generated week checked against the calendar.
type Candidate struct {
	ClassName    string
	Snapshot     timetable.Snapshot
	Subjects     []string
	Suggestions  []string
	ReportedLoad []timetable.TeacherLoad
}

// TimetableGeneratorService asks the generation collaborator for a candidate week.
type TimetableGeneratorService struct {
	generator generation.Generator
	resolver  timetable.Resolver
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewTimetableGeneratorService wires the generation bridge.
func NewTimetableGeneratorService(generator generation.Generator, resolver timetable.Resolver, metrics *MetricsService, logger *zap.Logger) *TimetableGeneratorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableGeneratorService{generator: generator, resolver: resolver, metrics: metrics, logger: logger}
}

// Generate sends the class, roster and targets out and validates the reply. Rules are passed
// through untouched. A malformed reply or a cancelled context yields no candidate at all.
func (s *TimetableGeneratorService) Generate(ctx context.Context, req dto.GenerateTimetableRequest, calendar timetable.Calendar, roster timetable.Roster) (*Candidate, error) {
	className := strings.TrimSpace(req.ClassName)
	if className == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class name is required")
	}

	out := buildGenerationRequest(className, req, roster)
	resp, err := s.generator.Generate(ctx, out)
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.metrics.RecordGeneration("cancelled")
		s.logger.Info("generation discarded", zap.String("class", className), zap.Error(ctxErr))
		return nil, appErrors.WrapAs(ErrGenerationCancelled, ctxErr, "")
	}
	if err != nil {
		s.metrics.RecordGeneration(outcomeFailure)
		s.logger.Warn("generation failed", zap.String("class", className), zap.Error(err))
		msg := appErrors.ErrGeneration.Message
		if errors.Is(err, generation.ErrMalformedResponse) {
			msg = "generation collaborator returned a malformed timetable"
		}
		return nil, appErrors.WrapAs(appErrors.ErrGeneration, err, msg)
	}

	candidate, err := s.toCandidate(className, resp, calendar, roster)
	if err != nil {
		s.metrics.RecordGeneration(outcomeFailure)
		s.logger.Warn("generation rejected", zap.String("class", className), zap.Error(err))
		return nil, appErrors.WrapAs(appErrors.ErrGeneration, err, "generation collaborator returned an unusable timetable")
	}
	s.metrics.RecordGeneration(outcomeSuccess)
	return candidate, nil
}

func buildGenerationRequest(className string, req dto.GenerateTimetableRequest, roster timetable.Roster) generation.Request {
	out := generation.Request{
		ClassName:     className,
		FreeformRules: req.FreeformRules,
		Teachers:      make([]generation.TeacherSpec, 0, len(roster)),
	}
	for _, entry := range roster {
		out.Teachers = append(out.Teachers, generation.TeacherSpec{Name: entry.Name, Subjects: append([]string{}, entry.Subjects...)})
	}

	seen := make(map[string]struct{})
	addSubject := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out.Subjects = append(out.Subjects, name)
	}
	for _, name := range req.Subjects {
		addSubject(name)
	}
	for _, target := range req.SubjectPeriodTargets {
		addSubject(target.Name)
		out.SubjectPeriodTargets = append(out.SubjectPeriodTargets, generation.SubjectTarget{Name: strings.TrimSpace(target.Name), Periods: target.Periods})
	}
	if len(out.Subjects) == 0 {
		for _, name := range roster.Subjects() {
			addSubject(name)
		}
	}
	if out.Subjects == nil {
		out.Subjects = []string{}
	}
	if out.SubjectPeriodTargets == nil {
		out.SubjectPeriodTargets = []generation.SubjectTarget{}
	}
	return out
}

func (s *TimetableGeneratorService) toCandidate(className string, resp *generation.Response, calendar timetable.Calendar, roster timetable.Roster) (*Candidate, error) {
	snapshot := timetable.Snapshot{
		Subjects: make(map[timetable.SlotKey]string, len(resp.Timetable)),
		Teachers: make(map[timetable.SlotKey]timetable.SlotTeacher, len(resp.TeacherAssignments)),
	}
	for _, item := range resp.Timetable {
		slot, err := timetable.ParseSlotKey(item.Slot)
		if err != nil {
			return nil, err
		}
		if _, dup := snapshot.Subjects[slot]; dup {
			return nil, fmt.Errorf("slot %s appears twice in timetable", slot)
		}
		snapshot.Subjects[slot] = strings.TrimSpace(item.Subject)
	}
	for _, item := range resp.TeacherAssignments {
		slot, err := timetable.ParseSlotKey(item.Slot)
		if err != nil {
			return nil, err
		}
		subject, ok := snapshot.Subjects[slot]
		if !ok {
			return nil, fmt.Errorf("teacher %q assigned to slot %s without a subject", item.Teacher, slot)
		}
		if _, dup := snapshot.Teachers[slot]; dup {
			return nil, fmt.Errorf("slot %s has more than one teacher", slot)
		}
		name := strings.TrimSpace(item.Teacher)
		snapshot.Teachers[slot] = timetable.SlotTeacher{Name: name, Source: teacherSource(s.resolver, subject, name, roster)}
	}
	if err := snapshot.Validate(calendar); err != nil {
		return nil, err
	}

	reported := make([]timetable.TeacherLoad, 0, len(resp.TeacherLoad))
	for _, l := range resp.TeacherLoad {
		if l.TotalPeriods == nil {
			return nil, fmt.Errorf("teacher load for %q has no period count", l.TeacherName)
		}
		reported = append(reported, timetable.TeacherLoad{TeacherName: l.TeacherName, TotalPeriods: *l.TotalPeriods})
	}
	return &Candidate{
		ClassName:    className,
		Snapshot:     snapshot,
		Subjects:     append([]string{}, resp.Subjects...),
		Suggestions:  append([]string{}, resp.Suggestions...),
		ReportedLoad: reported,
	}, nil
}

// teacherSource marks a teacher as auto when the resolver would have picked the same name.
func teacherSource(resolver timetable.Resolver, subject, teacher string, roster timetable.Roster) timetable.TeacherSource {
	if auto, ok := resolver.Resolve(subject, roster); ok && strings.EqualFold(auto, teacher) {
		return timetable.SourceAuto
	}
	return timetable.SourceManual
}
