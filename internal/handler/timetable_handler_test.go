package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type timetableEditorMock struct {
	generated   dto.GenerateTimetableRequest
	slot        string
	subject     string
	teacher     string
	saveErr     error
	discardErr  error
	generateErr error
	refreshed   bool
}

func (m *timetableEditorMock) session() *dto.TimetableSessionResponse {
	return &dto.TimetableSessionResponse{SessionID: "sess-1", ClassName: "Grade 10A", Status: timetable.StatusDraft}
}

func (m *timetableEditorMock) Calendar() dto.CalendarResponse {
	cal := timetable.DefaultCalendar()
	return dto.CalendarResponse{Days: cal.Days, Periods: cal.Periods}
}

func (m *timetableEditorMock) Roster(ctx context.Context) (*dto.RosterResponse, error) {
	return &dto.RosterResponse{Teachers: []timetable.RosterEntry{{Name: "Mrs. A", Subjects: []string{"Mathematics"}}}}, nil
}

func (m *timetableEditorMock) RefreshRoster(ctx context.Context) (*dto.RosterResponse, error) {
	m.refreshed = true
	return m.Roster(ctx)
}

func (m *timetableEditorMock) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableSessionResponse, error) {
	m.generated = req
	if m.generateErr != nil {
		return nil, m.generateErr
	}
	return m.session(), nil
}

func (m *timetableEditorMock) Open(ctx context.Context, className string) (*dto.TimetableSessionResponse, error) {
	resp := m.session()
	resp.ClassName = className
	return resp, nil
}

func (m *timetableEditorMock) Get(ctx context.Context, id string) (*dto.TimetableSessionResponse, error) {
	if id != "sess-1" {
		return nil, service.ErrSessionNotFound
	}
	return m.session(), nil
}

func (m *timetableEditorMock) Assign(ctx context.Context, id, slot, subject string) (*dto.TimetableSessionResponse, error) {
	m.slot, m.subject = slot, subject
	if slot == "Monday-Break" {
		return nil, timetable.ErrBreakSlot
	}
	return m.session(), nil
}

func (m *timetableEditorMock) Clear(ctx context.Context, id, slot string) (*dto.TimetableSessionResponse, error) {
	m.slot = slot
	return m.session(), nil
}

func (m *timetableEditorMock) OverrideTeacher(ctx context.Context, id, slot, teacher string) (*dto.TimetableSessionResponse, error) {
	m.slot, m.teacher = slot, teacher
	return m.session(), nil
}

func (m *timetableEditorMock) ClearOverride(ctx context.Context, id, slot string) (*dto.TimetableSessionResponse, error) {
	m.slot = slot
	return m.session(), nil
}

func (m *timetableEditorMock) TeacherLoad(ctx context.Context, id string) (*dto.TeacherLoadResponse, error) {
	return &dto.TeacherLoadResponse{SessionID: id, TeacherLoad: []timetable.TeacherLoad{{TeacherName: "Mrs. A", TotalPeriods: 1}}}, nil
}

func (m *timetableEditorMock) Save(ctx context.Context, id string) (*dto.SaveTimetableResponse, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	return &dto.SaveTimetableResponse{SessionID: id, Status: timetable.StatusDraft, Lifecycle: timetable.StatusDraft, Clashes: []timetable.Clash{}}, nil
}

func (m *timetableEditorMock) Publish(ctx context.Context, id string) (*dto.SaveTimetableResponse, error) {
	return &dto.SaveTimetableResponse{
		SessionID: id,
		Status:    timetable.StatusPublished,
		Lifecycle: timetable.StatusPublished,
		Clashes:   []timetable.Clash{{Slot: timetable.SlotKey{Day: "Monday", Period: "Period 1"}, Teacher: "Mrs. A", OtherClass: "Grade 11B"}},
		Notified:  true,
	}, nil
}

func (m *timetableEditorMock) Discard(ctx context.Context, id string) error {
	return m.discardErr
}

type exporterMock struct{}

func (exporterMock) Export(ctx context.Context, className, format string) (*service.ExportFile, error) {
	if format == "xlsx" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	return &service.ExportFile{Filename: "timetable-grade-10a.csv", ContentType: "text/csv", Body: []byte("Period,Monday\n")}, nil
}

func newTimetableRouter(mock *timetableEditorMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &TimetableHandler{service: mock, exporter: exporterMock{}, validator: validator.New()}
	router := gin.New()
	RegisterTimetableRoutes(router.Group("/api/v1"), h)
	return router
}

func doJSON(router *gin.Engine, method, path string, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestTimetableHandlerGenerate(t *testing.T) {
	mock := &timetableEditorMock{}
	router := newTimetableRouter(mock)

	w := doJSON(router, http.MethodPost, "/api/v1/timetables/generate",
		`{"className":"Grade 10A","subjectPeriodTargets":[{"name":"Mathematics","periods":5}],"freeformRules":"No maths after lunch"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Grade 10A", mock.generated.ClassName)
	assert.Equal(t, 5, mock.generated.SubjectPeriodTargets[0].Periods)
	assert.Equal(t, "No maths after lunch", mock.generated.FreeformRules)
}

func TestTimetableHandlerGenerateValidation(t *testing.T) {
	router := newTimetableRouter(&timetableEditorMock{})

	w := doJSON(router, http.MethodPost, "/api/v1/timetables/generate", `{"className":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/timetables/generate", `{"subjectPeriodTargets":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/timetables/generate", `{"className":"Grade 10A","subjectPeriodTargets":[{"name":"","periods":2}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(t, w).Error.Code)
}

func TestTimetableHandlerGenerateUpstreamFailure(t *testing.T) {
	mock := &timetableEditorMock{generateErr: appErrors.Clone(appErrors.ErrGeneration, "")}
	router := newTimetableRouter(mock)
	w := doJSON(router, http.MethodPost, "/api/v1/timetables/generate", `{"className":"Grade 10A"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "GENERATION_FAILED", decodeEnvelope(t, w).Error.Code)
}

func TestTimetableHandlerAssignDecodesSlot(t *testing.T) {
	mock := &timetableEditorMock{}
	router := newTimetableRouter(mock)

	w := doJSON(router, http.MethodPut, "/api/v1/timetable-sessions/sess-1/slots/Monday-Period%201", `{"subject":"Mathematics"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Monday-Period 1", mock.slot)
	assert.Equal(t, "Mathematics", mock.subject)

	w = doJSON(router, http.MethodPut, "/api/v1/timetable-sessions/sess-1/slots/Monday-Break", `{"subject":"Art"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BREAK_SLOT", decodeEnvelope(t, w).Error.Code)
}

func TestTimetableHandlerTeacherOverride(t *testing.T) {
	mock := &timetableEditorMock{}
	router := newTimetableRouter(mock)

	w := doJSON(router, http.MethodPut, "/api/v1/timetable-sessions/sess-1/slots/Monday-Period%201/teacher", `{"teacher":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPut, "/api/v1/timetable-sessions/sess-1/slots/Monday-Period%201/teacher", `{"teacher":"Mr. B"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Mr. B", mock.teacher)

	w = doJSON(router, http.MethodDelete, "/api/v1/timetable-sessions/sess-1/slots/Monday-Period%201/teacher", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTimetableHandlerSessionNotFound(t *testing.T) {
	router := newTimetableRouter(&timetableEditorMock{})
	w := doJSON(router, http.MethodGet, "/api/v1/timetable-sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, w).Error.Code)
}

func TestTimetableHandlerSaveConflict(t *testing.T) {
	mock := &timetableEditorMock{saveErr: appErrors.ErrSaveInProgress}
	router := newTimetableRouter(mock)
	w := doJSON(router, http.MethodPost, "/api/v1/timetable-sessions/sess-1/save", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SAVE_IN_PROGRESS", decodeEnvelope(t, w).Error.Code)
}

func TestTimetableHandlerPublish(t *testing.T) {
	router := newTimetableRouter(&timetableEditorMock{})
	w := doJSON(router, http.MethodPost, "/api/v1/timetable-sessions/sess-1/publish", "")
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, float64(1), env.Meta["clashCount"])
	var result dto.SaveTimetableResponse
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, timetable.StatusPublished, result.Lifecycle)
	assert.True(t, result.Notified)
}

func TestTimetableHandlerExport(t *testing.T) {
	router := newTimetableRouter(&timetableEditorMock{})

	w := doJSON(router, http.MethodGet, "/api/v1/timetables/Grade%2010A/export?format=csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "timetable-grade-10a.csv")

	w = doJSON(router, http.MethodGet, "/api/v1/timetables/Grade%2010A/export?format=xlsx", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/timetables/Grade%2010A/export?format=docx", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/timetables/Grade%2010A/export?format=PDF", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTimetableHandlerCalendarAndDiscard(t *testing.T) {
	mock := &timetableEditorMock{}
	router := newTimetableRouter(mock)

	w := doJSON(router, http.MethodGet, "/api/v1/timetables/calendar", "")
	require.Equal(t, http.StatusOK, w.Code)
	var cal dto.CalendarResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &cal))
	assert.Len(t, cal.Periods, 9)

	w = doJSON(router, http.MethodDelete, "/api/v1/timetable-sessions/sess-1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	mock.discardErr = service.ErrSessionNotFound
	w = doJSON(router, http.MethodDelete, "/api/v1/timetable-sessions/sess-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerRefreshRoster(t *testing.T) {
	mock := &timetableEditorMock{}
	router := newTimetableRouter(mock)

	w := doJSON(router, http.MethodPost, "/api/v1/timetables/roster/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mock.refreshed)
	var roster dto.RosterResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &roster))
	require.Len(t, roster.Teachers, 1)
	assert.Equal(t, "Mrs. A", roster.Teachers[0].Name)
}
