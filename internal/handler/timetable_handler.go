package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableEditor interface {
	Calendar() dto.CalendarResponse
	Roster(ctx context.Context) (*dto.RosterResponse, error)
	RefreshRoster(ctx context.Context) (*dto.RosterResponse, error)
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableSessionResponse, error)
	Open(ctx context.Context, className string) (*dto.TimetableSessionResponse, error)
	Get(ctx context.Context, id string) (*dto.TimetableSessionResponse, error)
	Assign(ctx context.Context, id, slot, subject string) (*dto.TimetableSessionResponse, error)
	Clear(ctx context.Context, id, slot string) (*dto.TimetableSessionResponse, error)
	OverrideTeacher(ctx context.Context, id, slot, teacher string) (*dto.TimetableSessionResponse, error)
	ClearOverride(ctx context.Context, id, slot string) (*dto.TimetableSessionResponse, error)
	TeacherLoad(ctx context.Context, id string) (*dto.TeacherLoadResponse, error)
	Save(ctx context.Context, id string) (*dto.SaveTimetableResponse, error)
	Publish(ctx context.Context, id string) (*dto.SaveTimetableResponse, error)
	Discard(ctx context.Context, id string) error
}

type timetableExporter interface {
	Export(ctx context.Context, className, format string) (*service.ExportFile, error)
}

// TimetableHandler exposes the timetable editor endpoints.
type TimetableHandler struct {
	service   timetableEditor
	exporter  timetableExporter
	validator *validator.Validate
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc *service.TimetableService, exporter *service.TimetableExportService) *TimetableHandler {
	return &TimetableHandler{service: svc, exporter: exporter, validator: validator.New()}
}

// Calendar godoc
// @Summary Teaching week layout
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetables/calendar [get]
func (h *TimetableHandler) Calendar(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Calendar())
}

// Roster godoc
// @Summary Teachers and subjects used for auto assignment
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetables/roster [get]
func (h *TimetableHandler) Roster(c *gin.Context) {
	roster, err := h.service.Roster(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster)
}

// RefreshRoster godoc
// @Summary Reload the roster from the teacher directory, bypassing the cache
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetables/roster/refresh [post]
func (h *TimetableHandler) RefreshRoster(c *gin.Context) {
	roster, err := h.service.RefreshRoster(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster)
}

// Generate godoc
// @Summary Generate a candidate week and open an editor session
// @Description Rules are forwarded to the generation service as free text and are not enforced here.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 201 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	sess, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sess)
}

// Open godoc
// @Summary Open the stored timetable of a class in a new editor session
// @Tags Timetable
// @Produce json
// @Param class path string true "Class name"
// @Success 201 {object} response.Envelope
// @Router /timetables/{class}/open [post]
func (h *TimetableHandler) Open(c *gin.Context) {
	sess, err := h.service.Open(c.Request.Context(), c.Param("class"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sess)
}

// Export godoc
// @Summary Download the stored timetable of a class
// @Tags Timetable
// @Produce text/csv
// @Produce application/pdf
// @Param class path string true "Class name"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /timetables/{class}/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	var query dto.TimetableExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	query.Format = strings.ToLower(strings.TrimSpace(query.Format))
	if err := h.validator.Struct(query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "format must be csv or pdf"))
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), c.Param("class"), query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// Session godoc
// @Summary Current state of an editor session
// @Tags Timetable
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable-sessions/{id} [get]
func (h *TimetableHandler) Session(c *gin.Context) {
	sess, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sess)
}

// Assign godoc
// @Summary Place a subject in a slot
// @Description Slots look like "Monday-Period 1". An empty subject frees the slot.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param slot path string true "Slot key"
// @Param payload body dto.AssignSlotRequest true "Subject"
// @Success 200 {object} response.Envelope
// @Router /timetable-sessions/{id}/slots/{slot} [put]
func (h *TimetableHandler) Assign(c *gin.Context) {
	var req dto.AssignSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assign payload"))
		return
	}
	h.respondSession(c)(h.service.Assign(c.Request.Context(), c.Param("id"), slotParam(c), req.Subject))
}

// Clear godoc
// @Summary Free a slot
// @Tags Timetable
// @Produce json
// @Param id path string true "Session ID"
// @Param slot path string true "Slot key"
// @Success 200 {object} response.Envelope
// @Router /timetable-sessions/{id}/slots/{slot} [delete]
func (h *TimetableHandler) Clear(c *gin.Context) {
	h.respondSession(c)(h.service.Clear(c.Request.Context(), c.Param("id"), slotParam(c)))
}

// OverrideTeacher godoc
// @Summary Pin a teacher to an occupied slot
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param slot path string true "Slot key"
// @Param payload body dto.OverrideTeacherRequest true "Teacher"
// @Success 200 {object} response.Envelope
// @Router /timetable-sessions/{id}/slots/{slot}/teacher [put]
func (h *TimetableHandler) OverrideTeacher(c *gin.Context) {
	var req dto.OverrideTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid teacher payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "teacher is required"))
		return
	}
	h.respondSession(c)(h.service.OverrideTeacher(c.Request.Context(), c.Param("id"), slotParam(c), req.Teacher))
}

// ClearOverride godoc
// @Summary Return a slot to its resolved teacher
// @Tags Timetable
// @Produce json
// @Param id path string true "Session ID"
// @Param slot path string true "Slot key"
// @Success 200 {object} response.Envelope
// @Router /timetable-sessions/{id}/slots/{slot}/teacher [delete]
func (h *TimetableHandler) ClearOverride(c *gin.Context) {
	h.respondSession(c)(h.service.ClearOverride(c.Request.Context(), c.Param("id"), slotParam(c)))
}

// TeacherLoad godoc
// @Summary Weekly periods per teacher in a session
// @Tags Timetable
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /timetable-sessions/{id}/load [get]
func (h *TimetableHandler) TeacherLoad(c *gin.Context) {
	load, err := h.service.TeacherLoad(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, load)
}

// Save godoc
// @Summary Save the session as a draft
// @Description Replaces every stored row of the class. Returns 409 while another save of the class runs.
// @Tags Timetable
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable-sessions/{id}/save [post]
func (h *TimetableHandler) Save(c *gin.Context) {
	h.respondSave(c)(h.service.Save(c.Request.Context(), c.Param("id")))
}

// Publish godoc
// @Summary Publish the session and notify subscribers
// @Tags Timetable
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable-sessions/{id}/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	h.respondSave(c)(h.service.Publish(c.Request.Context(), c.Param("id")))
}

// Discard godoc
// @Summary Close an editor session without saving
// @Tags Timetable
// @Param id path string true "Session ID"
// @Success 204
// @Router /timetable-sessions/{id} [delete]
func (h *TimetableHandler) Discard(c *gin.Context) {
	if err := h.service.Discard(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *TimetableHandler) respondSession(c *gin.Context) func(*dto.TimetableSessionResponse, error) {
	return func(sess *dto.TimetableSessionResponse, err error) {
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, sess)
	}
}

func (h *TimetableHandler) respondSave(c *gin.Context) func(*dto.SaveTimetableResponse, error) {
	return func(result *dto.SaveTimetableResponse, err error) {
		if err != nil {
			response.Error(c, err)
			return
		}
		meta := map[string]interface{}{"clashCount": len(result.Clashes)}
		response.JSON(c, http.StatusOK, result, meta)
	}
}

// slotParam decodes the slot path segment; clients escape the space in "Period 1".
func slotParam(c *gin.Context) string {
	raw := c.Param("slot")
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}
