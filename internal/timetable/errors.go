package timetable

import (
	"net/http"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// Validation failures raised by grid mutations. None of them change state.
var (
	ErrEmptySubject    = appErrors.New("EMPTY_SUBJECT", http.StatusBadRequest, "subject is required")
	ErrEmptyTeacher    = appErrors.New("EMPTY_TEACHER", http.StatusBadRequest, "teacher is required")
	ErrUnknownSlot     = appErrors.New("UNKNOWN_SLOT", http.StatusBadRequest, "slot is not part of the calendar")
	ErrBreakSlot       = appErrors.New("BREAK_SLOT", http.StatusBadRequest, "break periods cannot be assigned")
	ErrSlotUnassigned  = appErrors.New("SLOT_UNASSIGNED", http.StatusBadRequest, "slot has no subject")
	ErrInvalidSnapshot = appErrors.New("INVALID_SNAPSHOT", http.StatusBadRequest, "timetable snapshot is invalid")
	ErrInvalidStatus   = appErrors.New("INVALID_STATUS", http.StatusBadRequest, "status must be Draft or Published")
)

func slotError(template *appErrors.Error, slot SlotKey) *appErrors.Error {
	return appErrors.Clone(template, template.Message+": "+slot.String())
}
