package timetable

import "strings"

// Status is the lifecycle stage of a class schedule or of a stored row.
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusPublished Status = "Published"
)

// ParseStatus accepts either status in any letter case.
func ParseStatus(raw string) (Status, error) {
	switch {
	case strings.EqualFold(raw, string(StatusDraft)):
		return StatusDraft, nil
	case strings.EqualFold(raw, string(StatusPublished)):
		return StatusPublished, nil
	}
	return "", ErrInvalidStatus
}

// Lifecycle tracks whether a class schedule has ever been published.
// The flag only moves forward; saving a draft afterwards does not reset it.
type Lifecycle struct {
	className string
	published bool
}

// NewLifecycle starts a lifecycle from a known status.
func NewLifecycle(className string, status Status) *Lifecycle {
	return &Lifecycle{className: className, published: status == StatusPublished}
}

// ClassName returns the class the lifecycle belongs to.
func (l *Lifecycle) ClassName() string { return l.className }

// Status reports Published once MarkPublished has been called, Draft before.
func (l *Lifecycle) Status() Status {
	if l.published {
		return StatusPublished
	}
	return StatusDraft
}

// Published reports whether the class has been published.
func (l *Lifecycle) Published() bool { return l.published }

// MarkPublished records a successful publish write.
func (l *Lifecycle) MarkPublished() { l.published = true }
