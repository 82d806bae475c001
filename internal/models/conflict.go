package models

import (
	"fmt"
	"strings"
)

// ConflictType categorises a placement collision.
type ConflictType string

const (
	ConflictTime             ConflictType = "TIME_CONFLICT"
	ConflictTeacher          ConflictType = "TEACHER_CONFLICT"
	ConflictRoom             ConflictType = "ROOM_CONFLICT"
	ConflictSection          ConflictType = "SECTION_CONFLICT"
	ConflictDuplicateSection ConflictType = "DUPLICATE_SECTION_CONFLICT"
)

// ConflictItem describes one colliding row. Day and periods are absent for
// duplicate-section hits on plans that are not placed yet.
type ConflictItem struct {
	PlanID      int64       `json:"planId"`
	Plan        PlanSummary `json:"plan"`
	Day         *int        `json:"day,omitempty"`
	StartPeriod *int        `json:"startPeriod,omitempty"`
	EndPeriod   *int        `json:"endPeriod,omitempty"`
	Teacher     *string     `json:"teacher,omitempty"`
	Room        *string     `json:"room,omitempty"`
	Section     *string     `json:"section,omitempty"`
}

// ConflictReport groups all collisions of one kind.
type ConflictReport struct {
	Type      ConflictType   `json:"type"`
	Message   string         `json:"message"`
	Conflicts []ConflictItem `json:"conflicts"`
}

// TimetableConflictError is returned when a placement is rejected.
type TimetableConflictError struct {
	PlanID  int64
	Reports []ConflictReport
}

// Error implements the error interface for conflict errors.
func (e *TimetableConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	kinds := make([]string, 0, len(e.Reports))
	for _, r := range e.Reports {
		kinds = append(kinds, string(r.Type))
	}
	return fmt.Sprintf("plan %d conflicts: %s", e.PlanID, strings.Join(kinds, ", "))
}

// Types lists the conflict kinds carried by the error.
func (e *TimetableConflictError) Types() []ConflictType {
	if e == nil {
		return nil
	}
	out := make([]ConflictType, 0, len(e.Reports))
	for _, r := range e.Reports {
		out = append(out, r.Type)
	}
	return out
}
