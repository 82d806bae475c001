package models

import (
	"time"

	"github.com/noah-isme/timetable-api/pkg/timegrid"
)

// TimetableEntry places one plan on a day and closed period range.
type TimetableEntry struct {
	ID          int64     `db:"id" json:"id"`
	PlanID      int64     `db:"plan_id" json:"planId"`
	TermYear    string    `db:"term_year" json:"termYear"`
	YearLevel   string    `db:"year_level" json:"yearLevel"`
	PlanType    PlanType  `db:"plan_type" json:"planType"`
	Day         int       `db:"day" json:"day"`
	StartPeriod int       `db:"start_period" json:"startPeriod"`
	EndPeriod   int       `db:"end_period" json:"endPeriod"`
	RoomID      *int64    `db:"room_id" json:"roomId,omitempty"`
	TeacherID   *int64    `db:"teacher_id" json:"teacherId,omitempty"`
	Section     *string   `db:"section" json:"section,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// Range returns the occupied grid range.
func (e TimetableEntry) Range() timegrid.Range {
	return timegrid.Range{Day: e.Day, Start: e.StartPeriod, End: e.EndPeriod}
}

// TimetableEntryDetail joins subject, room and teacher data for display.
type TimetableEntryDetail struct {
	TimetableEntry
	SubjectCode string  `db:"subject_code" json:"subjectCode"`
	SubjectName string  `db:"subject_name" json:"subjectName"`
	LectureHour int     `db:"lecture_hour" json:"lectureHour"`
	LabHour     int     `db:"lab_hour" json:"labHour"`
	RoomName    *string `db:"room_name" json:"roomName,omitempty"`
	TeacherName *string `db:"teacher_name" json:"teacherName,omitempty"`
}

// TimetableFilter describes query params for listing placements.
type TimetableFilter struct {
	RoomID    *int64
	TeacherID *int64
	TermYear  string
	YearLevel string
	PlanType  PlanType
}

// Empty reports whether no filter has been supplied.
func (f TimetableFilter) Empty() bool {
	return f.RoomID == nil && f.TeacherID == nil && f.TermYear == "" && f.YearLevel == "" && f.PlanType == ""
}

// OverlapQuery selects placements on one term/day whose range intersects [Start, End].
// Optional fields narrow the match; ExcludePlanID drops the candidate's own row.
type OverlapQuery struct {
	TermYear      string
	Day           int
	Start         int
	End           int
	ExcludePlanID int64
	YearLevel     string
	PlanType      PlanType
	TeacherID     *int64
	RoomID        *int64
	Section       *string
}
