package models

import (
	"fmt"
	"time"

	"github.com/noah-isme/timetable-api/pkg/timegrid"
)

// PlanType identifies the program track a plan belongs to.
type PlanType string

const (
	PlanTypeTransfer PlanType = "TRANSFER"
	PlanTypeFourYear PlanType = "FOUR_YEAR"
	PlanTypeDVEMSIX  PlanType = "DVE-MSIX"
	PlanTypeDVELVC   PlanType = "DVE-LVC"
)

// Valid reports whether the plan type is one of the known tracks.
func (t PlanType) Valid() bool {
	switch t {
	case PlanTypeTransfer, PlanTypeFourYear, PlanTypeDVEMSIX, PlanTypeDVELVC:
		return true
	}
	return false
}

// IsDVE reports whether the track is one of the mirrored vocational tracks.
func (t PlanType) IsDVE() bool {
	return t == PlanTypeDVEMSIX || t == PlanTypeDVELVC
}

// DVEPlanTypes lists the mirrored vocational tracks.
var DVEPlanTypes = []PlanType{PlanTypeDVEMSIX, PlanTypeDVELVC}

// PartSuffixFormat renders the display suffix of a split part.
const PartSuffixFormat = "%s (ส่วนที่ %d)"

// Plan is one offering of a subject within a program track and year level.
type Plan struct {
	ID             int64     `db:"id" json:"id"`
	SubjectCode    string    `db:"subject_code" json:"subjectCode"`
	SubjectName    string    `db:"subject_name" json:"subjectName"`
	Credit         int       `db:"credit" json:"credit"`
	LectureHour    int       `db:"lecture_hour" json:"lectureHour"`
	LabHour        int       `db:"lab_hour" json:"labHour"`
	TermYear       string    `db:"term_year" json:"termYear"`
	YearLevel      string    `db:"year_level" json:"yearLevel"`
	PlanType       PlanType  `db:"plan_type" json:"planType"`
	IsInDepartment bool      `db:"is_in_department" json:"isInDepartment"`
	RoomID         *int64    `db:"room_id" json:"roomId,omitempty"`
	TeacherID      *int64    `db:"teacher_id" json:"teacherId,omitempty"`
	Section        *string   `db:"section" json:"section,omitempty"`
	BaseName       *string   `db:"base_name" json:"baseName,omitempty"`
	PartNumber     *int      `db:"part_number" json:"partNumber,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// TotalHours sums lecture and lab hours.
func (p Plan) TotalHours() int {
	return p.LectureHour + p.LabHour
}

// TotalPeriods returns the number of grid periods the plan occupies when placed.
func (p Plan) TotalPeriods() int {
	return timegrid.RequiredPeriods(p.LectureHour, p.LabHour)
}

// IsPart reports whether the plan is one part of a split subject.
func (p Plan) IsPart() bool {
	return p.PartNumber != nil
}

// Lineage returns the un-suffixed subject name shared by all parts.
func (p Plan) Lineage() string {
	if p.BaseName != nil && *p.BaseName != "" {
		return *p.BaseName
	}
	return p.SubjectName
}

// PartName renders the display name for part n of the plan's lineage.
func (p Plan) PartName(n int) string {
	return fmt.Sprintf(PartSuffixFormat, p.Lineage(), n)
}

// Scope returns the (term, year level, track) bucket the plan is scheduled in.
func (p Plan) Scope() Scope {
	return Scope{TermYear: p.TermYear, YearLevel: p.YearLevel, PlanType: p.PlanType}
}

// PlanSummary is the subset of plan fields shown in conflict details.
type PlanSummary struct {
	ID          int64    `json:"id"`
	SubjectCode string   `json:"subjectCode"`
	SubjectName string   `json:"subjectName"`
	YearLevel   string   `json:"yearLevel"`
	PlanType    PlanType `json:"planType"`
	LectureHour int      `json:"lectureHour"`
	LabHour     int      `json:"labHour"`
}

// Summary projects the plan for display.
func (p Plan) Summary() PlanSummary {
	return PlanSummary{
		ID:          p.ID,
		SubjectCode: p.SubjectCode,
		SubjectName: p.SubjectName,
		YearLevel:   p.YearLevel,
		PlanType:    p.PlanType,
		LectureHour: p.LectureHour,
		LabHour:     p.LabHour,
	}
}

// PlanFilter narrows plan lookups.
type PlanFilter struct {
	TermYear  string
	YearLevel string
	PlanType  PlanType
}

// Room is a bookable teaching room.
type Room struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Teacher is a teaching staff member.
type Teacher struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
