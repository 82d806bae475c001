package dto

import "github.com/noah-isme/timetable-api/internal/models"

// AssignTimetableRequest places a plan on a day and period range.
type AssignTimetableRequest struct {
	PlanID      int64           `json:"planId" validate:"required,gt=0"`
	TermYear    string          `json:"termYear" validate:"required"`
	YearLevel   string          `json:"yearLevel" validate:"required"`
	PlanType    models.PlanType `json:"planType" validate:"required"`
	Day         *int            `json:"day" validate:"required,min=0,max=6"`
	StartPeriod *int            `json:"startPeriod" validate:"required,min=0,max=24"`
	EndPeriod   *int            `json:"endPeriod" validate:"required,min=0,max=24"`
	RoomID      *int64          `json:"roomId" validate:"omitempty,gt=0"`
	TeacherID   *int64          `json:"teacherId" validate:"omitempty,gt=0"`
	Section     *string         `json:"section" validate:"omitempty,max=32"`
}

// TimetableQuery carries GET /timetable filters.
type TimetableQuery struct {
	RoomID    *int64 `form:"roomId"`
	TeacherID *int64 `form:"teacherId"`
	TermYear  string `form:"termYear"`
	YearLevel string `form:"yearLevel"`
	PlanType  string `form:"planType"`
}

// Filter converts the query into a repository filter.
func (q TimetableQuery) Filter() models.TimetableFilter {
	return models.TimetableFilter{
		RoomID:    q.RoomID,
		TeacherID: q.TeacherID,
		TermYear:  q.TermYear,
		YearLevel: q.YearLevel,
		PlanType:  models.PlanType(q.PlanType),
	}
}

// UnassignTimetableResponse lists every plan whose placement was removed.
type UnassignTimetableResponse struct {
	DeletedPlans []int64 `json:"deletedPlans"`
}
