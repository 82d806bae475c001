package dto

import (
	"time"

	"github.com/noah-isme/timetable-api/internal/models"
)

// AutoScheduleScopeRequest runs the automatic placement for one scope.
type AutoScheduleScopeRequest struct {
	TermYear  string          `json:"termYear" validate:"required"`
	YearLevel string          `json:"yearLevel" validate:"required"`
	PlanType  models.PlanType `json:"planType" validate:"required"`
	// PlanIDs restricts the run to these unplaced plans; empty means every unplaced plan in scope.
	PlanIDs []int64 `json:"planIds" validate:"omitempty,dive,gt=0"`
}

// AutoScheduleCurriculumRequest runs the automatic placement over a whole curriculum.
type AutoScheduleCurriculumRequest struct {
	TermYear string                   `json:"termYear" validate:"required"`
	Tracks   []models.CurriculumTrack `json:"tracks" validate:"omitempty,dive"`
}

// ClearCurriculumRequest removes every placement of a curriculum.
type ClearCurriculumRequest struct {
	TermYear string                   `json:"termYear" validate:"required"`
	Tracks   []models.CurriculumTrack `json:"tracks" validate:"omitempty,dive"`
}

// PlacementFailure names a plan the search could not place.
type PlacementFailure struct {
	PlanID      int64  `json:"planId"`
	SubjectCode string `json:"subjectCode"`
	Periods     int    `json:"periods"`
	Reason      string `json:"reason"`
}

// ScopeScheduleResult summarises one scope of an automatic run.
type ScopeScheduleResult struct {
	Scope    models.Scope       `json:"scope"`
	Placed   int                `json:"placed"`
	Failed   int                `json:"failed"`
	Skipped  int                `json:"skipped"`
	Relaxed  []int64            `json:"relaxed,omitempty"`
	Failures []PlacementFailure `json:"failures,omitempty"`
}

// AutoScheduleResponse aggregates per-scope results.
type AutoScheduleResponse struct {
	Scopes []ScopeScheduleResult `json:"scopes"`
	Placed int                   `json:"placed"`
	Failed int                   `json:"failed"`
}

// ClearScopeResult counts removed placements for one scope.
type ClearScopeResult struct {
	Scope   models.Scope `json:"scope"`
	Cleared int          `json:"cleared"`
}

// ClearCurriculumResponse aggregates cleared placements.
type ClearCurriculumResponse struct {
	Scopes  []ClearScopeResult `json:"scopes"`
	Cleared int                `json:"cleared"`
}

// SchedulerRunStatus is the lifecycle of an asynchronous curriculum run.
type SchedulerRunStatus string

const (
	SchedulerRunQueued    SchedulerRunStatus = "QUEUED"
	SchedulerRunRunning   SchedulerRunStatus = "RUNNING"
	SchedulerRunCompleted SchedulerRunStatus = "COMPLETED"
	SchedulerRunFailed    SchedulerRunStatus = "FAILED"
)

// SchedulerRun reports an asynchronous curriculum run.
type SchedulerRun struct {
	ID      string                        `json:"id"`
	Status  SchedulerRunStatus            `json:"status"`
	Request AutoScheduleCurriculumRequest `json:"request"`
	Result  *AutoScheduleResponse         `json:"result,omitempty"`
	Error   string                        `json:"error,omitempty"`

	SubmittedAt time.Time  `json:"submittedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
}
