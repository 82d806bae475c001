package dto

import "github.com/noah-isme/timetable-api/internal/models"

// SplitPart describes the hours of one side of a split.
type SplitPart struct {
	LectureHour int `json:"lectureHour" validate:"min=0"`
	LabHour     int `json:"labHour" validate:"min=0"`
	PartNumber  int `json:"partNumber" validate:"omitempty,min=1"`
}

// SplitData holds both sides of a split.
type SplitData struct {
	Part1 SplitPart `json:"part1"`
	Part2 SplitPart `json:"part2"`
}

// SplitSubjectRequest divides one plan into two parts.
type SplitSubjectRequest struct {
	SubjectID int64     `json:"subjectId" validate:"required,gt=0"`
	SplitData SplitData `json:"splitData"`
}

// SplitSubjectResponse returns the requested plan's halves and every linked half.
type SplitSubjectResponse struct {
	UpdatedSubject     models.Plan   `json:"updatedSubject"`
	NewSubject         models.Plan   `json:"newSubject"`
	AllUpdatedSubjects []models.Plan `json:"allUpdatedSubjects"`
	AllNewSubjects     []models.Plan `json:"allNewSubjects"`
	IsCoTeaching       bool          `json:"isCoTeaching"`
}

// MergeSubjectRequest recombines the split parts a plan belongs to.
type MergeSubjectRequest struct {
	SubjectID int64 `json:"subjectId" validate:"required,gt=0"`
}

// MergeSubjectResponse returns the merged record(s) and removed part ids.
type MergeSubjectResponse struct {
	MergedSubject  models.Plan   `json:"mergedSubject"`
	MergedSubjects []models.Plan `json:"mergedSubjects,omitempty"`
	DeletedParts   []int64       `json:"deletedParts"`
	IsCoTeaching   bool          `json:"isCoTeaching"`
}

// CoTeachingCheckResponse answers GET /subject/co-teaching/check.
type CoTeachingCheckResponse struct {
	GroupKey *string       `json:"groupKey,omitempty"`
	PlanIDs  []int64       `json:"planIds"`
	Details  []models.Plan `json:"details,omitempty"`
}

// LinkCoTeachingRequest marks plans as co-taught.
type LinkCoTeachingRequest struct {
	SubjectIDs []int64 `json:"subjectIds" validate:"required,min=2,dive,gt=0"`
	GroupKey   string  `json:"groupKey" validate:"omitempty,max=128"`
}

// UnlinkCoTeachingRequest removes plans from a co-teaching group.
type UnlinkCoTeachingRequest struct {
	GroupKey   string  `json:"groupKey" validate:"required"`
	SubjectIDs []int64 `json:"subjectIds" validate:"required,min=1,dive,gt=0"`
}
