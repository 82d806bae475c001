package models

import "fmt"

// Scope is the (term, year level, track) bucket a timetable is built for.
type Scope struct {
	TermYear  string   `json:"termYear"`
	YearLevel string   `json:"yearLevel"`
	PlanType  PlanType `json:"planType"`
}

// String renders the scope for logs and cache keys.
func (s Scope) String() string {
	return fmt.Sprintf("%s/%s/%s", s.TermYear, s.PlanType, s.YearLevel)
}

// CurriculumTrack lists the year levels scheduled for one track.
type CurriculumTrack struct {
	PlanType   PlanType `json:"planType" validate:"required"`
	YearLevels []string `json:"yearLevels" validate:"required,min=1,dive,required"`
}

// DefaultCurriculum returns the tracks scheduled by a full-curriculum run.
// DVE-MSIX is absent: it follows DVE-LVC through mirroring.
func DefaultCurriculum() []CurriculumTrack {
	return []CurriculumTrack{
		{PlanType: PlanTypeTransfer, YearLevels: []string{"1", "2", "3"}},
		{PlanType: PlanTypeFourYear, YearLevels: []string{"1", "2", "3", "4"}},
		{PlanType: PlanTypeDVELVC, YearLevels: []string{"1", "2"}},
	}
}

// ExpandScopes turns curriculum tracks into concrete scopes for a term.
func ExpandScopes(termYear string, tracks []CurriculumTrack) []Scope {
	var scopes []Scope
	for _, track := range tracks {
		for _, level := range track.YearLevels {
			scopes = append(scopes, Scope{TermYear: termYear, YearLevel: level, PlanType: track.PlanType})
		}
	}
	return scopes
}
