package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type overlapFinder interface {
	FindOverlapping(ctx context.Context, exec sqlx.ExtContext, q models.OverlapQuery) ([]models.TimetableEntryDetail, error)
}

type sectionFinder interface {
	ListBySectionOutsideType(ctx context.Context, exec sqlx.ExtContext, plan models.Plan, section string) ([]models.Plan, error)
}

type linkGroupFinder interface {
	FindLinkGroup(ctx context.Context, exec sqlx.ExtContext, planID int64) (*models.LinkGroup, error)
}

// ConflictService detects collisions between a candidate placement and the stored timetable.
type ConflictService struct {
	placements overlapFinder
	plans      sectionFinder
	links      linkGroupFinder
	logger     *zap.Logger
}

// NewConflictService constructs a conflict detector.
func NewConflictService(placements overlapFinder, plans sectionFinder, links linkGroupFinder, logger *zap.Logger) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{placements: placements, plans: plans, links: links, logger: logger}
}

// Detect returns one report per conflict kind found for placing plan at candidate.
// DVE plans and members of an active co-teaching group are never checked.
func (s *ConflictService) Detect(ctx context.Context, exec sqlx.ExtContext, plan models.Plan, candidate models.TimetableEntry) ([]models.ConflictReport, error) {
	if plan.PlanType.IsDVE() {
		return nil, nil
	}
	group, err := s.links.FindLinkGroup(ctx, exec, plan.ID)
	if err != nil {
		return nil, err
	}
	if group.Active() {
		return nil, nil
	}

	base := models.OverlapQuery{
		TermYear:      candidate.TermYear,
		Day:           candidate.Day,
		Start:         candidate.StartPeriod,
		End:           candidate.EndPeriod,
		ExcludePlanID: plan.ID,
	}

	var reports []models.ConflictReport

	timeQuery := base
	timeQuery.YearLevel = candidate.YearLevel
	timeQuery.PlanType = candidate.PlanType
	if report, err := s.overlapReport(ctx, exec, models.ConflictTime, timeQuery, "time slot overlaps %d existing placement(s) in this timetable"); err != nil {
		return nil, err
	} else if report != nil {
		reports = append(reports, *report)
	}

	if candidate.TeacherID != nil {
		q := base
		q.TeacherID = candidate.TeacherID
		if report, err := s.overlapReport(ctx, exec, models.ConflictTeacher, q, "teacher is already teaching %d overlapping placement(s)"); err != nil {
			return nil, err
		} else if report != nil {
			reports = append(reports, *report)
		}
	}

	if candidate.RoomID != nil {
		q := base
		q.RoomID = candidate.RoomID
		if report, err := s.overlapReport(ctx, exec, models.ConflictRoom, q, "room is already booked by %d overlapping placement(s)"); err != nil {
			return nil, err
		} else if report != nil {
			reports = append(reports, *report)
		}
	}

	if candidate.Section != nil && *candidate.Section != "" {
		dupes, err := s.plans.ListBySectionOutsideType(ctx, exec, plan, *candidate.Section)
		if err != nil {
			return nil, appErrors.Storage(err, "failed to check section labels")
		}
		if len(dupes) > 0 {
			items := make([]models.ConflictItem, 0, len(dupes))
			for _, d := range dupes {
				items = append(items, models.ConflictItem{PlanID: d.ID, Plan: d.Summary(), Section: d.Section})
			}
			reports = append(reports, models.ConflictReport{
				Type:      models.ConflictDuplicateSection,
				Message:   fmt.Sprintf("section %s is already used by %d subject(s) of another plan type", *candidate.Section, len(dupes)),
				Conflicts: items,
			})
		}

		q := base
		q.YearLevel = candidate.YearLevel
		q.PlanType = candidate.PlanType
		q.Section = candidate.Section
		if report, err := s.overlapReport(ctx, exec, models.ConflictSection, q, "section is already scheduled in %d overlapping placement(s)"); err != nil {
			return nil, err
		} else if report != nil {
			reports = append(reports, *report)
		}
	}

	if len(reports) > 0 {
		s.logger.Debug("placement conflicts detected", zap.Int64("plan_id", plan.ID), zap.Int("reports", len(reports)))
	}
	return reports, nil
}

func (s *ConflictService) overlapReport(ctx context.Context, exec sqlx.ExtContext, kind models.ConflictType, q models.OverlapQuery, format string) (*models.ConflictReport, error) {
	hits, err := s.placements.FindOverlapping(ctx, exec, q)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to check timetable conflicts")
	}
	if len(hits) == 0 {
		return nil, nil
	}
	items := make([]models.ConflictItem, 0, len(hits))
	for i := range hits {
		items = append(items, conflictItem(hits[i]))
	}
	return &models.ConflictReport{Type: kind, Message: fmt.Sprintf(format, len(hits)), Conflicts: items}, nil
}

func conflictItem(hit models.TimetableEntryDetail) models.ConflictItem {
	day, start, end := hit.Day, hit.StartPeriod, hit.EndPeriod
	return models.ConflictItem{
		PlanID: hit.PlanID,
		Plan: models.PlanSummary{
			ID:          hit.PlanID,
			SubjectCode: hit.SubjectCode,
			SubjectName: hit.SubjectName,
			YearLevel:   hit.YearLevel,
			PlanType:    hit.PlanType,
			LectureHour: hit.LectureHour,
			LabHour:     hit.LabHour,
		},
		Day:         &day,
		StartPeriod: &start,
		EndPeriod:   &end,
		Teacher:     hit.TeacherName,
		Room:        hit.RoomName,
		Section:     hit.Section,
	}
}
