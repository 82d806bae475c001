package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/pkg/timegrid"
)

// memStore is an in-memory stand-in for the plans, timetables and co-teaching tables.
// WithinTx snapshots every table and restores it when the unit of work fails.
type memStore struct {
	mu sync.Mutex

	plans    map[int64]models.Plan
	entries  map[int64]models.TimetableEntry
	groups   map[string]int64
	members  map[int64]int64
	rooms    map[int64]string
	teachers map[int64]string

	nextPlan, nextEntry, nextGroup int64

	failEntryCreateFor map[int64]bool
	txCount            int
}

func newMemStore() *memStore {
	return &memStore{
		plans:              map[int64]models.Plan{},
		entries:            map[int64]models.TimetableEntry{},
		groups:             map[string]int64{},
		members:            map[int64]int64{},
		rooms:              map[int64]string{},
		teachers:           map[int64]string{},
		failEntryCreateFor: map[int64]bool{},
	}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	s.mu.Lock()
	s.txCount++
	snapPlans := copyMap(s.plans)
	snapEntries := copyMap(s.entries)
	snapGroups := copyMap(s.groups)
	snapMembers := copyMap(s.members)
	next := [3]int64{s.nextPlan, s.nextEntry, s.nextGroup}
	s.mu.Unlock()

	if err := fn(nil); err != nil {
		s.mu.Lock()
		s.plans, s.entries, s.groups, s.members = snapPlans, snapEntries, snapGroups, snapMembers
		s.nextPlan, s.nextEntry, s.nextGroup = next[0], next[1], next[2]
		s.mu.Unlock()
		return err
	}
	return nil
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *memStore) addPlan(p models.Plan) models.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPlan++
	p.ID = s.nextPlan
	s.plans[p.ID] = p
	return p
}

func (s *memStore) plan(id int64) (models.Plan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	return p, ok
}

func (s *memStore) placementOf(planID int64) (models.TimetableEntry, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found models.TimetableEntry
	count := 0
	for _, e := range s.entries {
		if e.PlanID == planID {
			found = e
			count++
		}
	}
	return found, count
}

func (s *memStore) entryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *memStore) link(key string, ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gid, ok := s.groups[key]
	if !ok {
		s.nextGroup++
		gid = s.nextGroup
		s.groups[key] = gid
	}
	for _, id := range ids {
		s.members[id] = gid
	}
}

func (s *memStore) place(planID int64, day, start, end int) {
	p, _ := s.plan(planID)
	e := siblingEntry(p, timegrid.Range{Day: day, Start: start, End: end})
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEntry++
	e.ID = s.nextEntry
	s.entries[e.ID] = e
}

func (s *memStore) groupKeyOf(planID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	gid, ok := s.members[planID]
	if !ok {
		return ""
	}
	for key, id := range s.groups {
		if id == gid {
			return key
		}
	}
	return ""
}

func sortedPlans(m map[int64]models.Plan, keep func(models.Plan) bool) []models.Plan {
	out := []models.Plan{}
	for _, p := range m {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func samePart(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// memPlans adapts memStore to the plan repository contract.
type memPlans struct{ *memStore }

func (r memPlans) FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (r memPlans) FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []int64) ([]models.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return sortedPlans(r.plans, func(p models.Plan) bool { return want[p.ID] }), nil
}

func (r memPlans) List(ctx context.Context, exec sqlx.ExtContext, f models.PlanFilter) ([]models.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedPlans(r.plans, func(p models.Plan) bool {
		return (f.TermYear == "" || p.TermYear == f.TermYear) &&
			(f.YearLevel == "" || p.YearLevel == f.YearLevel) &&
			(f.PlanType == "" || p.PlanType == f.PlanType)
	}), nil
}

func (r memPlans) ListBySectionOutsideType(ctx context.Context, exec sqlx.ExtContext, plan models.Plan, section string) ([]models.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedPlans(r.plans, func(p models.Plan) bool {
		return p.ID != plan.ID && p.SubjectCode == plan.SubjectCode && p.TermYear == plan.TermYear &&
			p.Section != nil && *p.Section == section && p.PlanType != plan.PlanType
	}), nil
}

func (r memPlans) FindDveSiblings(ctx context.Context, exec sqlx.ExtContext, plan models.Plan) ([]models.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedPlans(r.plans, func(p models.Plan) bool {
		return p.ID != plan.ID && p.PlanType.IsDVE() && p.SubjectCode == plan.SubjectCode &&
			p.TermYear == plan.TermYear && samePart(p.PartNumber, plan.PartNumber)
	}), nil
}

func (r memPlans) ListLineageParts(ctx context.Context, exec sqlx.ExtContext, plan models.Plan) ([]models.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	parts := sortedPlans(r.plans, func(p models.Plan) bool {
		return p.SubjectCode == plan.SubjectCode && p.TermYear == plan.TermYear && p.YearLevel == plan.YearLevel &&
			p.PlanType == plan.PlanType && p.BaseName != nil && *p.BaseName == plan.Lineage() && p.PartNumber != nil
	})
	sort.SliceStable(parts, func(i, j int) bool { return *parts[i].PartNumber < *parts[j].PartNumber })
	return parts, nil
}

func (r memPlans) Create(ctx context.Context, exec sqlx.ExtContext, plan *models.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextPlan++
	plan.ID = r.nextPlan
	r.plans[plan.ID] = *plan
	return nil
}

func (r memPlans) Update(ctx context.Context, exec sqlx.ExtContext, plan *models.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[plan.ID]; !ok {
		return sql.ErrNoRows
	}
	r.plans[plan.ID] = *plan
	return nil
}

func (r memPlans) Delete(ctx context.Context, exec sqlx.ExtContext, ids []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.plans, id)
		delete(r.members, id)
		for eid, e := range r.entries {
			if e.PlanID == id {
				delete(r.entries, eid)
			}
		}
	}
	return nil
}

// memEntries adapts memStore to the timetable repository contract.
type memEntries struct{ *memStore }

func (r memEntries) detail(e models.TimetableEntry) models.TimetableEntryDetail {
	p := r.plans[e.PlanID]
	d := models.TimetableEntryDetail{TimetableEntry: e, SubjectCode: p.SubjectCode, SubjectName: p.SubjectName, LectureHour: p.LectureHour, LabHour: p.LabHour}
	if e.RoomID != nil {
		if name, ok := r.rooms[*e.RoomID]; ok {
			d.RoomName = &name
		}
	}
	if e.TeacherID != nil {
		if name, ok := r.teachers[*e.TeacherID]; ok {
			d.TeacherName = &name
		}
	}
	return d
}

func (r memEntries) collect(keep func(models.TimetableEntry) bool) []models.TimetableEntryDetail {
	out := []models.TimetableEntryDetail{}
	for _, e := range r.entries {
		if keep(e) {
			out = append(out, r.detail(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		if out[i].StartPeriod != out[j].StartPeriod {
			return out[i].StartPeriod < out[j].StartPeriod
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r memEntries) List(ctx context.Context, f models.TimetableFilter) ([]models.TimetableEntryDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(func(e models.TimetableEntry) bool {
		return (f.RoomID == nil || e.RoomID != nil && *e.RoomID == *f.RoomID) &&
			(f.TeacherID == nil || e.TeacherID != nil && *e.TeacherID == *f.TeacherID) &&
			(f.TermYear == "" || e.TermYear == f.TermYear) &&
			(f.YearLevel == "" || e.YearLevel == f.YearLevel) &&
			(f.PlanType == "" || e.PlanType == f.PlanType)
	}), nil
}

func (r memEntries) ListByScope(ctx context.Context, exec sqlx.ExtContext, scope models.Scope) ([]models.TimetableEntryDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(func(e models.TimetableEntry) bool {
		return e.TermYear == scope.TermYear && e.YearLevel == scope.YearLevel && e.PlanType == scope.PlanType
	}), nil
}

func (r memEntries) FindDetailByPlan(ctx context.Context, exec sqlx.ExtContext, planID int64) (*models.TimetableEntryDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hits := r.collect(func(e models.TimetableEntry) bool { return e.PlanID == planID })
	if len(hits) == 0 {
		return nil, sql.ErrNoRows
	}
	return &hits[len(hits)-1], nil
}

func (r memEntries) FindOverlapping(ctx context.Context, exec sqlx.ExtContext, q models.OverlapQuery) ([]models.TimetableEntryDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(func(e models.TimetableEntry) bool {
		if e.TermYear != q.TermYear || e.Day != q.Day || e.PlanID == q.ExcludePlanID {
			return false
		}
		if !timegrid.Overlaps(q.Start, q.End, e.StartPeriod, e.EndPeriod) {
			return false
		}
		if q.YearLevel != "" && e.YearLevel != q.YearLevel {
			return false
		}
		if q.PlanType != "" && e.PlanType != q.PlanType {
			return false
		}
		if q.TeacherID != nil && (e.TeacherID == nil || *e.TeacherID != *q.TeacherID) {
			return false
		}
		if q.RoomID != nil && (e.RoomID == nil || *e.RoomID != *q.RoomID) {
			return false
		}
		if q.Section != nil && (e.Section == nil || *e.Section != *q.Section) {
			return false
		}
		return true
	}), nil
}

func (r memEntries) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failEntryCreateFor[entry.PlanID] {
		return errors.New("connection reset")
	}
	r.nextEntry++
	entry.ID = r.nextEntry
	r.entries[entry.ID] = *entry
	return nil
}

func (r memEntries) DeleteByPlans(ctx context.Context, exec sqlx.ExtContext, planIDs []int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[int64]bool{}
	for _, id := range planIDs {
		want[id] = true
	}
	var n int64
	for id, e := range r.entries {
		if want[e.PlanID] {
			delete(r.entries, id)
			n++
		}
	}
	return n, nil
}

// memGroups adapts memStore to the co-teaching repository contract.
type memGroups struct{ *memStore }

func (r memGroups) group(gid int64) *models.LinkGroup {
	var key string
	for k, id := range r.groups {
		if id == gid {
			key = k
		}
	}
	var ids []int64
	for planID, g := range r.members {
		if g == gid {
			ids = append(ids, planID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return &models.LinkGroup{GroupKey: key, PlanIDs: ids}
}

func (r memGroups) FindByPlan(ctx context.Context, exec sqlx.ExtContext, planID int64) (*models.LinkGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gid, ok := r.members[planID]
	if !ok {
		return nil, nil
	}
	return r.group(gid), nil
}

func (r memGroups) FindByKey(ctx context.Context, exec sqlx.ExtContext, key string) (*models.LinkGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gid, ok := r.groups[key]
	if !ok {
		return nil, nil
	}
	return r.group(gid), nil
}

func (r memGroups) Upsert(ctx context.Context, exec sqlx.ExtContext, key string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gid, ok := r.groups[key]; ok {
		return gid, nil
	}
	r.nextGroup++
	r.groups[key] = r.nextGroup
	return r.nextGroup, nil
}

func (r memGroups) AddMembers(ctx context.Context, exec sqlx.ExtContext, groupID int64, planIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range planIDs {
		r.members[id] = groupID
	}
	return nil
}

func (r memGroups) RemoveMembers(ctx context.Context, exec sqlx.ExtContext, key string, planIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	gid := r.groups[key]
	for _, id := range planIDs {
		if r.members[id] == gid {
			delete(r.members, id)
		}
	}
	return nil
}

func (r memGroups) DeleteSparse(ctx context.Context, exec sqlx.ExtContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[int64]int{}
	for _, gid := range r.members {
		counts[gid]++
	}
	for key, gid := range r.groups {
		if counts[gid] < 2 {
			delete(r.groups, key)
			for planID, g := range r.members {
				if g == gid {
					delete(r.members, planID)
				}
			}
		}
	}
	return nil
}

type testServices struct {
	store     *memStore
	links     *LinkService
	conflicts *ConflictService
	timetable *TimetableService
	parts     *SubjectPartService
	metrics   *MetricsService
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	store := newMemStore()
	validate := validator.New()
	logger := zap.NewNop()
	metrics := NewMetricsService()

	links := NewLinkService(memPlans{store}, memGroups{store}, memEntries{store}, store, nil, validate, logger)
	conflicts := NewConflictService(memEntries{store}, memPlans{store}, links, logger)
	timetable := NewTimetableService(memPlans{store}, memEntries{store}, links, conflicts, store, nil, 0, metrics, validate, logger)
	parts := NewSubjectPartService(memPlans{store}, memEntries{store}, links, store, nil, validate, logger)

	return &testServices{store: store, links: links, conflicts: conflicts, timetable: timetable, parts: parts, metrics: metrics}
}

const testTerm = "1/2567"

func newPlan(code, name string, lecture, lab int, level string, planType models.PlanType) models.Plan {
	return models.Plan{
		SubjectCode: code,
		SubjectName: name,
		Credit:      lecture + lab,
		LectureHour: lecture,
		LabHour:     lab,
		TermYear:    testTerm,
		YearLevel:   level,
		PlanType:    planType,
	}
}

func i64(v int64) *int64 { return &v }

func str(v string) *string { return &v }
