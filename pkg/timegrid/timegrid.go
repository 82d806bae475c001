// Package timegrid models the weekly day × period coordinate space used by timetables.
//
// Days run 0 (Monday) to 6 (Sunday) and each day has 25 periods indexed 0..24.
// Period ranges are closed: a range [start, end] occupies end-start+1 periods.
package timegrid

const (
	Days          = 7
	PeriodsPerDay = 25

	Wednesday = 2

	// ActivityStart and ActivityEnd bound the Wednesday activity block (inclusive).
	ActivityStart = 14
	ActivityEnd   = 17

	// PeriodsPerHour maps one lecture or lab hour to grid periods.
	PeriodsPerHour = 2
)

// Range is a closed period range on one day.
type Range struct {
	Day   int `json:"day"`
	Start int `json:"startPeriod"`
	End   int `json:"endPeriod"`
}

// Len returns the number of periods covered by the range.
func (r Range) Len() int {
	return r.End - r.Start + 1
}

// RequiredPeriods converts lecture and lab hours into grid periods.
func RequiredPeriods(lectureHour, labHour int) int {
	return (lectureHour + labHour) * PeriodsPerHour
}

// ValidDay reports whether day is within Monday..Sunday.
func ValidDay(day int) bool {
	return day >= 0 && day < Days
}

// ValidRange reports whether [start, end] is an ordered range inside one day.
func ValidRange(start, end int) bool {
	return start >= 0 && end < PeriodsPerDay && start <= end
}

// Fits reports whether total periods starting at start stay inside the day.
func Fits(start, total int) bool {
	return total > 0 && start >= 0 && start+total-1 < PeriodsPerDay
}

// InActivityBlock reports whether [start, end] on day touches the Wednesday activity block.
func InActivityBlock(day, start, end int) bool {
	if day != Wednesday {
		return false
	}
	return Overlaps(start, end, ActivityStart, ActivityEnd)
}

// Overlaps reports whether candidate [aStart, aEnd] intersects existing [bStart, bEnd]:
// the candidate starts inside the existing range, ends inside it, or contains it.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	startInside := aStart >= bStart && aStart <= bEnd
	endInside := aEnd >= bStart && aEnd <= bEnd
	contains := aStart <= bStart && aEnd >= bEnd
	return startInside || endInside || contains
}

// Gap returns the number of free periods between two disjoint ranges, or -1 when they overlap.
func Gap(aStart, aEnd, bStart, bEnd int) int {
	if Overlaps(aStart, aEnd, bStart, bEnd) {
		return -1
	}
	if aEnd < bStart {
		return bStart - aEnd - 1
	}
	return aStart - bEnd - 1
}

// Candidates lists every placement of total periods in search order
// (day 0..6, then start period ascending), skipping the activity block.
func Candidates(total int) []Range {
	if total <= 0 || total > PeriodsPerDay {
		return nil
	}
	result := make([]Range, 0, Days*(PeriodsPerDay-total+1))
	for day := 0; day < Days; day++ {
		for start := 0; start+total <= PeriodsPerDay; start++ {
			end := start + total - 1
			if InActivityBlock(day, start, end) {
				continue
			}
			result = append(result, Range{Day: day, Start: start, End: end})
		}
	}
	return result
}
