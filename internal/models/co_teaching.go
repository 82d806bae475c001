package models

import "time"

// CoTeachingGroup links plans across tracks that must share one placement.
type CoTeachingGroup struct {
	ID        int64     `db:"id" json:"id"`
	GroupKey  string    `db:"group_key" json:"groupKey"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// LinkGroup is a resolved group with its member plan ids.
type LinkGroup struct {
	GroupKey string  `json:"groupKey"`
	PlanIDs  []int64 `json:"planIds"`
}

// Active reports whether the group actually links more than one plan.
func (g *LinkGroup) Active() bool {
	return g != nil && len(g.PlanIDs) > 1
}

// Contains reports whether planID is a member.
func (g *LinkGroup) Contains(planID int64) bool {
	if g == nil {
		return false
	}
	for _, id := range g.PlanIDs {
		if id == planID {
			return true
		}
	}
	return false
}
