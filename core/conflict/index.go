package conflict

import "github.com/kilianp07/fieldplan/core/model"

// SkillIndex maps normalised skills to the technicians holding them.
type SkillIndex struct {
	bySkill map[string]map[string]struct{}
	size    int
}

// NewSkillIndex indexes the given technicians.
func NewSkillIndex(techs []model.Technician) SkillIndex {
	idx := SkillIndex{bySkill: map[string]map[string]struct{}{}, size: len(techs)}
	for _, t := range techs {
		for skill := range t.SkillSet() {
			set, ok := idx.bySkill[skill]
			if !ok {
				set = map[string]struct{}{}
				idx.bySkill[skill] = set
			}
			set[t.ID] = struct{}{}
		}
	}
	return idx
}

// AnyQualified reports whether at least one indexed technician holds every
// required skill. With no requirement it is true iff the index is not empty,
// matching a scan of Qualifies over the same technicians.
func (idx SkillIndex) AnyQualified(required []string) bool {
	req := model.NewSkillSet(required)
	if len(req) == 0 {
		return idx.size > 0
	}
	var candidates map[string]struct{}
	for skill := range req {
		holders := idx.bySkill[skill]
		if len(holders) == 0 {
			return false
		}
		if candidates == nil {
			candidates = make(map[string]struct{}, len(holders))
			for id := range holders {
				candidates[id] = struct{}{}
			}
			continue
		}
		for id := range candidates {
			if _, ok := holders[id]; !ok {
				delete(candidates, id)
			}
		}
		if len(candidates) == 0 {
			return false
		}
	}
	return len(candidates) > 0
}
