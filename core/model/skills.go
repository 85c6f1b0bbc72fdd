package model

import "strings"

// NormalizeSkill lowercases and trims a skill tag so that comparisons are
// case and whitespace insensitive.
func NormalizeSkill(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeLocation applies the same normalisation as NormalizeSkill to a
// location label.
func NormalizeLocation(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SkillSet is a set of normalised skill tags.
type SkillSet map[string]struct{}

// NewSkillSet builds a SkillSet from raw tags. Empty tags are ignored.
func NewSkillSet(skills []string) SkillSet {
	set := make(SkillSet, len(skills))
	for _, s := range skills {
		n := NormalizeSkill(s)
		if n == "" {
			continue
		}
		set[n] = struct{}{}
	}
	return set
}

// Has reports whether the raw tag is present once normalised.
func (s SkillSet) Has(skill string) bool {
	_, ok := s[NormalizeSkill(skill)]
	return ok
}

// CoversAll reports whether every required tag is in the set. An empty
// requirement list is always covered.
func (s SkillSet) CoversAll(required []string) bool {
	for _, r := range required {
		if NormalizeSkill(r) == "" {
			continue
		}
		if !s.Has(r) {
			return false
		}
	}
	return true
}

// Matched returns the number of required tags present in the set and the
// number of non-empty required tags.
func (s SkillSet) Matched(required []string) (matched, total int) {
	for _, r := range required {
		if NormalizeSkill(r) == "" {
			continue
		}
		total++
		if s.Has(r) {
			matched++
		}
	}
	return matched, total
}
