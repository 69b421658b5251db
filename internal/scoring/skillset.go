package scoring

import (
	"strings"

	"github.com/spigell/internship-recommender/internal/normalize"
)

// SkillSet is a normalized, deduplicated set of skills. Iteration follows the
// order in which skills were first seen.
type SkillSet struct {
	items []string
	index map[string]struct{}
}

// NewSkillSet normalizes skills and drops duplicates and empty entries.
func NewSkillSet(skills []string) SkillSet {
	set := SkillSet{index: make(map[string]struct{}, len(skills))}
	for _, skill := range skills {
		skill = normalize.Text(skill)
		if skill == "" {
			continue
		}
		if _, ok := set.index[skill]; ok {
			continue
		}
		set.index[skill] = struct{}{}
		set.items = append(set.items, skill)
	}
	return set
}

// ParseSkills splits a comma separated skills string.
func ParseSkills(s string) []string {
	var skills []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			skills = append(skills, part)
		}
	}
	return skills
}

func (s SkillSet) Len() int { return len(s.items) }

func (s SkillSet) Items() []string {
	return append([]string(nil), s.items...)
}

func (s SkillSet) Contains(skill string) bool {
	_, ok := s.index[skill]
	return ok
}
