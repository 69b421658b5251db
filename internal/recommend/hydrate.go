package recommend

import (
	"strings"

	"github.com/spigell/internship-recommender/internal/scoring"
	"github.com/spigell/internship-recommender/internal/store"
)

// Hydrate fills every field the caller left empty from the stored profile. A
// nil stored profile leaves the query untouched. Skills come from the
// dedicated tech skills list when it has entries, otherwise from the profile.
func Hydrate(q scoring.Query, stored *store.StoredProfile) scoring.Query {
	out := scoring.Query{
		Sector:   strings.TrimSpace(q.Sector),
		Location: strings.TrimSpace(q.Location),
		Skills:   cleanSkills(q.Skills),
	}
	if stored == nil {
		return out
	}

	if out.Sector == "" {
		out.Sector = strings.TrimSpace(stored.Sector)
	}
	if out.Location == "" {
		out.Location = strings.TrimSpace(stored.Location)
	}
	if len(out.Skills) == 0 {
		// A saved but empty tech skills list does not hide the profile skills.
		if tech := cleanSkills(stored.TechSkills); len(tech) > 0 {
			out.Skills = tech
		} else {
			out.Skills = cleanSkills(stored.ProfileSkills)
		}
	}
	return out
}

// needsHydration reports whether any field of q is empty.
func needsHydration(q scoring.Query) bool {
	return strings.TrimSpace(q.Sector) == "" || strings.TrimSpace(q.Location) == "" || len(cleanSkills(q.Skills)) == 0
}

func cleanSkills(skills []string) []string {
	var out []string
	for _, skill := range skills {
		if skill = strings.TrimSpace(skill); skill != "" {
			out = append(out, skill)
		}
	}
	return out
}
