package graph

import "strings"

// Experience is the riding experience level declared by an actor.
type Experience int

const (
	ExperienceAny Experience = iota
	ExperienceBeginner
	ExperienceIntermediate
	ExperienceExpert
)

// ParseExperience maps the labels used by the front end to an Experience.
// Unknown labels yield ExperienceAny.
func ParseExperience(s string) Experience {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "beginner", "novice", "principiante":
		return ExperienceBeginner
	case "intermediate", "intermedio":
		return ExperienceIntermediate
	case "expert", "advanced", "experto", "avanzado":
		return ExperienceExpert
	default:
		return ExperienceAny
	}
}

// MaxDisplacement returns the largest engine displacement (cc) suited to
// the experience level, 0 meaning no limit.
func (e Experience) MaxDisplacement() float64 {
	switch e {
	case ExperienceBeginner:
		return 500
	case ExperienceIntermediate:
		return 1000
	default:
		return 0
	}
}

// Profile enumerates the preference fields an actor may set to narrow down
// recommendations. The zero value admits every item.
type Profile struct {
	Experience Experience
	BudgetMin  float64
	BudgetMax  float64
	Categories []string
	Brands     []string
}

// Admits reports whether item satisfies the profile. Attributes the item
// does not carry never exclude it.
func (p *Profile) Admits(item ItemFeatures) bool {
	if p == nil {
		return true
	}
	if item.Price > 0 {
		if p.BudgetMin > 0 && item.Price < p.BudgetMin {
			return false
		}
		if p.BudgetMax > 0 && item.Price > p.BudgetMax {
			return false
		}
	}
	if limit := p.Experience.MaxDisplacement(); limit > 0 && item.Displacement > limit {
		return false
	}
	if item.Category != "" && len(p.Categories) != 0 && !containsFold(p.Categories, item.Category) {
		return false
	}
	if item.Brand != "" && len(p.Brands) != 0 && !containsFold(p.Brands, item.Brand) {
		return false
	}
	return true
}

func containsFold(list []string, s string) bool {
	s = strings.TrimSpace(s)
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}
