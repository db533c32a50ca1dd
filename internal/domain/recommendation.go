package domain

import "strings"

// Sections splits a detail's recommendation into labelled blocks, keeping
// empty lists out.
func (d ActivityDetail) Sections() []RecommendationSection {
	sections := make([]RecommendationSection, 0, 4)
	if text := strings.TrimSpace(d.Recommendation); text != "" {
		sections = append(sections, RecommendationSection{Title: "Analysis", Lines: splitParagraphs(text)})
	}
	if len(d.Improvements) > 0 {
		sections = append(sections, RecommendationSection{Title: "Improvements", Lines: d.Improvements})
	}
	if len(d.Suggestions) > 0 {
		sections = append(sections, RecommendationSection{Title: "Suggestions", Lines: d.Suggestions})
	}
	if len(d.Safety) > 0 {
		sections = append(sections, RecommendationSection{Title: "Safety", Lines: d.Safety})
	}
	return sections
}

// RecommendationSection is one titled block of a recommendation.
type RecommendationSection struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

// The recommendation service joins analysis paragraphs with blank lines.
func splitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
