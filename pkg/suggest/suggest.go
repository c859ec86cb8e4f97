// Package suggest proposes named collections from a project's must-read papers.
//
// Suggestions are computed on demand and never stored. A caller that wants to
// keep one materializes it into a collection.
package suggest

import (
	"cmp"
	"slices"

	"github.com/rd-agent/backend/internal/util"
	"github.com/rd-agent/backend/pkg/common"
)

const (
	DefaultMinPapers = 5
	// HighImpactScore is the relevance score from which a paper counts as high impact.
	HighImpactScore = 80
	// LinkScore is the per-hypothesis or per-question score from which a paper
	// counts as linked to it.
	LinkScore = 40

	nameMaxRunes = 50
)

// Type tags where a suggestion came from.
type Type string

const (
	TypeHypothesis Type = "hypothesis"
	TypeQuestion   Type = "question"
	TypeHighImpact Type = "high_impact"
)

// Valid reports whether t is a known suggestion type.
func (t Type) Valid() bool {
	switch t {
	case TypeHypothesis, TypeQuestion, TypeHighImpact:
		return true
	}
	return false
}

// Paper is a triaged paper as seen by the suggester.
type Paper struct {
	PMID           string
	RelevanceScore int
	Hypotheses     []common.RelevanceEntry
	Questions      []common.RelevanceEntry
}

// Source is a hypothesis or research question that can anchor a suggestion.
type Source struct {
	ID   int64
	Text string
}

// Suggestion is a proposed collection.
type Suggestion struct {
	Type        Type     `json:"type"`
	SourceID    *int64   `json:"source_id,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PMIDs       []string `json:"pmids"`
}

// Options tune the suggester.
type Options struct {
	MinPapers int
}

type member struct {
	pmid  string
	score int
}

// Suggest groups must-read papers by hypothesis, by research question and by
// high relevance. Output order is deterministic: hypothesis suggestions by
// source id, then question suggestions by source id, then high impact.
func Suggest(papers []Paper, hypotheses, questions []Source, opts Options) []Suggestion {
	minPapers := opts.MinPapers
	if minPapers <= 0 {
		minPapers = DefaultMinPapers
	}

	byHypothesis := make(map[int64][]member)
	byQuestion := make(map[int64][]member)
	var highImpact []member

	for _, p := range papers {
		for _, id := range linkedIDs(p.Hypotheses) {
			byHypothesis[id] = append(byHypothesis[id], member{p.PMID, p.RelevanceScore})
		}
		for _, id := range linkedIDs(p.Questions) {
			byQuestion[id] = append(byQuestion[id], member{p.PMID, p.RelevanceScore})
		}
		if p.RelevanceScore >= HighImpactScore {
			highImpact = append(highImpact, member{p.PMID, p.RelevanceScore})
		}
	}

	suggestions := make([]Suggestion, 0)
	suggestions = append(suggestions, groupSuggestions(TypeHypothesis, "Evidence: ", hypotheses, byHypothesis, minPapers)...)
	suggestions = append(suggestions, groupSuggestions(TypeQuestion, "Question: ", questions, byQuestion, minPapers)...)

	if pmids := orderedPMIDs(highImpact); len(pmids) >= minPapers {
		suggestions = append(suggestions, Suggestion{
			Type:        TypeHighImpact,
			Name:        "High-Impact Papers",
			Description: "Must-read papers with a relevance score of 80 or more",
			PMIDs:       pmids,
		})
	}

	return suggestions
}

func groupSuggestions(t Type, prefix string, sources []Source, groups map[int64][]member, minPapers int) []Suggestion {
	ordered := slices.Clone(sources)
	slices.SortFunc(ordered, func(a, b Source) int { return cmp.Compare(a.ID, b.ID) })

	var out []Suggestion
	for _, src := range ordered {
		pmids := orderedPMIDs(groups[src.ID])
		if len(pmids) < minPapers {
			continue
		}
		id := src.ID
		out = append(out, Suggestion{
			Type:        t,
			SourceID:    &id,
			Name:        prefix + util.TruncateWithEllipsis(src.Text, nameMaxRunes),
			Description: src.Text,
			PMIDs:       pmids,
		})
	}
	return out
}

func linkedIDs(entries []common.RelevanceEntry) []int64 {
	seen := make(map[int64]struct{}, len(entries))
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		if e.Score < LinkScore {
			continue
		}
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		ids = append(ids, e.ID)
	}
	return ids
}

func orderedPMIDs(members []member) []string {
	sorted := slices.Clone(members)
	slices.SortFunc(sorted, func(a, b member) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.pmid, b.pmid)
	})

	seen := make(map[string]struct{}, len(sorted))
	pmids := make([]string, 0, len(sorted))
	for _, m := range sorted {
		if _, ok := seen[m.pmid]; ok {
			continue
		}
		seen[m.pmid] = struct{}{}
		pmids = append(pmids, m.pmid)
	}
	return pmids
}
