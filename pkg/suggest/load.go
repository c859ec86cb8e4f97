package suggest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rd-agent/backend/pkg/common"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
)

// Store is the persistence the suggester reads from.
type Store interface {
	ListTriageByStatus(ctx context.Context, arg pgdb.ListTriageByStatusParams) ([]pgdb.PaperTriage, error)
	ListHypothesesByProject(ctx context.Context, projectID int64) ([]pgdb.Hypothesis, error)
	ListQuestionsByProject(ctx context.Context, projectID int64) ([]pgdb.ResearchQuestion, error)
}

// ForProject loads the must-read papers of a project and runs Suggest.
func ForProject(ctx context.Context, q Store, projectID int64, opts Options) ([]Suggestion, error) {
	rows, err := q.ListTriageByStatus(ctx, pgdb.ListTriageByStatusParams{
		ProjectID:    projectID,
		TriageStatus: string(common.TriageMustRead),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list must-read papers: %w", err)
	}

	hyps, err := q.ListHypothesesByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list hypotheses: %w", err)
	}
	questions, err := q.ListQuestionsByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list research questions: %w", err)
	}

	papers := make([]Paper, 0, len(rows))
	for _, row := range rows {
		p, err := PaperFromTriage(row)
		if err != nil {
			return nil, err
		}
		papers = append(papers, p)
	}

	hypSources := make([]Source, 0, len(hyps))
	for _, h := range hyps {
		hypSources = append(hypSources, Source{ID: h.ID, Text: h.Text})
	}
	questionSources := make([]Source, 0, len(questions))
	for _, rq := range questions {
		questionSources = append(questionSources, Source{ID: rq.ID, Text: rq.Text})
	}

	return Suggest(papers, hypSources, questionSources, opts), nil
}

// PaperFromTriage decodes the relevance JSON of a triage row.
func PaperFromTriage(row pgdb.PaperTriage) (Paper, error) {
	p := Paper{PMID: row.ArticlePmid, RelevanceScore: int(row.RelevanceScore)}
	if err := decodeRelevance(row.HypothesisRelevance, &p.Hypotheses); err != nil {
		return Paper{}, fmt.Errorf("invalid hypothesis relevance for %s: %w", row.ArticlePmid, err)
	}
	if err := decodeRelevance(row.QuestionRelevance, &p.Questions); err != nil {
		return Paper{}, fmt.Errorf("invalid question relevance for %s: %w", row.ArticlePmid, err)
	}
	return p, nil
}

func decodeRelevance(raw []byte, out *[]common.RelevanceEntry) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, out)
}
