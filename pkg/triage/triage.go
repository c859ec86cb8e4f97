// Package triage scores a paper against a project with the AI model and
// stores the verdict.
//
// One call writes the triage row, links the paper as evidence to every
// hypothesis it scored high enough for and recomputes the status of those
// hypotheses, all in a single transaction.
package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rd-agent/backend/internal/flags"
	"github.com/rd-agent/backend/internal/util"
	"github.com/rd-agent/backend/pkg/ai"
	"github.com/rd-agent/backend/pkg/common"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/evidence"
	"github.com/rd-agent/backend/pkg/hypothesis"
	"github.com/rd-agent/backend/pkg/loader/web"
	"github.com/rd-agent/backend/pkg/logger"

	"github.com/pgvector/pgvector-go"
)

const DefaultMaxPaperTokens = 6000

var (
	// ErrScoringFailed means the model produced no usable verdict. Nothing
	// was written and the paper can be triaged again later.
	ErrScoringFailed = errors.New("ai scoring failed")
	ErrNoContent     = errors.New("article has neither title nor abstract")
)

var logMsg = logger.Prefixed("Triage")

// TextFetcher returns readable text for a landing page URL or a stored
// PDF key.
type TextFetcher interface {
	FetchText(ctx context.Context, source string) (string, error)
}

// Invalidator drops cached project views.
type Invalidator interface {
	InvalidateProject(ctx context.Context, projectID int64) error
}

// Notifier is told about hypotheses whose status changed.
type Notifier interface {
	StatusChanged(ctx context.Context, projectID int64, updates []hypothesis.Update) error
}

// Verdict is the structured answer expected from the model.
type Verdict struct {
	RelevanceScore int                 `json:"relevance_score" jsonschema:"minimum=0,maximum=100"`
	Reasoning      string              `json:"reasoning"`
	Hypotheses     []HypothesisVerdict `json:"hypotheses"`
	Questions      []QuestionVerdict   `json:"questions"`
}

type HypothesisVerdict struct {
	HypothesisID int64  `json:"hypothesis_id"`
	Score        int    `json:"score" jsonschema:"minimum=0,maximum=100"`
	SupportType  string `json:"support_type" jsonschema:"enum=supports,enum=contradicts,enum=tests,enum=provides_context,enum=not_relevant"`
	KeyFinding   string `json:"key_finding"`
}

type QuestionVerdict struct {
	QuestionID int64 `json:"question_id"`
	Score      int   `json:"score" jsonschema:"minimum=0,maximum=100"`
}

// Result is what one triage run stored.
type Result struct {
	Triage  pgdb.PaperTriage      `json:"triage"`
	Links   []evidence.LinkResult `json:"links"`
	Updates []hypothesis.Update   `json:"updates"`
	Status  common.TriageStatus   `json:"status"`
}

type Service struct {
	store          Store
	ai             ai.Client
	web            TextFetcher
	pdf            TextFetcher
	cache          Invalidator
	notifier       Notifier
	flags          flags.Flags
	model          string
	maxPaperTokens int
	truncate       func(text string, maxTokens int) (string, bool, error)
}

type NewServiceParams struct {
	Store    Store
	AI       ai.Client
	Web      TextFetcher
	PDF      TextFetcher
	Cache    Invalidator
	Notifier Notifier
	Flags    flags.Flags
	// Model overrides the client's default chat model when set.
	Model          string
	MaxPaperTokens int
}

func NewService(params NewServiceParams) *Service {
	maxTokens := params.MaxPaperTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxPaperTokens
	}
	return &Service{
		store:          params.Store,
		ai:             params.AI,
		web:            params.Web,
		pdf:            params.PDF,
		cache:          params.Cache,
		notifier:       params.Notifier,
		flags:          params.Flags,
		model:          params.Model,
		maxPaperTokens: maxTokens,
		truncate:       ai.TruncateToTokens,
	}
}

// TriageArticle scores pmid against the project and persists the outcome.
// Re-running it for the same paper updates the triage row and leaves
// existing evidence links untouched.
func (s *Service) TriageArticle(ctx context.Context, projectID int64, pmid string) (Result, error) {
	project, err := s.store.GetProjectByID(ctx, projectID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load project %d: %w", projectID, err)
	}
	article, err := s.store.GetArticle(ctx, pmid)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load article %s: %w", pmid, err)
	}
	hyps, err := s.store.ListHypothesesByProject(ctx, projectID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list hypotheses: %w", err)
	}
	questions, err := s.store.ListQuestionsByProject(ctx, projectID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list research questions: %w", err)
	}

	paper, err := s.paperText(ctx, article)
	if err != nil {
		return Result{}, err
	}

	prompt := fmt.Sprintf(ai.TriagePrompt,
		formatProject(project),
		formatHypotheses(hyps),
		formatQuestions(questions),
		paper,
	)

	opts := []ai.GenerateOption{ai.WithTemperature(0)}
	if s.model != "" {
		opts = append(opts, ai.WithModel(s.model))
	}

	var verdict Verdict
	err = s.ai.GenerateCompletionWithFormat(ctx, "paper_triage", "Relevance of a paper to a research project", prompt, &verdict, opts...)
	if err != nil {
		logger.Error(logMsg("Scoring failed, skipping article"), "project_id", projectID, "pmid", pmid, "err", err)
		return Result{}, fmt.Errorf("%w: %w", ErrScoringFailed, err)
	}

	hypScores, hypRelevance := sanitizeHypotheses(verdict.Hypotheses, hyps)
	questionRelevance := sanitizeQuestions(verdict.Questions, questions)
	score := common.ClampScore(verdict.RelevanceScore)
	status := common.TriageStatusForScore(score)

	hypJSON, err := json.Marshal(hypRelevance)
	if err != nil {
		return Result{}, err
	}
	questionJSON, err := json.Marshal(questionRelevance)
	if err != nil {
		return Result{}, err
	}

	result := Result{Status: status}
	err = s.store.InTx(ctx, func(w Writer) error {
		row, err := w.UpsertPaperTriage(ctx, pgdb.UpsertPaperTriageParams{
			ProjectID:           projectID,
			ArticlePmid:         pmid,
			RelevanceScore:      int32(score),
			TriageStatus:        string(status),
			Reasoning:           strings.TrimSpace(verdict.Reasoning),
			HypothesisRelevance: hypJSON,
			QuestionRelevance:   questionJSON,
		})
		if err != nil {
			return fmt.Errorf("failed to store triage: %w", err)
		}
		result.Triage = row

		if !s.flags.AutoEvidence {
			return nil
		}
		links, err := evidence.LinkArticle(ctx, w, pmid, hypScores)
		if err != nil {
			return err
		}
		result.Links = links

		if !s.flags.AutoStatus {
			return nil
		}
		updates, err := hypothesis.RecomputeAll(ctx, w, evidence.Touched(links))
		if err != nil {
			return err
		}
		result.Updates = updates
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	logger.Info(logMsg("Triaged article"),
		"project_id", projectID,
		"pmid", pmid,
		"score", score,
		"status", status,
		"new_links", len(evidence.Touched(result.Links)),
	)

	s.afterCommit(ctx, projectID, article, result)
	return result, nil
}

func (s *Service) afterCommit(ctx context.Context, projectID int64, article pgdb.Article, result Result) {
	if s.cache != nil {
		if err := s.cache.InvalidateProject(ctx, projectID); err != nil {
			logger.Warn(logMsg("Failed to invalidate project cache"), "project_id", projectID, "err", err)
		}
	}

	if s.notifier != nil {
		changed := make([]hypothesis.Update, 0, len(result.Updates))
		for _, u := range result.Updates {
			if u.StatusChanged() {
				changed = append(changed, u)
			}
		}
		if len(changed) > 0 {
			if err := s.notifier.StatusChanged(ctx, projectID, changed); err != nil {
				logger.Warn(logMsg("Failed to send status notifications"), "project_id", projectID, "err", err)
			}
		}
	}

	if err := s.ensureEmbedding(ctx, article); err != nil {
		logger.Warn(logMsg("Failed to embed article"), "pmid", article.Pmid, "err", err)
	}
}

func (s *Service) ensureEmbedding(ctx context.Context, article pgdb.Article) error {
	has, err := s.store.HasArticleEmbedding(ctx, article.Pmid)
	if err != nil || has {
		return err
	}
	text := strings.TrimSpace(article.Title + "\n\n" + article.Abstract)
	vec, err := s.ai.GenerateEmbedding(ctx, []byte(text))
	if err != nil {
		return err
	}
	return s.store.SetArticleEmbedding(ctx, pgdb.SetArticleEmbeddingParams{
		Pmid:      article.Pmid,
		Embedding: pgvector.NewVector(vec),
	})
}

func (s *Service) paperText(ctx context.Context, article pgdb.Article) (string, error) {
	abstract := strings.TrimSpace(article.Abstract)
	if abstract == "" {
		abstract = s.fullText(ctx, article)
	}
	if strings.TrimSpace(article.Title) == "" && abstract == "" {
		return "", ErrNoContent
	}

	var b strings.Builder
	fmt.Fprintf(&b, "PMID: %s\nTitle: %s\n", article.Pmid, article.Title)
	if article.Journal != "" {
		fmt.Fprintf(&b, "Journal: %s\n", article.Journal)
	}
	if article.PubYear.Valid {
		fmt.Fprintf(&b, "Year: %d\n", article.PubYear.Int32)
	}
	b.WriteString("\n")
	b.WriteString(abstract)

	text, cut, err := s.truncate(b.String(), s.maxPaperTokens)
	if err != nil {
		// roughly four characters per token
		return util.TruncateWithEllipsis(b.String(), s.maxPaperTokens*4), nil
	}
	if cut {
		logger.Debug(logMsg("Paper text truncated"), "pmid", article.Pmid, "max_tokens", s.maxPaperTokens)
	}
	return text, nil
}

// fullText stands in for a missing abstract. The stored PDF is preferred
// over the landing page. An empty result means neither had text.
func (s *Service) fullText(ctx context.Context, article pgdb.Article) string {
	if article.PdfKey.Valid && article.PdfKey.String != "" && s.pdf != nil {
		text, err := s.pdf.FetchText(ctx, article.PdfKey.String)
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
		logger.Debug(logMsg("No PDF text"), "pmid", article.Pmid, "pdf_key", article.PdfKey.String, "err", err)
	}

	if article.Doi != "" && s.web != nil {
		text, err := s.web.FetchText(ctx, web.DOIURL(article.Doi))
		if err == nil {
			return strings.TrimSpace(text)
		}
		logger.Debug(logMsg("No landing page text"), "pmid", article.Pmid, "doi", article.Doi, "err", err)
	}
	return ""
}

// sanitizeHypotheses drops verdicts for ids outside the project, keeps the
// first verdict per id and clamps scores.
func sanitizeHypotheses(verdicts []HypothesisVerdict, hyps []pgdb.Hypothesis) ([]evidence.HypothesisScore, []common.RelevanceEntry) {
	known := make(map[int64]struct{}, len(hyps))
	for _, h := range hyps {
		known[h.ID] = struct{}{}
	}

	scores := make([]evidence.HypothesisScore, 0, len(verdicts))
	entries := make([]common.RelevanceEntry, 0, len(verdicts))
	for _, v := range verdicts {
		if _, ok := known[v.HypothesisID]; !ok {
			continue
		}
		delete(known, v.HypothesisID)

		score := common.ClampScore(v.Score)
		finding := strings.TrimSpace(v.KeyFinding)
		scores = append(scores, evidence.HypothesisScore{
			HypothesisID: v.HypothesisID,
			Score:        score,
			SupportType:  v.SupportType,
			KeyFinding:   finding,
		})
		entries = append(entries, common.RelevanceEntry{
			ID:          v.HypothesisID,
			Score:       score,
			SupportType: strings.ToLower(strings.TrimSpace(v.SupportType)),
			KeyFinding:  finding,
		})
	}
	return scores, entries
}

func sanitizeQuestions(verdicts []QuestionVerdict, questions []pgdb.ResearchQuestion) []common.RelevanceEntry {
	known := make(map[int64]struct{}, len(questions))
	for _, q := range questions {
		known[q.ID] = struct{}{}
	}

	entries := make([]common.RelevanceEntry, 0, len(verdicts))
	for _, v := range verdicts {
		if _, ok := known[v.QuestionID]; !ok {
			continue
		}
		delete(known, v.QuestionID)
		entries = append(entries, common.RelevanceEntry{ID: v.QuestionID, Score: common.ClampScore(v.Score)})
	}
	return entries
}

func formatProject(p pgdb.Project) string {
	if p.Description == "" {
		return p.Name
	}
	return p.Name + "\n" + p.Description
}

func formatHypotheses(hyps []pgdb.Hypothesis) string {
	if len(hyps) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, h := range hyps {
		b.WriteString("- id " + strconv.FormatInt(h.ID, 10) + ": " + h.Text + "\n")
	}
	return b.String()
}

func formatQuestions(questions []pgdb.ResearchQuestion) string {
	if len(questions) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, q := range questions {
		b.WriteString("- id " + strconv.FormatInt(q.ID, 10) + ": " + q.Text + "\n")
	}
	return b.String()
}
