package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rd-agent/backend/internal/util"
	"github.com/rd-agent/backend/pkg/ai"
	"github.com/rd-agent/backend/pkg/common"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/leaselock"

	"github.com/jackc/pgx/v5"
)

const summaryPaperLimit = 15

// ProcessSummary regenerates the AI summary of a project under the
// project's summary lease and announces it to the members.
func (w *Worker) ProcessSummary(ctx context.Context, body []byte) error {
	var msg SummaryMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		queueLog.Error("Dropping malformed summary message", "err", err)
		return nil
	}

	err := w.Locks.WithLease(ctx, leaselock.SummaryKey(msg.ProjectID), leaselock.Options{
		TTL: 5 * time.Minute,
	}, func(ctx context.Context) error {
		return w.generateSummary(ctx, msg.ProjectID)
	})

	switch {
	case errors.Is(err, leaselock.ErrBusy):
		queueLog.Info("Summary already being generated", "project_id", msg.ProjectID)
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil
	case err != nil:
		return err
	}

	if w.Cache != nil {
		if err := w.Cache.InvalidateProject(ctx, msg.ProjectID); err != nil {
			queueLog.Warn("Failed to invalidate project cache", "project_id", msg.ProjectID, "err", err)
		}
	}
	if w.Publisher != nil {
		if err := EnqueueNotify(ctx, w.Publisher, NotifyMsg{Kind: common.NotifySummaryReady, ProjectID: msg.ProjectID}); err != nil {
			queueLog.Warn("Failed to enqueue summary notification", "project_id", msg.ProjectID, "err", err)
		}
	}
	return nil
}

func (w *Worker) generateSummary(ctx context.Context, projectID int64) error {
	project, err := w.Store.GetProjectByID(ctx, projectID)
	if err != nil {
		return err
	}

	hyps, err := w.Store.ListHypothesesByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to list hypotheses: %w", err)
	}
	var hypText strings.Builder
	for _, h := range hyps {
		fmt.Fprintf(&hypText, "- [%s, %d%%] %s\n", h.Status, h.ConfidenceLevel, h.Text)
		links, err := w.Store.ListEvidenceByHypothesis(ctx, h.ID)
		if err != nil {
			return fmt.Errorf("failed to list evidence of hypothesis %d: %w", h.ID, err)
		}
		for _, l := range links {
			fmt.Fprintf(&hypText, "  - %s (%s) [%s]: %s\n", l.EvidenceType, l.Strength, l.ArticlePmid, l.KeyFinding)
		}
	}

	triaged, err := w.Store.ListTriageByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to list triage: %w", err)
	}
	var papers strings.Builder
	for i, t := range triaged {
		if i == summaryPaperLimit {
			break
		}
		title := t.ArticlePmid
		if a, err := w.Store.GetArticle(ctx, t.ArticlePmid); err == nil {
			title = a.Title
		}
		fmt.Fprintf(&papers, "- [%s] %s (relevance %d): %s\n", t.ArticlePmid, title, t.RelevanceScore, util.TruncateWithEllipsis(t.Reasoning, 300))
	}

	experiments, err := w.Store.ListExperimentResultsByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to list experiments: %w", err)
	}
	var expText strings.Builder
	for _, e := range experiments {
		fmt.Fprintf(&expText, "- %s: %s. %s\n", e.Title, e.Outcome, util.TruncateWithEllipsis(e.Notes, 300))
	}

	prompt := fmt.Sprintf(ai.SummaryPrompt,
		project.Name+"\n"+project.Description,
		orNone(hypText.String()),
		orNone(papers.String()),
		orNone(expText.String()),
	)

	var opts []ai.GenerateOption
	if w.SummaryModel != "" {
		opts = append(opts, ai.WithModel(w.SummaryModel))
	}
	summary, err := w.AI.GenerateCompletion(ctx, prompt, opts...)
	if err != nil {
		return fmt.Errorf("failed to generate summary: %w", err)
	}

	_, err = w.Store.UpsertProjectSummary(ctx, pgdb.UpsertProjectSummaryParams{
		ProjectID: projectID,
		Summary:   strings.TrimSpace(summary),
	})
	if err != nil {
		return fmt.Errorf("failed to store summary: %w", err)
	}
	queueLog.Info("Generated project summary", "project_id", projectID)
	return nil
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
