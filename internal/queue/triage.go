package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rd-agent/backend/pkg/leaselock"
	"github.com/rd-agent/backend/pkg/triage"

	"github.com/jackc/pgx/v5"
)

// ProcessTriage triages one article while holding the project's triage
// lease, so two workers never score papers of the same project at once.
func (w *Worker) ProcessTriage(ctx context.Context, body []byte) error {
	var msg TriageMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		queueLog.Error("Dropping malformed triage message", "err", err)
		return nil
	}

	err := w.Locks.WithLease(ctx, leaselock.TriageKey(msg.ProjectID), leaselock.Options{
		TTL:  10 * time.Minute,
		Wait: true,
	}, func(ctx context.Context) error {
		_, err := w.Triage.TriageArticle(ctx, msg.ProjectID, msg.ArticlePmid)
		return err
	})

	log := queueLog.With("project_id", msg.ProjectID, "pmid", msg.ArticlePmid)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, triage.ErrScoringFailed), errors.Is(err, triage.ErrNoContent):
		log.Warn("Article skipped", "err", err)
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		log.Warn("Project or article no longer exists")
		return nil
	}
	return err
}
