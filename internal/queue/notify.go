package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rd-agent/backend/internal/email"
	"github.com/rd-agent/backend/internal/util"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	mailTries   = 3
	mailBackoff = time.Second
)

// ProcessNotify stores one in-app notification per recipient and mails
// them when email notifications are on. Mail failures are logged and never
// fail the message, so a retry cannot duplicate the stored rows.
func (w *Worker) ProcessNotify(ctx context.Context, body []byte) error {
	var msg NotifyMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		queueLog.Error("Dropping malformed notify message", "err", err)
		return nil
	}

	project, err := w.Store.GetProjectByID(ctx, msg.ProjectID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}

	recipients, err := w.recipients(ctx, msg)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return err
	}
	rows, err := w.Store.CreateNotificationsForUsers(ctx, pgdb.CreateNotificationsForUsersParams{
		UserIDs:   recipients,
		ProjectID: pgtype.Int8{Int64: msg.ProjectID, Valid: true},
		Kind:      string(msg.Kind),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("failed to store notifications: %w", err)
	}
	queueLog.Debug("Stored notifications", "kind", msg.Kind, "project_id", msg.ProjectID, "count", len(rows))

	if !w.Flags.EmailNotifications || w.Mailer == nil {
		return nil
	}
	w.mail(ctx, msg, project, recipients)
	return nil
}

func (w *Worker) recipients(ctx context.Context, msg NotifyMsg) ([]int64, error) {
	ids := msg.UserIDs
	if len(ids) == 0 {
		members, err := w.Store.ListProjectMemberIDs(ctx, msg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to list project members: %w", err)
		}
		ids = members
	}

	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == msg.ActorID || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func (w *Worker) mail(ctx context.Context, msg NotifyMsg, project pgdb.Project, recipients []int64) {
	lookup := recipients
	if msg.ActorID != 0 {
		lookup = append(slices.Clone(recipients), msg.ActorID)
	}
	users, err := w.Store.GetUsersByIDs(ctx, lookup)
	if err != nil {
		queueLog.Warn("Failed to load recipients for email", "project_id", msg.ProjectID, "err", err)
		return
	}

	actorName := "A collaborator"
	for _, u := range users {
		if u.ID == msg.ActorID && u.Name != "" {
			actorName = u.Name
		}
	}

	for _, u := range users {
		if u.ID == msg.ActorID || u.Email == "" {
			continue
		}

		subject, text, html, err := email.Render(msg.Kind, email.Data{
			RecipientName:  u.Name,
			ActorName:      actorName,
			ProjectName:    project.Name,
			ProjectURL:     w.projectURL(project.ID),
			Role:           msg.Payload.Role,
			HypothesisText: msg.Payload.HypothesisText,
			OldStatus:      msg.Payload.OldStatus,
			NewStatus:      msg.Payload.NewStatus,
			Confidence:     msg.Payload.Confidence,
		})
		if err != nil {
			queueLog.Error("Failed to render email", "kind", msg.Kind, "err", err)
			return
		}

		mail := email.Message{
			To:      []email.Address{{Email: u.Email, Name: u.Name}},
			Subject: subject,
			Text:    text,
			HTML:    html,
		}
		err = util.RetryErrWithContext(ctx, mailTries, mailBackoff, func(ctx context.Context) error {
			err := w.Mailer.Send(ctx, mail)
			if errors.Is(err, email.ErrRejected) {
				return util.NoRetry(err)
			}
			return err
		})
		if err != nil {
			queueLog.Warn("Failed to send email", "user_id", u.ID, "kind", msg.Kind, "err", err)
		}
	}
}
