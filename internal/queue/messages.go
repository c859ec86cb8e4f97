package queue

import (
	"context"

	"github.com/rd-agent/backend/pkg/common"
	"github.com/rd-agent/backend/pkg/hypothesis"
)

type TriageMsg struct {
	ProjectID   int64  `json:"project_id"`
	ArticlePmid string `json:"article_pmid"`
	RequestedBy int64  `json:"requested_by,omitempty"`
}

// NotifyMsg fans a notification out to project members. Empty UserIDs means
// every member except the actor.
type NotifyMsg struct {
	Kind      common.NotificationKind `json:"kind"`
	ProjectID int64                   `json:"project_id"`
	ActorID   int64                   `json:"actor_id,omitempty"`
	UserIDs   []int64                 `json:"user_ids,omitempty"`
	Payload   NotifyPayload           `json:"payload"`
}

// NotifyPayload is stored with the notification row and feeds the email.
type NotifyPayload struct {
	Role           string `json:"role,omitempty"`
	HypothesisID   int64  `json:"hypothesis_id,omitempty"`
	HypothesisText string `json:"hypothesis_text,omitempty"`
	OldStatus      string `json:"old_status,omitempty"`
	NewStatus      string `json:"new_status,omitempty"`
	Confidence     int    `json:"confidence,omitempty"`
}

type PDFMsg struct {
	ArticlePmid string `json:"article_pmid"`
}

type SummaryMsg struct {
	ProjectID   int64 `json:"project_id"`
	RequestedBy int64 `json:"requested_by,omitempty"`
}

func EnqueueTriage(ctx context.Context, p Publisher, msg TriageMsg) error {
	return publishJSON(ctx, p, TriageQueue, msg)
}

func EnqueueNotify(ctx context.Context, p Publisher, msg NotifyMsg) error {
	return publishJSON(ctx, p, NotifyQueue, msg)
}

func EnqueuePDF(ctx context.Context, p Publisher, msg PDFMsg) error {
	return publishJSON(ctx, p, PDFQueue, msg)
}

func EnqueueSummary(ctx context.Context, p Publisher, msg SummaryMsg) error {
	return publishJSON(ctx, p, SummaryQueue, msg)
}

// StatusNotifier turns hypothesis status changes into notify messages.
type StatusNotifier struct {
	Publisher Publisher
}

func (n StatusNotifier) StatusChanged(ctx context.Context, projectID int64, updates []hypothesis.Update) error {
	for _, u := range updates {
		err := EnqueueNotify(ctx, n.Publisher, NotifyMsg{
			Kind:      common.NotifyStatusChanged,
			ProjectID: projectID,
			Payload: NotifyPayload{
				HypothesisID:   u.Hypothesis.ID,
				HypothesisText: u.Hypothesis.Text,
				OldStatus:      string(u.PreviousStatus),
				NewStatus:      string(u.Assessment.Status),
				Confidence:     u.Assessment.Confidence,
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}
