package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rd-agent/backend/internal/email"
	"github.com/rd-agent/backend/internal/flags"
	"github.com/rd-agent/backend/internal/unpaywall"
	"github.com/rd-agent/backend/pkg/ai"
	"github.com/rd-agent/backend/pkg/common"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/hypothesis"
	"github.com/rd-agent/backend/pkg/leaselock"
	"github.com/rd-agent/backend/pkg/triage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeStore struct {
	Store

	project       pgdb.Project
	members       []int64
	users         []pgdb.User
	notifications []pgdb.CreateNotificationsForUsersParams
	articles      map[string]pgdb.Article
	pdfKeys       map[string]string
	pdfKeyErr     error
	summary       string
}

func (f *fakeStore) GetProjectByID(_ context.Context, id int64) (pgdb.Project, error) {
	if id != f.project.ID {
		return pgdb.Project{}, pgx.ErrNoRows
	}
	return f.project, nil
}

func (f *fakeStore) ListProjectMemberIDs(context.Context, int64) ([]int64, error) {
	return f.members, nil
}

func (f *fakeStore) GetUsersByIDs(_ context.Context, ids []int64) ([]pgdb.User, error) {
	var out []pgdb.User
	for _, u := range f.users {
		for _, id := range ids {
			if u.ID == id {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) CreateNotificationsForUsers(_ context.Context, arg pgdb.CreateNotificationsForUsersParams) ([]pgdb.Notification, error) {
	f.notifications = append(f.notifications, arg)
	return make([]pgdb.Notification, len(arg.UserIDs)), nil
}

func (f *fakeStore) GetArticle(_ context.Context, pmid string) (pgdb.Article, error) {
	a, ok := f.articles[pmid]
	if !ok {
		return pgdb.Article{}, pgx.ErrNoRows
	}
	return a, nil
}

func (f *fakeStore) SetArticlePdfKey(_ context.Context, arg pgdb.SetArticlePdfKeyParams) error {
	if f.pdfKeyErr != nil {
		return f.pdfKeyErr
	}
	f.pdfKeys[arg.Pmid] = arg.PdfKey.String
	return nil
}

func (f *fakeStore) ListHypothesesByProject(context.Context, int64) ([]pgdb.Hypothesis, error) {
	return []pgdb.Hypothesis{{ID: 10, Text: "Metformin extends lifespan", Status: "testing", ConfidenceLevel: 60}}, nil
}

func (f *fakeStore) ListEvidenceByHypothesis(context.Context, int64) ([]pgdb.HypothesisEvidence, error) {
	return []pgdb.HypothesisEvidence{{ArticlePmid: "100", EvidenceType: "supports", Strength: "moderate", KeyFinding: "Lifespan +6%"}}, nil
}

func (f *fakeStore) ListTriageByProject(context.Context, int64) ([]pgdb.PaperTriage, error) {
	return []pgdb.PaperTriage{{ArticlePmid: "100", RelevanceScore: 80, Reasoning: "Direct evidence"}}, nil
}

func (f *fakeStore) ListExperimentResultsByProject(context.Context, int64) ([]pgdb.ExperimentResult, error) {
	return nil, nil
}

func (f *fakeStore) UpsertProjectSummary(_ context.Context, arg pgdb.UpsertProjectSummaryParams) (pgdb.ProjectSummary, error) {
	f.summary = arg.Summary
	return pgdb.ProjectSummary{ProjectID: arg.ProjectID, Summary: arg.Summary}, nil
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		project: pgdb.Project{ID: 1, Name: "Longevity"},
		members: []int64{1, 2, 3},
		users: []pgdb.User{
			{ID: 1, Email: "owner@example.org", Name: "Owner"},
			{ID: 2, Email: "two@example.org", Name: "Two"},
			{ID: 3, Email: "", Name: "No Mail"},
		},
		articles: map[string]pgdb.Article{
			"100": {Pmid: "100", Title: "Metformin", Doi: "10.1/abc"},
			"101": {Pmid: "101", Title: "No DOI"},
			"102": {Pmid: "102", Doi: "10.1/has", PdfKey: pgtype.Text{String: "articles/102/x.pdf", Valid: true}},
		},
		pdfKeys: map[string]string{},
	}
}

type inlineLocks struct {
	keys []string
	err  error
}

func (l *inlineLocks) WithLease(ctx context.Context, key string, _ leaselock.Options, fn func(ctx context.Context) error) error {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}

type fakeTriager struct{ err error }

func (f fakeTriager) TriageArticle(context.Context, int64, string) (triage.Result, error) {
	return triage.Result{}, f.err
}

type recordingMailer struct {
	sent []email.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg email.Message) error {
	m.sent = append(m.sent, msg)
	return m.err
}

type recordingPublisher struct {
	queues []string
	bodies [][]byte
}

func (p *recordingPublisher) Publish(_ context.Context, queueName string, body []byte) error {
	p.queues = append(p.queues, queueName)
	p.bodies = append(p.bodies, body)
	return nil
}

type fakePDFSource struct {
	urlErr      error
	downloadErr error
}

func (f fakePDFSource) PDFURL(context.Context, string) (string, error) {
	return "https://oa.example.org/a.pdf", f.urlErr
}

func (f fakePDFSource) Download(context.Context, string) ([]byte, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return []byte("%PDF-1.7"), nil
}

type fakeObjects struct {
	puts    int
	deleted []string
}

func (f *fakeObjects) PutPDF(_ context.Context, pmid string, _ []byte) (string, error) {
	f.puts++
	return "articles/" + pmid + "/abc.pdf", nil
}

func (f *fakeObjects) DeleteArticleFiles(_ context.Context, pmid string) error {
	f.deleted = append(f.deleted, pmid)
	return nil
}

type fakeAI struct{ prompt string }

func (f *fakeAI) GenerateCompletion(_ context.Context, prompt string, _ ...ai.GenerateOption) (string, error) {
	f.prompt = prompt
	return "  ## Overview\nAll good.  ", nil
}

func (f *fakeAI) GenerateCompletionWithFormat(context.Context, string, string, string, any, ...ai.GenerateOption) error {
	return errors.New("not used")
}

func (f *fakeAI) GenerateEmbedding(context.Context, []byte) ([]float32, error) { return nil, nil }
func (f *fakeAI) ResetMetrics()                                              {}
func (f *fakeAI) GetMetrics() ai.ModelMetrics                                { return ai.ModelMetrics{} }

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestProcessTriage_ErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "success"},
		{name: "scoring failed is acked", err: triage.ErrScoringFailed},
		{name: "empty article is acked", err: triage.ErrNoContent},
		{name: "deleted project is acked", err: pgx.ErrNoRows},
		{name: "database error is retried", err: errors.New("connection refused"), wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			locks := &inlineLocks{}
			w := &Worker{Triage: fakeTriager{err: tc.err}, Locks: locks}
			err := w.Process(context.Background(), TriageQueue, mustJSON(t, TriageMsg{ProjectID: 7, ArticlePmid: "100"}))
			if (err != nil) != tc.wantErr {
				t.Fatalf("got %v, wantErr %v", err, tc.wantErr)
			}
			if len(locks.keys) != 1 || locks.keys[0] != leaselock.TriageKey(7) {
				t.Fatalf("got lease keys %v", locks.keys)
			}
		})
	}
}

func TestProcessNotify_StoresAndMails(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	mailer := &recordingMailer{}
	w := &Worker{
		Store:      store,
		Mailer:     mailer,
		Flags:      flags.Flags{EmailNotifications: true},
		AppBaseURL: "https://app.example.org",
	}

	body := mustJSON(t, NotifyMsg{
		Kind:      common.NotifyMemberAdded,
		ProjectID: 1,
		ActorID:   1,
		Payload:   NotifyPayload{Role: "editor"},
	})
	if err := w.ProcessNotify(context.Background(), body); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if len(store.notifications) != 1 {
		t.Fatalf("got %d inserts, want 1", len(store.notifications))
	}
	got := store.notifications[0]
	if len(got.UserIDs) != 2 || got.UserIDs[0] != 2 || got.UserIDs[1] != 3 {
		t.Fatalf("got recipients %v, want [2 3]", got.UserIDs)
	}
	if got.Kind != string(common.NotifyMemberAdded) {
		t.Fatalf("got kind %q", got.Kind)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("got %d mails, want 1 (user without email skipped)", len(mailer.sent))
	}
	mail := mailer.sent[0]
	if mail.To[0].Email != "two@example.org" {
		t.Fatalf("got recipient %+v", mail.To)
	}
	if !strings.Contains(mail.Text, "**Owner**") || !strings.Contains(mail.HTML, "https://app.example.org/projects/1") {
		t.Fatalf("got mail text %q html %q", mail.Text, mail.HTML)
	}
}

func TestProcessNotify_MailDisabled(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	mailer := &recordingMailer{}
	w := &Worker{Store: store, Mailer: mailer, Flags: flags.Flags{EmailNotifications: false}}

	if err := w.ProcessNotify(context.Background(), mustJSON(t, NotifyMsg{Kind: common.NotifySummaryReady, ProjectID: 1})); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(store.notifications[0].UserIDs) != 3 {
		t.Fatalf("got recipients %v, want all members", store.notifications[0].UserIDs)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("expected no mail")
	}
}

func TestProcessNotify_RejectedMailIsNotRetried(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	mailer := &recordingMailer{err: email.ErrRejected}
	w := &Worker{Store: store, Mailer: mailer, Flags: flags.Flags{EmailNotifications: true}}

	err := w.ProcessNotify(context.Background(), mustJSON(t, NotifyMsg{
		Kind:      common.NotifyStatusChanged,
		ProjectID: 1,
		UserIDs:   []int64{2},
		Payload:   NotifyPayload{HypothesisText: "h", OldStatus: "proposed", NewStatus: "testing", Confidence: 60},
	}))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("got %d attempts, want 1", len(mailer.sent))
	}
}

func TestProcessNotify_UnknownProject(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	w := &Worker{Store: store}
	if err := w.ProcessNotify(context.Background(), mustJSON(t, NotifyMsg{Kind: common.NotifySummaryReady, ProjectID: 99})); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(store.notifications) != 0 {
		t.Fatalf("expected no notifications")
	}
}

func TestProcessPDF(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pmid    string
		flags   flags.Flags
		source  fakePDFSource
		wantKey bool
		wantErr bool
	}{
		{name: "stores pdf", pmid: "100", flags: flags.Flags{PDFFetch: true}, wantKey: true},
		{name: "disabled", pmid: "100"},
		{name: "no doi", pmid: "101", flags: flags.Flags{PDFFetch: true}},
		{name: "already stored", pmid: "102", flags: flags.Flags{PDFFetch: true}},
		{name: "unknown article", pmid: "999", flags: flags.Flags{PDFFetch: true}},
		{name: "closed access", pmid: "100", flags: flags.Flags{PDFFetch: true}, source: fakePDFSource{urlErr: unpaywall.ErrNoOpenAccess}},
		{name: "not a pdf", pmid: "100", flags: flags.Flags{PDFFetch: true}, source: fakePDFSource{downloadErr: unpaywall.ErrNotPDF}},
		{name: "transient failure", pmid: "100", flags: flags.Flags{PDFFetch: true}, source: fakePDFSource{urlErr: errors.New("timeout")}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := newFakeStore()
			objects := &fakeObjects{}
			w := &Worker{Store: store, Flags: tc.flags, PDFSource: tc.source, Objects: objects}

			err := w.Process(context.Background(), PDFQueue, mustJSON(t, PDFMsg{ArticlePmid: tc.pmid}))
			if (err != nil) != tc.wantErr {
				t.Fatalf("got %v, wantErr %v", err, tc.wantErr)
			}
			_, stored := store.pdfKeys[tc.pmid]
			if stored != tc.wantKey {
				t.Fatalf("got stored=%v, want %v", stored, tc.wantKey)
			}
			if tc.wantKey && store.pdfKeys[tc.pmid] != "articles/100/abc.pdf" {
				t.Fatalf("got key %q", store.pdfKeys[tc.pmid])
			}
		})
	}
}

func TestProcessPDF_RemovesObjectWhenKeyNotStored(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.pdfKeyErr = errors.New("connection reset")
	objects := &fakeObjects{}
	w := &Worker{Store: store, Flags: flags.Flags{PDFFetch: true}, PDFSource: fakePDFSource{}, Objects: objects}

	err := w.Process(context.Background(), PDFQueue, mustJSON(t, PDFMsg{ArticlePmid: "100"}))
	if err == nil {
		t.Fatalf("expected error when the key cannot be stored")
	}
	if objects.puts != 1 || len(objects.deleted) != 1 || objects.deleted[0] != "100" {
		t.Fatalf("got puts=%d deleted=%v, want one upload removed again", objects.puts, objects.deleted)
	}
}

func TestProcessSummary(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	model := &fakeAI{}
	pub := &recordingPublisher{}
	locks := &inlineLocks{}
	w := &Worker{Store: store, AI: model, Publisher: pub, Locks: locks}

	if err := w.Process(context.Background(), SummaryQueue, mustJSON(t, SummaryMsg{ProjectID: 1})); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if store.summary != "## Overview\nAll good." {
		t.Fatalf("got summary %q", store.summary)
	}
	for _, want := range []string{"Metformin extends lifespan", "Lifespan +6%", "[100] Metformin"} {
		if !strings.Contains(model.prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
	if locks.keys[0] != leaselock.SummaryKey(1) {
		t.Fatalf("got lease key %q", locks.keys[0])
	}
	if len(pub.queues) != 1 || pub.queues[0] != NotifyQueue {
		t.Fatalf("got published %v", pub.queues)
	}
	var msg NotifyMsg
	json.Unmarshal(pub.bodies[0], &msg)
	if msg.Kind != common.NotifySummaryReady || msg.ProjectID != 1 {
		t.Fatalf("got notify %+v", msg)
	}
}

func TestProcessSummary_BusyIsAcked(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	w := &Worker{Store: newFakeStore(), Publisher: pub, Locks: &inlineLocks{err: leaselock.ErrBusy}}
	if err := w.ProcessSummary(context.Background(), mustJSON(t, SummaryMsg{ProjectID: 1})); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(pub.queues) != 0 {
		t.Fatalf("expected no notification while another worker holds the lease")
	}
}

func TestStatusNotifier(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	n := StatusNotifier{Publisher: pub}
	err := n.StatusChanged(context.Background(), 4, []hypothesis.Update{{
		Hypothesis:     pgdb.Hypothesis{ID: 9, Text: "H"},
		PreviousStatus: common.StatusTesting,
		Assessment:     hypothesis.Assessment{Status: common.StatusSupported, Confidence: 60},
	}})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	var msg NotifyMsg
	if err := json.Unmarshal(pub.bodies[0], &msg); err != nil {
		t.Fatalf("expected valid json, got %v", err)
	}
	want := NotifyPayload{HypothesisID: 9, HypothesisText: "H", OldStatus: "testing", NewStatus: "supported", Confidence: 60}
	if msg.Payload != want || msg.ProjectID != 4 || msg.Kind != common.NotifyStatusChanged {
		t.Fatalf("got %+v", msg)
	}
}

func TestRetryCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		headers amqp.Table
		want    int
	}{
		{headers: nil, want: 0},
		{headers: amqp.Table{"x-retries": int32(3)}, want: 3},
		{headers: amqp.Table{"x-retries": int64(4)}, want: 4},
		{headers: amqp.Table{"x-retries": "x"}, want: 0},
	}

	for _, tc := range tests {
		if got := RetryCount(tc.headers); got != tc.want {
			t.Fatalf("got %d, want %d for %v", got, tc.want, tc.headers)
		}
	}
}

func TestProcess_UnknownQueue(t *testing.T) {
	t.Parallel()

	if err := (&Worker{}).Process(context.Background(), "nope", nil); err == nil {
		t.Fatalf("expected error")
	}
}
