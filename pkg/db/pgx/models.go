package pgdb

import (
	"encoding/json"

	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID        int64              `db:"id" json:"id"`
	Email     string             `db:"email" json:"email"`
	Name      string             `db:"name" json:"name"`
	CreatedAt pgtype.Timestamptz `db:"created_at" json:"created_at"`
}

type Project struct {
	ID          int64              `db:"id" json:"id"`
	Name        string             `db:"name" json:"name"`
	Description string             `db:"description" json:"description"`
	OwnerID     int64              `db:"owner_id" json:"owner_id"`
	CreatedAt   pgtype.Timestamptz `db:"created_at" json:"created_at"`
	UpdatedAt   pgtype.Timestamptz `db:"updated_at" json:"updated_at"`
}

type ProjectMember struct {
	ProjectID int64              `db:"project_id" json:"project_id"`
	UserID    int64              `db:"user_id" json:"user_id"`
	Role      string             `db:"role" json:"role"`
	CreatedAt pgtype.Timestamptz `db:"created_at" json:"created_at"`
}

type Article struct {
	Pmid      string             `db:"pmid" json:"pmid"`
	Title     string             `db:"title" json:"title"`
	Abstract  string             `db:"abstract" json:"abstract"`
	Journal   string             `db:"journal" json:"journal"`
	PubYear   pgtype.Int4        `db:"pub_year" json:"pub_year"`
	Doi       string             `db:"doi" json:"doi"`
	PdfKey    pgtype.Text        `db:"pdf_key" json:"pdf_key"`
	CreatedAt pgtype.Timestamptz `db:"created_at" json:"created_at"`
	UpdatedAt pgtype.Timestamptz `db:"updated_at" json:"updated_at"`
}

type ProjectArticle struct {
	ProjectID   int64              `db:"project_id" json:"project_id"`
	ArticlePmid string             `db:"article_pmid" json:"article_pmid"`
	AddedBy     pgtype.Int8        `db:"added_by" json:"added_by"`
	CreatedAt   pgtype.Timestamptz `db:"created_at" json:"created_at"`
}

type ResearchQuestion struct {
	ID        int64              `db:"id" json:"id"`
	ProjectID int64              `db:"project_id" json:"project_id"`
	Text      string             `db:"text" json:"text"`
	CreatedAt pgtype.Timestamptz `db:"created_at" json:"created_at"`
}

type Hypothesis struct {
	ID                         int64              `db:"id" json:"id"`
	ProjectID                  int64              `db:"project_id" json:"project_id"`
	QuestionID                 pgtype.Int8        `db:"question_id" json:"question_id"`
	Text                       string             `db:"text" json:"text"`
	Status                     string             `db:"status" json:"status"`
	ConfidenceLevel            int32              `db:"confidence_level" json:"confidence_level"`
	SupportingEvidenceCount    int32              `db:"supporting_evidence_count" json:"supporting_evidence_count"`
	ContradictingEvidenceCount int32              `db:"contradicting_evidence_count" json:"contradicting_evidence_count"`
	NeutralEvidenceCount       int32              `db:"neutral_evidence_count" json:"neutral_evidence_count"`
	CreatedBy                  pgtype.Int8        `db:"created_by" json:"created_by"`
	CreatedAt                  pgtype.Timestamptz `db:"created_at" json:"created_at"`
	UpdatedAt                  pgtype.Timestamptz `db:"updated_at" json:"updated_at"`
}

type HypothesisEvidence struct {
	ID             int64              `db:"id" json:"id"`
	HypothesisID   int64              `db:"hypothesis_id" json:"hypothesis_id"`
	ArticlePmid    string             `db:"article_pmid" json:"article_pmid"`
	EvidenceType   string             `db:"evidence_type" json:"evidence_type"`
	Strength       string             `db:"strength" json:"strength"`
	KeyFinding     string             `db:"key_finding" json:"key_finding"`
	RelevanceScore int32              `db:"relevance_score" json:"relevance_score"`
	AddedBy        pgtype.Int8        `db:"added_by" json:"added_by"`
	CreatedAt      pgtype.Timestamptz `db:"created_at" json:"created_at"`
}

type PaperTriage struct {
	ID                  int64              `db:"id" json:"id"`
	ProjectID           int64              `db:"project_id" json:"project_id"`
	ArticlePmid         string             `db:"article_pmid" json:"article_pmid"`
	RelevanceScore      int32              `db:"relevance_score" json:"relevance_score"`
	TriageStatus        string             `db:"triage_status" json:"triage_status"`
	Reasoning           string             `db:"reasoning" json:"reasoning"`
	HypothesisRelevance json.RawMessage    `db:"hypothesis_relevance" json:"hypothesis_relevance"`
	QuestionRelevance   json.RawMessage    `db:"question_relevance" json:"question_relevance"`
	CreatedAt           pgtype.Timestamptz `db:"created_at" json:"created_at"`
	UpdatedAt           pgtype.Timestamptz `db:"updated_at" json:"updated_at"`
}

type Collection struct {
	ID          int64              `db:"id" json:"id"`
	ProjectID   int64              `db:"project_id" json:"project_id"`
	Name        string             `db:"name" json:"name"`
	Description string             `db:"description" json:"description"`
	SourceType  string             `db:"source_type" json:"source_type"`
	CreatedBy   pgtype.Int8        `db:"created_by" json:"created_by"`
	CreatedAt   pgtype.Timestamptz `db:"created_at" json:"created_at"`
}

type ArticleCollection struct {
	CollectionID int64              `db:"collection_id" json:"collection_id"`
	ArticlePmid  string             `db:"article_pmid" json:"article_pmid"`
	AddedBy      pgtype.Int8        `db:"added_by" json:"added_by"`
	CreatedAt    pgtype.Timestamptz `db:"created_at" json:"created_at"`
}

type Annotation struct {
	ID          int64              `db:"id" json:"id"`
	ProjectID   int64              `db:"project_id" json:"project_id"`
	ArticlePmid string             `db:"article_pmid" json:"article_pmid"`
	UserID      int64              `db:"user_id" json:"user_id"`
	Content     string             `db:"content" json:"content"`
	NoteType    string             `db:"note_type" json:"note_type"`
	CreatedAt   pgtype.Timestamptz `db:"created_at" json:"created_at"`
}

type ExperimentResult struct {
	ID           int64              `db:"id" json:"id"`
	ProjectID    int64              `db:"project_id" json:"project_id"`
	HypothesisID pgtype.Int8        `db:"hypothesis_id" json:"hypothesis_id"`
	Title        string             `db:"title" json:"title"`
	Outcome      string             `db:"outcome" json:"outcome"`
	Notes        string             `db:"notes" json:"notes"`
	CreatedBy    int64              `db:"created_by" json:"created_by"`
	CreatedAt    pgtype.Timestamptz `db:"created_at" json:"created_at"`
	UpdatedAt    pgtype.Timestamptz `db:"updated_at" json:"updated_at"`
}

type ProjectSummary struct {
	ProjectID   int64              `db:"project_id" json:"project_id"`
	Summary     string             `db:"summary" json:"summary"`
	GeneratedAt pgtype.Timestamptz `db:"generated_at" json:"generated_at"`
}

type Notification struct {
	ID        int64              `db:"id" json:"id"`
	UserID    int64              `db:"user_id" json:"user_id"`
	ProjectID pgtype.Int8        `db:"project_id" json:"project_id"`
	Kind      string             `db:"kind" json:"kind"`
	Payload   json.RawMessage    `db:"payload" json:"payload"`
	ReadAt    pgtype.Timestamptz `db:"read_at" json:"read_at"`
	CreatedAt pgtype.Timestamptz `db:"created_at" json:"created_at"`
}
