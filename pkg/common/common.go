package common

import "strings"

// EvidenceType is the direction in which a paper bears on a hypothesis.
type EvidenceType string

const (
	EvidenceSupports    EvidenceType = "supports"
	EvidenceContradicts EvidenceType = "contradicts"
	EvidenceNeutral     EvidenceType = "neutral"
)

// Valid reports whether t is one of the known evidence types.
func (t EvidenceType) Valid() bool {
	switch t {
	case EvidenceSupports, EvidenceContradicts, EvidenceNeutral:
		return true
	}
	return false
}

// Strength is the weight attached to an evidence link.
type Strength string

const (
	StrengthWeak     Strength = "weak"
	StrengthModerate Strength = "moderate"
	StrengthStrong   Strength = "strong"
)

func (s Strength) Valid() bool {
	switch s {
	case StrengthWeak, StrengthModerate, StrengthStrong:
		return true
	}
	return false
}

// HypothesisStatus is the lifecycle state of a hypothesis, derived from its
// evidence counts.
type HypothesisStatus string

const (
	StatusProposed     HypothesisStatus = "proposed"
	StatusTesting      HypothesisStatus = "testing"
	StatusSupported    HypothesisStatus = "supported"
	StatusRejected     HypothesisStatus = "rejected"
	StatusInconclusive HypothesisStatus = "inconclusive"
)

// TriageStatus buckets a paper by its overall relevance to a project.
type TriageStatus string

const (
	TriageMustRead   TriageStatus = "must_read"
	TriageNiceToKnow TriageStatus = "nice_to_know"
	TriageIgnore     TriageStatus = "ignore"
)

// TriageStatusForScore maps a project relevance score (0-100) to a triage bucket.
func TriageStatusForScore(score int) TriageStatus {
	switch {
	case score >= 70:
		return TriageMustRead
	case score >= 40:
		return TriageNiceToKnow
	default:
		return TriageIgnore
	}
}

// ParseTriageStatus normalizes a user supplied triage status. Unknown values
// return false.
func ParseTriageStatus(s string) (TriageStatus, bool) {
	switch TriageStatus(strings.ToLower(strings.TrimSpace(s))) {
	case TriageMustRead:
		return TriageMustRead, true
	case TriageNiceToKnow:
		return TriageNiceToKnow, true
	case TriageIgnore:
		return TriageIgnore, true
	}
	return "", false
}

// RelevanceEntry is one element of the per-hypothesis or per-question
// relevance JSON stored on a triage row.
type RelevanceEntry struct {
	ID          int64  `json:"id"`
	Score       int    `json:"score"`
	SupportType string `json:"support_type,omitempty"`
	KeyFinding  string `json:"key_finding,omitempty"`
}

// ClampScore keeps a relevance score inside 0..100.
func ClampScore(score int) int {
	return max(0, min(100, score))
}

// ProjectRole is the access level of a project member.
type ProjectRole string

const (
	RoleOwner  ProjectRole = "owner"
	RoleEditor ProjectRole = "editor"
	RoleViewer ProjectRole = "viewer"
)

// CanWrite reports whether members with this role may change project data.
func (r ProjectRole) CanWrite() bool {
	return r == RoleOwner || r == RoleEditor
}

// NotificationKind names the event behind an in-app notification or email.
type NotificationKind string

const (
	NotifyMemberAdded   NotificationKind = "member_added"
	NotifyStatusChanged NotificationKind = "hypothesis_status_changed"
	NotifySummaryReady  NotificationKind = "summary_ready"
)
