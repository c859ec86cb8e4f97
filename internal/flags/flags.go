// Package flags reads feature toggles from FEATURE_* environment variables.
package flags

import (
	"github.com/rd-agent/backend/internal/util"
)

type Flags struct {
	AutoEvidence          bool `json:"auto_evidence"`
	AutoStatus            bool `json:"auto_status"`
	EmailNotifications    bool `json:"email_notifications"`
	CollectionSuggestions bool `json:"collection_suggestions"`
	PDFFetch              bool `json:"pdf_fetch"`
}

// Default is what a fresh deployment runs with. Email and PDF fetching need
// external accounts and start disabled.
func Default() Flags {
	return Flags{
		AutoEvidence:          true,
		AutoStatus:            true,
		EmailNotifications:    false,
		CollectionSuggestions: true,
		PDFFetch:              false,
	}
}

// FromEnv overlays FEATURE_<NAME> variables on Default.
func FromEnv() Flags {
	d := Default()
	return Flags{
		AutoEvidence:          util.GetEnvBool("FEATURE_AUTO_EVIDENCE", d.AutoEvidence),
		AutoStatus:            util.GetEnvBool("FEATURE_AUTO_STATUS", d.AutoStatus),
		EmailNotifications:    util.GetEnvBool("FEATURE_EMAIL_NOTIFICATIONS", d.EmailNotifications),
		CollectionSuggestions: util.GetEnvBool("FEATURE_COLLECTION_SUGGESTIONS", d.CollectionSuggestions),
		PDFFetch:              util.GetEnvBool("FEATURE_PDF_FETCH", d.PDFFetch),
	}
}
