package accesslog

import (
	"time"

	"github.com/google/uuid"

	"github.com/medvault/medvault/internal/domain/consent"
)

// Outcome tags recorded in the action description of a decision entry.
const (
	OutcomeAllow             = "ALLOW"
	OutcomePartial           = "PARTIAL"
	OutcomeDeny              = "DENY"
	OutcomeEscalationOffered = "ESCALATION_OFFERED"
	OutcomeEmergency         = "EMERGENCY_ACCESS"
)

// Entry is one immutable record of an access decision. Entries are only ever
// appended; nothing in this codebase updates or deletes them.
type Entry struct {
	ID                uuid.UUID     `json:"id"`
	PatientID         uuid.UUID     `json:"patient_id"`
	AccessedBy        uuid.UUID     `json:"accessed_by"`
	AccessedByRole    string        `json:"accessed_by_role"`
	Action            string        `json:"action"`
	DataAccessed      consent.Scope `json:"data_accessed"`
	IsEmergencyAccess bool          `json:"is_emergency_access"`
	Reason            string        `json:"reason,omitempty"`
	IPAddress         string        `json:"ip_address,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}
