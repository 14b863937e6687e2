package consent

import (
	"time"

	"github.com/google/uuid"
)

// Consent lifecycle states. REVOKED and EXPIRED are terminal.
const (
	StatusGranted = "GRANTED"
	StatusRevoked = "REVOKED"
	StatusExpired = "EXPIRED"
)

// Provider kinds a patient can grant consent to.
const (
	GrantedToDoctor   = "doctor"
	GrantedToHospital = "hospital"
	GrantedToPharmacy = "pharmacy"
	GrantedToLab      = "lab"
)

func ValidGrantedToType(t string) bool {
	switch t {
	case GrantedToDoctor, GrantedToHospital, GrantedToPharmacy, GrantedToLab:
		return true
	}
	return false
}

// Scope is the set of data-viewing capabilities a consent grants. The flags
// are independent bits; full consent means all of them.
type Scope struct {
	ViewDiagnosis   bool `json:"view_diagnosis"`
	ViewMedications bool `json:"view_medications"`
	ViewLabResults  bool `json:"view_lab_results"`
	ViewAllergies   bool `json:"view_allergies"`
	ViewFullHistory bool `json:"view_full_history"`
}

// FullScope returns a scope with every capability enabled.
func FullScope() Scope {
	return Scope{
		ViewDiagnosis:   true,
		ViewMedications: true,
		ViewLabResults:  true,
		ViewAllergies:   true,
		ViewFullHistory: true,
	}
}

func (s Scope) IsEmpty() bool {
	return !s.ViewDiagnosis && !s.ViewMedications && !s.ViewLabResults &&
		!s.ViewAllergies && !s.ViewFullHistory
}

// Intersect returns the capabilities present in both scopes.
func (s Scope) Intersect(o Scope) Scope {
	return Scope{
		ViewDiagnosis:   s.ViewDiagnosis && o.ViewDiagnosis,
		ViewMedications: s.ViewMedications && o.ViewMedications,
		ViewLabResults:  s.ViewLabResults && o.ViewLabResults,
		ViewAllergies:   s.ViewAllergies && o.ViewAllergies,
		ViewFullHistory: s.ViewFullHistory && o.ViewFullHistory,
	}
}

// Diff returns the capabilities present in s but not in o.
func (s Scope) Diff(o Scope) Scope {
	return Scope{
		ViewDiagnosis:   s.ViewDiagnosis && !o.ViewDiagnosis,
		ViewMedications: s.ViewMedications && !o.ViewMedications,
		ViewLabResults:  s.ViewLabResults && !o.ViewLabResults,
		ViewAllergies:   s.ViewAllergies && !o.ViewAllergies,
		ViewFullHistory: s.ViewFullHistory && !o.ViewFullHistory,
	}
}

// Names lists the enabled capabilities, used to describe requests in the
// audit trail.
func (s Scope) Names() []string {
	var names []string
	if s.ViewDiagnosis {
		names = append(names, "diagnosis")
	}
	if s.ViewMedications {
		names = append(names, "medications")
	}
	if s.ViewLabResults {
		names = append(names, "lab_results")
	}
	if s.ViewAllergies {
		names = append(names, "allergies")
	}
	if s.ViewFullHistory {
		names = append(names, "full_history")
	}
	return names
}

// Consent is one patient's durable grant of viewing capabilities to one
// provider. At most one GRANTED record exists per (patient_id, granted_to)
// pair; terminal records are kept for history and never resurrected.
type Consent struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	GrantedTo     uuid.UUID  `json:"granted_to"`
	GrantedToType string     `json:"granted_to_type"`
	Scope         Scope      `json:"scope"`
	Status        string     `json:"status"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedBy     *uuid.UUID `json:"revoked_by,omitempty"`
	VersionID     int        `json:"version_id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IsExpired reports whether the record's expiry instant has passed. A stored
// GRANTED status must never be trusted without this check; expiry is only
// materialized lazily on read.
func (c *Consent) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// IsEffective reports whether the consent currently grants access.
func (c *Consent) IsEffective(now time.Time) bool {
	return c.Status == StatusGranted && !c.IsExpired(now)
}

// IsTerminal reports whether the record has reached a final state.
func (c *Consent) IsTerminal() bool {
	return c.Status == StatusRevoked || c.Status == StatusExpired
}
