package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/domain/accesslog"
	"github.com/medvault/medvault/internal/domain/consent"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/pkg/apperrors"
)

// Outcome classifies an access decision.
type Outcome string

const (
	OutcomeAllow             Outcome = "ALLOW"
	OutcomePartialAllow      Outcome = "PARTIAL_ALLOW"
	OutcomeDeny              Outcome = "DENY"
	OutcomeEmergencyEligible Outcome = "EMERGENCY_ELIGIBLE"
)

// Decision is the result of evaluating one access request. Granted is what
// standing consent covers right now; Missing is the remainder of the request.
// An EMERGENCY_ELIGIBLE outcome signals the caller may invoke the emergency
// gate for the missing capabilities.
type Decision struct {
	Outcome Outcome       `json:"outcome"`
	Granted consent.Scope `json:"granted"`
	Missing consent.Scope `json:"missing"`
}

// ConsentResolver is the slice of the consent service the evaluator needs.
type ConsentResolver interface {
	ResolveEffective(ctx context.Context, patientID, grantedTo uuid.UUID) (consent.Scope, bool, error)
}

// AuditRecorder appends one audit entry per decision.
type AuditRecorder interface {
	Record(ctx context.Context, e *accesslog.Entry) (uuid.UUID, error)
}

// Evaluator is the single authorization decision point. Every decision it
// returns has already been written to the audit trail; if that write fails
// the decision is withheld entirely.
type Evaluator struct {
	consents ConsentResolver
	audit    AuditRecorder
	log      zerolog.Logger
}

func NewEvaluator(consents ConsentResolver, audit AuditRecorder, log zerolog.Logger) *Evaluator {
	return &Evaluator{consents: consents, audit: audit, log: log}
}

// Request is one (requester, patient, capabilities) access question.
type Request struct {
	RequesterID   uuid.UUID
	RequesterRole string
	PatientID     uuid.UUID
	Requested     consent.Scope
	IPAddress     string
}

func emergencyEligibleRole(role string) bool {
	return role == auth.RoleDoctor || role == auth.RoleHospitalAdmin
}

// Decide computes the access decision for req and records it. Self-access is
// always total. Otherwise the requested set is intersected with the effective
// consent scope; an unmet remainder yields Deny, or EmergencyEligible when
// the requester's role qualifies for the break-glass path.
func (e *Evaluator) Decide(ctx context.Context, req Request) (*Decision, error) {
	if req.RequesterID == uuid.Nil || req.PatientID == uuid.Nil {
		return nil, apperrors.ErrValidation.WithMessage("requester and patient ids are required")
	}
	if req.Requested.IsEmpty() {
		return nil, apperrors.ErrValidation.WithMessage("requested capability set must not be empty")
	}

	var d Decision
	if req.RequesterID == req.PatientID {
		// Self-access is total: no consent lookup, no emergency path.
		d = Decision{Outcome: OutcomeAllow, Granted: req.Requested}
	} else {
		effective, _, err := e.consents.ResolveEffective(ctx, req.PatientID, req.RequesterID)
		if err != nil {
			return nil, err
		}

		granted := req.Requested.Intersect(effective)
		missing := req.Requested.Diff(granted)
		switch {
		case missing.IsEmpty():
			d = Decision{Outcome: OutcomeAllow, Granted: granted}
		case emergencyEligibleRole(req.RequesterRole):
			d = Decision{Outcome: OutcomeEmergencyEligible, Granted: granted, Missing: missing}
		case granted.IsEmpty():
			d = Decision{Outcome: OutcomeDeny, Missing: missing}
		default:
			d = Decision{Outcome: OutcomePartialAllow, Granted: granted, Missing: missing}
		}
	}

	// Fail-closed: the decision leaves this function only after its audit
	// entry is durable.
	if _, err := e.audit.Record(ctx, &accesslog.Entry{
		PatientID:      req.PatientID,
		AccessedBy:     req.RequesterID,
		AccessedByRole: req.RequesterRole,
		Action:         actionFor(req.Requested, d.Outcome),
		DataAccessed:   d.Granted,
		IPAddress:      req.IPAddress,
	}); err != nil {
		return nil, err
	}

	e.log.Debug().
		Str("requester_id", req.RequesterID.String()).
		Str("requester_role", req.RequesterRole).
		Str("patient_id", req.PatientID.String()).
		Str("outcome", string(d.Outcome)).
		Msg("access decision")

	return &d, nil
}

func actionFor(requested consent.Scope, outcome Outcome) string {
	tag := map[Outcome]string{
		OutcomeAllow:             accesslog.OutcomeAllow,
		OutcomePartialAllow:      accesslog.OutcomePartial,
		OutcomeDeny:              accesslog.OutcomeDeny,
		OutcomeEmergencyEligible: accesslog.OutcomeEscalationOffered,
	}[outcome]
	return fmt.Sprintf("requested [%s] outcome=%s", strings.Join(requested.Names(), " "), tag)
}
