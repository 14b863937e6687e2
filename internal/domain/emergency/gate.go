package emergency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/domain/accesslog"
	"github.com/medvault/medvault/internal/domain/consent"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/pkg/apperrors"
)

// MinReasonLength is the shortest accepted break-glass justification.
const MinReasonLength = 10

// Grant is a one-request authorization for a patient's full record. It is
// never persisted as a consent and confers no standing access; each access
// must re-invoke the gate with a fresh justification.
type Grant struct {
	PatientID uuid.UUID     `json:"patient_id"`
	GrantedTo uuid.UUID     `json:"granted_to"`
	Scope     consent.Scope `json:"scope"`
	Reason    string        `json:"reason"`
	LogID     uuid.UUID     `json:"log_id"`
	GrantedAt time.Time     `json:"granted_at"`
}

// AuditRecorder appends the mandatory break-glass audit entry.
type AuditRecorder interface {
	Record(ctx context.Context, e *accesslog.Entry) (uuid.UUID, error)
}

// Gate is the break-glass path around standing consent. It deliberately does
// not touch the consent registry: the consent table stays the sole source of
// durable, patient-controlled permissions.
type Gate struct {
	audit AuditRecorder
	log   zerolog.Logger
	now   func() time.Time
}

func NewGate(audit AuditRecorder, log zerolog.Logger) *Gate {
	return &Gate{audit: audit, log: log, now: time.Now}
}

// Invocation is one break-glass request.
type Invocation struct {
	RequesterID   uuid.UUID
	RequesterRole string
	PatientID     uuid.UUID
	Reason        string
	IPAddress     string
}

func qualifiedRole(role string) bool {
	return role == auth.RoleDoctor || role == auth.RoleHospitalAdmin
}

// Invoke authorizes full access for this single request in exchange for a
// logged justification. Validation runs before any persistence, so a
// rejected attempt leaves no audit entry.
func (g *Gate) Invoke(ctx context.Context, inv Invocation) (*Grant, error) {
	if inv.RequesterID == uuid.Nil || inv.PatientID == uuid.Nil {
		return nil, apperrors.ErrValidation.WithMessage("requester and patient ids are required")
	}
	if len(inv.Reason) < MinReasonLength {
		return nil, apperrors.ErrValidation.WithMessage(
			"emergency access requires a justification of at least %d characters", MinReasonLength)
	}
	if !qualifiedRole(inv.RequesterRole) {
		return nil, apperrors.ErrForbidden.WithMessage(
			"role %q does not qualify for emergency access", inv.RequesterRole)
	}

	full := consent.FullScope()
	logID, err := g.audit.Record(ctx, &accesslog.Entry{
		PatientID:         inv.PatientID,
		AccessedBy:        inv.RequesterID,
		AccessedByRole:    inv.RequesterRole,
		Action:            fmt.Sprintf("emergency access outcome=%s", accesslog.OutcomeEmergency),
		DataAccessed:      full,
		IsEmergencyAccess: true,
		Reason:            inv.Reason,
		IPAddress:         inv.IPAddress,
	})
	if err != nil {
		return nil, err
	}

	g.log.Warn().
		Str("requester_id", inv.RequesterID.String()).
		Str("requester_role", inv.RequesterRole).
		Str("patient_id", inv.PatientID.String()).
		Str("reason", inv.Reason).
		Str("log_id", logID.String()).
		Msg("emergency access invoked")

	return &Grant{
		PatientID: inv.PatientID,
		GrantedTo: inv.RequesterID,
		Scope:     full,
		Reason:    inv.Reason,
		LogID:     logID,
		GrantedAt: g.now(),
	}, nil
}
