package consent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/medvault/medvault/pkg/apperrors"
)

// Service owns consent lifecycle transitions. It is the only writer of the
// consent table; expiry is materialized here lazily on read, never by a
// background sweep.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Grant records a patient's consent to one provider. If an effective GRANTED
// record already exists for the pair, its scope and expiry are updated in
// place (same id); otherwise a new record is created. Terminal records are
// never resurrected.
func (s *Service) Grant(ctx context.Context, patientID, grantedTo uuid.UUID, grantedToType string, scope Scope, expiresAt *time.Time) (*Consent, error) {
	if patientID == uuid.Nil || grantedTo == uuid.Nil {
		return nil, apperrors.ErrValidation.WithMessage("patient_id and granted_to are required")
	}
	if !ValidGrantedToType(grantedToType) {
		return nil, apperrors.ErrValidation.WithMessage("invalid granted_to_type %q", grantedToType)
	}
	if scope.IsEmpty() {
		return nil, apperrors.ErrValidation.WithMessage("scope must enable at least one capability")
	}

	now := s.now()

	existing, err := s.repo.FindGranted(ctx, patientID, grantedTo)
	switch {
	case err == nil:
		if existing.IsExpired(now) {
			// Stored GRANTED lagging behind its expiry: materialize the
			// terminal state, then fall through to a fresh record.
			existing.Status = StatusExpired
			existing.UpdatedAt = now
			if err := s.repo.Update(ctx, existing); err != nil {
				return nil, err
			}
		} else {
			existing.Scope = scope
			existing.ExpiresAt = expiresAt
			existing.UpdatedAt = now
			if err := s.repo.Update(ctx, existing); err != nil {
				return nil, err
			}
			return existing, nil
		}
	case errors.Is(err, apperrors.ErrNotFound):
		// no active record, create below
	default:
		return nil, err
	}

	c := &Consent{
		ID:            uuid.New(),
		PatientID:     patientID,
		GrantedTo:     grantedTo,
		GrantedToType: grantedToType,
		Scope:         scope,
		Status:        StatusGranted,
		ExpiresAt:     expiresAt,
		VersionID:     1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GrantFull grants every capability with no expiry.
func (s *Service) GrantFull(ctx context.Context, patientID, providerID uuid.UUID, providerType string) (*Consent, error) {
	return s.Grant(ctx, patientID, providerID, providerType, FullScope(), nil)
}

// Get returns a consent record by id.
func (s *Service) Get(ctx context.Context, consentID uuid.UUID) (*Consent, error) {
	return s.repo.GetByID(ctx, consentID)
}

// Revoke transitions a consent to REVOKED. Revocation is monotonic: calling
// it on a record that is already terminal returns the record unchanged.
func (s *Service) Revoke(ctx context.Context, consentID, actorID uuid.UUID) (*Consent, error) {
	c, err := s.repo.GetByID(ctx, consentID)
	if err != nil {
		return nil, err
	}
	if c.IsTerminal() {
		return c, nil
	}

	now := s.now()
	c.Status = StatusRevoked
	c.RevokedAt = &now
	c.RevokedBy = &actorID
	c.UpdatedAt = now
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ResolveEffective returns the capability set currently in force for the
// pair, or ok=false when there is none. A record whose expiry has passed is
// treated as absent, and the EXPIRED transition is persisted here if not yet
// materialized.
func (s *Service) ResolveEffective(ctx context.Context, patientID, grantedTo uuid.UUID) (Scope, bool, error) {
	c, err := s.repo.FindGranted(ctx, patientID, grantedTo)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return Scope{}, false, nil
		}
		return Scope{}, false, err
	}

	now := s.now()
	if c.IsExpired(now) {
		c.Status = StatusExpired
		c.UpdatedAt = now
		// A concurrent writer racing this materialization is benign; the
		// consent is no longer effective either way.
		if err := s.repo.Update(ctx, c); err != nil && !errors.Is(err, apperrors.ErrConflict) {
			return Scope{}, false, err
		}
		return Scope{}, false, nil
	}
	return c.Scope, true, nil
}

// ListForPatient returns all consent records for a patient, every status,
// newest first.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Consent, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
