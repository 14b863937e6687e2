package consent

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence boundary for consent records.
//
// Update performs an optimistic-concurrency check: the row is written only if
// its stored version_id still matches the one on the passed record, and the
// record's VersionID is bumped on success. A lost race surfaces as
// apperrors.ErrConflict.
type Repository interface {
	Create(ctx context.Context, c *Consent) error
	Update(ctx context.Context, c *Consent) error
	GetByID(ctx context.Context, id uuid.UUID) (*Consent, error)
	// FindGranted returns the record with status=GRANTED for the pair, or
	// apperrors.ErrNotFound when none exists. Callers must still apply the
	// lazy expiry check.
	FindGranted(ctx context.Context, patientID, grantedTo uuid.UUID) (*Consent, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Consent, int, error)
}
