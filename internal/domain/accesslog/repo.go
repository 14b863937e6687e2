package accesslog

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence boundary for the audit trail. It is
// deliberately append-plus-read only; there is no update or delete.
type Repository interface {
	Append(ctx context.Context, e *Entry) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Entry, int, error)
}
