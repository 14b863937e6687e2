package accesslog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medvault/medvault/pkg/apperrors"
)

// Service fronts the audit trail. Record failures are never swallowed: every
// caller sits behind the fail-closed rule that an unlogged decision must not
// be released.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Record appends one entry, assigning its id and timestamp, and returns the
// id. Persistence failure surfaces as ServiceUnavailable.
func (s *Service) Record(ctx context.Context, e *Entry) (uuid.UUID, error) {
	e.ID = uuid.New()
	e.CreatedAt = s.now()
	if err := s.repo.Append(ctx, e); err != nil {
		return uuid.Nil, apperrors.ErrServiceUnavailable.WithInternal(err)
	}
	return e.ID, nil
}

// QueryForPatient returns the patient's audit trail, newest first. Nothing is
// filtered here; who may call this is decided at the HTTP boundary.
func (s *Service) QueryForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Entry, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
