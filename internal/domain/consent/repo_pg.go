package consent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medvault/medvault/pkg/apperrors"
)

const uniqueViolation = "23505"

// PGRepository is the PostgreSQL-backed Repository. A partial unique index on
// (patient_id, granted_to) WHERE status='GRANTED' backs the single-active
// invariant underneath the optimistic version check.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const consentColumns = `id, patient_id, granted_to, granted_to_type,
	view_diagnosis, view_medications, view_lab_results, view_allergies, view_full_history,
	status, expires_at, revoked_at, revoked_by, version_id, created_at, updated_at`

func scanConsent(row pgx.Row) (*Consent, error) {
	var c Consent
	err := row.Scan(
		&c.ID, &c.PatientID, &c.GrantedTo, &c.GrantedToType,
		&c.Scope.ViewDiagnosis, &c.Scope.ViewMedications, &c.Scope.ViewLabResults,
		&c.Scope.ViewAllergies, &c.Scope.ViewFullHistory,
		&c.Status, &c.ExpiresAt, &c.RevokedAt, &c.RevokedBy,
		&c.VersionID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PGRepository) Create(ctx context.Context, c *Consent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO consent (
			id, patient_id, granted_to, granted_to_type,
			view_diagnosis, view_medications, view_lab_results, view_allergies, view_full_history,
			status, expires_at, version_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.ID, c.PatientID, c.GrantedTo, c.GrantedToType,
		c.Scope.ViewDiagnosis, c.Scope.ViewMedications, c.Scope.ViewLabResults,
		c.Scope.ViewAllergies, c.Scope.ViewFullHistory,
		c.Status, c.ExpiresAt, c.VersionID, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperrors.ErrConflict.WithMessage("an active consent already exists for this provider").WithInternal(err)
		}
		return fmt.Errorf("insert consent: %w", err)
	}
	return nil
}

// Update writes the record only if the stored version_id still matches, and
// bumps VersionID on success. Zero rows updated means the record changed
// underneath the caller.
func (r *PGRepository) Update(ctx context.Context, c *Consent) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE consent SET
			view_diagnosis = $1, view_medications = $2, view_lab_results = $3,
			view_allergies = $4, view_full_history = $5,
			status = $6, expires_at = $7, revoked_at = $8, revoked_by = $9,
			version_id = version_id + 1, updated_at = $10
		WHERE id = $11 AND version_id = $12`,
		c.Scope.ViewDiagnosis, c.Scope.ViewMedications, c.Scope.ViewLabResults,
		c.Scope.ViewAllergies, c.Scope.ViewFullHistory,
		c.Status, c.ExpiresAt, c.RevokedAt, c.RevokedBy,
		c.UpdatedAt, c.ID, c.VersionID,
	)
	if err != nil {
		return fmt.Errorf("update consent %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConflict.WithMessage("consent %s was modified concurrently", c.ID)
	}
	c.VersionID++
	return nil
}

func (r *PGRepository) GetByID(ctx context.Context, id uuid.UUID) (*Consent, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+consentColumns+` FROM consent WHERE id = $1`, id)
	c, err := scanConsent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound.WithMessage("consent %s not found", id)
		}
		return nil, fmt.Errorf("get consent %s: %w", id, err)
	}
	return c, nil
}

func (r *PGRepository) FindGranted(ctx context.Context, patientID, grantedTo uuid.UUID) (*Consent, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+consentColumns+` FROM consent
		 WHERE patient_id = $1 AND granted_to = $2 AND status = $3`,
		patientID, grantedTo, StatusGranted)
	c, err := scanConsent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound.WithMessage("no active consent for this pair")
		}
		return nil, fmt.Errorf("find granted consent: %w", err)
	}
	return c, nil
}

func (r *PGRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Consent, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM consent WHERE patient_id = $1`, patientID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count consents: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+consentColumns+` FROM consent
		 WHERE patient_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list consents: %w", err)
	}
	defer rows.Close()

	consents := make([]Consent, 0, limit)
	for rows.Next() {
		c, err := scanConsent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan consent: %w", err)
		}
		consents = append(consents, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return consents, total, nil
}
