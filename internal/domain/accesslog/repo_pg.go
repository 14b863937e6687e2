package accesslog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Append(ctx context.Context, e *Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO access_log (
			id, patient_id, accessed_by, accessed_by_role, action,
			data_diagnosis, data_medications, data_lab_results, data_allergies, data_full_history,
			is_emergency_access, reason, ip_address, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, e.PatientID, e.AccessedBy, e.AccessedByRole, e.Action,
		e.DataAccessed.ViewDiagnosis, e.DataAccessed.ViewMedications,
		e.DataAccessed.ViewLabResults, e.DataAccessed.ViewAllergies,
		e.DataAccessed.ViewFullHistory,
		e.IsEmergencyAccess, e.Reason, e.IPAddress, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append access log: %w", err)
	}
	return nil
}

func (r *PGRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Entry, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM access_log WHERE patient_id = $1`, patientID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count access logs: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, accessed_by, accessed_by_role, action,
			data_diagnosis, data_medications, data_lab_results, data_allergies, data_full_history,
			is_emergency_access, reason, ip_address, created_at
		FROM access_log
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list access logs: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.PatientID, &e.AccessedBy, &e.AccessedByRole, &e.Action,
			&e.DataAccessed.ViewDiagnosis, &e.DataAccessed.ViewMedications,
			&e.DataAccessed.ViewLabResults, &e.DataAccessed.ViewAllergies,
			&e.DataAccessed.ViewFullHistory,
			&e.IsEmergencyAccess, &e.Reason, &e.IPAddress, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan access log: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
