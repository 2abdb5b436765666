package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/kalambet/vinsight/internal/vehicle"
)

// GetInsight returns the cached insight row for a vehicle, or
// vehicle.ErrNotFound when none is stored.
func (s *Store) GetInsight(ctx context.Context, vehicleID int64) (InsightRow, error) {
	query, args, err := s.d.sb.
		Select("vehicle_id", "search_key", "payload", "fingerprint", "generated_at",
			"model_version", "has_issues", "needs_attention", "updated_at").
		From("vehicle_insights").
		Where(sq.Eq{"vehicle_id": vehicleID}).
		ToSql()
	if err != nil {
		return InsightRow{}, err
	}

	var (
		r                  InsightRow
		payload            string
		generated, updated timeCol
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&r.VehicleID, &r.SearchKey, &payload, &r.Fingerprint,
		&generated, &r.ModelVersion, &r.HasIssues, &r.NeedsAttention, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return InsightRow{}, vehicle.ErrNotFound
	}
	if err != nil {
		return InsightRow{}, fmt.Errorf("loading insight: %w", err)
	}
	r.Payload = []byte(payload)
	r.GeneratedAt, r.UpdatedAt = generated.v, updated.v
	return r, nil
}

// UpsertInsight stores r, replacing any existing row for the same vehicle.
func (s *Store) UpsertInsight(ctx context.Context, r InsightRow) error {
	query, args, err := s.d.sb.Insert("vehicle_insights").
		Columns("vehicle_id", "search_key", "payload", "fingerprint", "generated_at",
			"model_version", "has_issues", "needs_attention", "updated_at").
		Values(r.VehicleID, r.SearchKey, string(r.Payload), r.Fingerprint, s.d.timestamp(r.GeneratedAt),
			r.ModelVersion, r.HasIssues, r.NeedsAttention, s.d.timestamp(r.UpdatedAt)).
		Suffix(`ON CONFLICT (vehicle_id) DO UPDATE SET
			search_key = excluded.search_key,
			payload = excluded.payload,
			fingerprint = excluded.fingerprint,
			generated_at = excluded.generated_at,
			model_version = excluded.model_version,
			has_issues = excluded.has_issues,
			needs_attention = excluded.needs_attention,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storing insight: %w", err)
	}
	return nil
}

// DeleteInsight drops the cached row for a vehicle. Deleting a missing row
// is not an error.
func (s *Store) DeleteInsight(ctx context.Context, vehicleID int64) error {
	query, args, err := s.d.sb.Delete("vehicle_insights").Where(sq.Eq{"vehicle_id": vehicleID}).ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting insight: %w", err)
	}
	return nil
}
