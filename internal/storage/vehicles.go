package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/kalambet/vinsight/internal/vehicle"
)

// SearchLimit caps the number of vehicles returned by Search.
const SearchLimit = 10

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var vehicleColumns = []string{
	"id", text("vin"), text("vrm"), text("make"), text("model"), text("variant"),
	"year", "registration_date", "engine_size", text("fuel_type"), text("transmission"),
	text("body_type"), text("colour"), "doors", "seats", "engine_power_hp", "engine_power_kw",
	"co2_emissions", "fuel_consumption_urban", "fuel_consumption_extra_urban", "fuel_consumption_combined",
	text("vehicle_status"), text("mot_status"), "mot_expiry_date", text("tax_status"), "tax_due_date",
	text("insurance_group"), text("euro_status"), text("vehicle_class"), "created_at", "updated_at",
}

func scanVehicle(r rowScanner) (vehicle.Vehicle, error) {
	var (
		v                           vehicle.Vehicle
		year, doors, seats, hp, kw  sql.NullInt64
		engineSize, co2             sql.NullFloat64
		urban, extraUrban, combined sql.NullFloat64
		registered, motExpiry, tax  dateCol
		created, updated            timeCol
	)
	err := r.Scan(&v.ID, &v.VIN, &v.VRM, &v.Make, &v.Model, &v.Variant,
		&year, &registered, &engineSize, &v.FuelType, &v.Transmission,
		&v.BodyType, &v.Colour, &doors, &seats, &hp, &kw,
		&co2, &urban, &extraUrban, &combined,
		&v.VehicleStatus, &v.MOTStatus, &motExpiry, &v.TaxStatus, &tax,
		&v.InsuranceGroup, &v.EuroStatus, &v.VehicleClass, &created, &updated)
	if err != nil {
		return v, err
	}
	v.Year, v.Doors, v.Seats = intPtr(year), intPtr(doors), intPtr(seats)
	v.EnginePowerHP, v.EnginePowerKW = intPtr(hp), intPtr(kw)
	v.EngineSize, v.CO2Emissions = floatPtr(engineSize), floatPtr(co2)
	v.FuelConsumptionUrban, v.FuelConsumptionExtraUrban = floatPtr(urban), floatPtr(extraUrban)
	v.FuelConsumptionCombined = floatPtr(combined)
	v.RegistrationDate, v.MOTExpiryDate, v.TaxDueDate = registered.v, motExpiry.v, tax.v
	v.CreatedAt, v.UpdatedAt = created.v, updated.v
	return v, nil
}

// keyCondition matches stored identifiers the way keys are normalized:
// VINs case-insensitively, VRMs also ignoring spaces.
func keyCondition(kt vehicle.KeyType, key string) (sq.Sqlizer, error) {
	switch kt {
	case vehicle.KeyVIN:
		return sq.Expr("UPPER(vin) = ?", key), nil
	case vehicle.KeyVRM:
		return sq.Expr("UPPER(REPLACE(vrm, ' ', '')) = ?", key), nil
	default:
		return nil, fmt.Errorf("%w: unknown key type %q", vehicle.ErrInvalidKey, kt)
	}
}

// LoadByKey returns the aggregate for a normalized VIN or VRM. It returns
// vehicle.ErrNotFound when no vehicle matches.
func (s *Store) LoadByKey(ctx context.Context, kt vehicle.KeyType, key string) (*vehicle.Aggregate, error) {
	cond, err := keyCondition(kt, key)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, cond)
}

// LoadByVIN returns the aggregate for a normalized VIN.
func (s *Store) LoadByVIN(ctx context.Context, vin string) (*vehicle.Aggregate, error) {
	return s.LoadByKey(ctx, vehicle.KeyVIN, vin)
}

// LoadByVRM returns the aggregate for a normalized VRM.
func (s *Store) LoadByVRM(ctx context.Context, vrm string) (*vehicle.Aggregate, error) {
	return s.LoadByKey(ctx, vehicle.KeyVRM, vrm)
}

// LoadByID returns the aggregate for a vehicle id.
func (s *Store) LoadByID(ctx context.Context, id int64) (*vehicle.Aggregate, error) {
	return s.load(ctx, sq.Eq{"id": id})
}

// load reads the vehicle and all related collections inside one transaction
// so the snapshot is consistent.
func (s *Store) load(ctx context.Context, where sq.Sqlizer) (*vehicle.Aggregate, error) {
	tx, err := s.db.BeginTx(ctx, s.d.txOpt)
	if err != nil {
		return nil, fmt.Errorf("beginning read: %w", err)
	}
	defer tx.Rollback()

	query, args, err := s.d.sb.Select(vehicleColumns...).From("vehicles").Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	basic, err := scanVehicle(tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vehicle.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading vehicle: %w", err)
	}

	agg := &vehicle.Aggregate{Basic: basic}
	id := basic.ID
	if agg.Valuations, err = loadChildren(ctx, tx, s.d, valuationsTable, id); err != nil {
		return nil, err
	}
	if agg.History, err = loadChildren(ctx, tx, s.d, historyTable, id); err != nil {
		return nil, err
	}
	if agg.Recalls, err = loadChildren(ctx, tx, s.d, recallsTable, id); err != nil {
		return nil, err
	}
	specs, err := loadChildren(ctx, tx, s.d, specificationsTable, id)
	if err != nil {
		return nil, err
	}
	if len(specs) > 0 {
		agg.Specification = &specs[0]
	}
	if agg.OwnershipChanges, err = loadChildren(ctx, tx, s.d, ownershipTable, id); err != nil {
		return nil, err
	}
	if agg.TheftRecords, err = loadChildren(ctx, tx, s.d, theftTable, id); err != nil {
		return nil, err
	}
	if agg.InsuranceClaims, err = loadChildren(ctx, tx, s.d, claimsTable, id); err != nil {
		return nil, err
	}
	if agg.MileageRecords, err = loadChildren(ctx, tx, s.d, mileageTable, id); err != nil {
		return nil, err
	}
	if agg.FinanceRecords, err = loadChildren(ctx, tx, s.d, financeTable, id); err != nil {
		return nil, err
	}
	if agg.AuctionRecords, err = loadChildren(ctx, tx, s.d, auctionsTable, id); err != nil {
		return nil, err
	}
	agg.EnsureCollections()
	return agg, nil
}

func loadChildren[T any](ctx context.Context, q queryer, d dialect, t childTable[T], vehicleID int64) ([]T, error) {
	query, args, err := d.sb.Select(t.sel...).From(t.name).Where(sq.Eq{"vehicle_id": vehicleID}).OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", t.name, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		item, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", t.name, err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func insertChildren[T any](ctx context.Context, q queryer, d dialect, t childTable[T], vehicleID int64, items []T) error {
	if len(items) == 0 {
		return nil
	}
	b := d.sb.Insert(t.name).Columns(append([]string{"vehicle_id"}, t.cols...)...)
	for _, item := range items {
		b = b.Values(append([]any{vehicleID}, t.values(item)...)...)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting %s: %w", t.name, err)
	}
	return nil
}

// GetVehicle returns the basic vehicle row.
func (s *Store) GetVehicle(ctx context.Context, id int64) (vehicle.Vehicle, error) {
	query, args, err := s.d.sb.Select(vehicleColumns...).From("vehicles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return vehicle.Vehicle{}, err
	}
	v, err := scanVehicle(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return v, vehicle.ErrNotFound
	}
	return v, err
}

// escapeLike escapes the LIKE wildcards in s with a backslash.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Search returns up to SearchLimit vehicles whose VIN, VRM, make or model
// contains q, case-insensitively. An empty query matches nothing.
func (s *Store) Search(ctx context.Context, q string) ([]SearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []SearchResult{}, nil
	}
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"

	var or sq.Or
	for _, col := range []string{"vin", "vrm", "make", "model"} {
		or = append(or, sq.Expr("LOWER(COALESCE("+col+", '')) LIKE ? ESCAPE '\\'", pattern))
	}
	query, args, err := s.d.sb.
		Select("id", text("vin"), text("vrm"), text("make"), text("model"), "year", text("vehicle_status")).
		From("vehicles").
		Where(or).
		OrderBy("id").
		Limit(SearchLimit).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching vehicles: %w", err)
	}
	defer rows.Close()

	results := []SearchResult{}
	for rows.Next() {
		var (
			r    SearchResult
			year sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.VIN, &r.VRM, &r.Make, &r.Model, &year, &r.VehicleStatus); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		r.Year = intPtr(year)
		results = append(results, r)
	}
	return results, rows.Err()
}

// InsertAggregate stores a vehicle with all of its related records and
// returns the new vehicle id. VIN and VRM are normalized first; a collision
// with an existing vehicle yields ErrDuplicate.
func (s *Store) InsertAggregate(ctx context.Context, agg *vehicle.Aggregate) (int64, error) {
	v := agg.Basic
	if v.VIN == "" && v.VRM == "" {
		return 0, fmt.Errorf("%w: vehicle needs a VIN or a VRM", vehicle.ErrInvalidKey)
	}
	var err error
	if v.VIN != "" {
		if v.VIN, err = vehicle.NormalizeVIN(v.VIN); err != nil {
			return 0, err
		}
	}
	if v.VRM != "" {
		if v.VRM, err = vehicle.NormalizeVRM(v.VRM); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning insert: %w", err)
	}
	defer tx.Rollback()

	if err := s.checkDuplicate(ctx, tx, v); err != nil {
		return 0, err
	}

	now := time.Now()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = v.CreatedAt
	}

	query, args, err := s.d.sb.Insert("vehicles").
		Columns("vin", "vrm", "make", "model", "variant", "year", "registration_date", "engine_size",
			"fuel_type", "transmission", "body_type", "colour", "doors", "seats", "engine_power_hp",
			"engine_power_kw", "co2_emissions", "fuel_consumption_urban", "fuel_consumption_extra_urban",
			"fuel_consumption_combined", "vehicle_status", "mot_status", "mot_expiry_date", "tax_status",
			"tax_due_date", "insurance_group", "euro_status", "vehicle_class", "created_at", "updated_at").
		Values(nullIfEmpty(v.VIN), nullIfEmpty(v.VRM), v.Make, v.Model, v.Variant, intArg(v.Year),
			dateArg(v.RegistrationDate), floatArg(v.EngineSize), v.FuelType, v.Transmission, v.BodyType,
			v.Colour, intArg(v.Doors), intArg(v.Seats), intArg(v.EnginePowerHP),
			intArg(v.EnginePowerKW), floatArg(v.CO2Emissions), floatArg(v.FuelConsumptionUrban), floatArg(v.FuelConsumptionExtraUrban),
			floatArg(v.FuelConsumptionCombined), v.VehicleStatus, v.MOTStatus, dateArg(v.MOTExpiryDate), v.TaxStatus,
			dateArg(v.TaxDueDate), v.InsuranceGroup, v.EuroStatus, v.VehicleClass,
			s.d.timestamp(v.CreatedAt), s.d.timestamp(v.UpdatedAt)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}
	var id int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("inserting vehicle: %w", err)
	}

	if err := insertChildren(ctx, tx, s.d, valuationsTable, id, agg.Valuations); err != nil {
		return 0, err
	}
	if err := insertChildren(ctx, tx, s.d, historyTable, id, agg.History); err != nil {
		return 0, err
	}
	if err := insertChildren(ctx, tx, s.d, recallsTable, id, agg.Recalls); err != nil {
		return 0, err
	}
	if agg.Specification != nil {
		if err := insertChildren(ctx, tx, s.d, specificationsTable, id, []vehicle.Specification{*agg.Specification}); err != nil {
			return 0, err
		}
	}
	if err := insertChildren(ctx, tx, s.d, ownershipTable, id, agg.OwnershipChanges); err != nil {
		return 0, err
	}
	if err := insertChildren(ctx, tx, s.d, theftTable, id, agg.TheftRecords); err != nil {
		return 0, err
	}
	if err := insertChildren(ctx, tx, s.d, claimsTable, id, agg.InsuranceClaims); err != nil {
		return 0, err
	}
	if err := insertChildren(ctx, tx, s.d, mileageTable, id, agg.MileageRecords); err != nil {
		return 0, err
	}
	if err := insertChildren(ctx, tx, s.d, financeTable, id, agg.FinanceRecords); err != nil {
		return 0, err
	}
	if err := insertChildren(ctx, tx, s.d, auctionsTable, id, agg.AuctionRecords); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing insert: %w", err)
	}
	return id, nil
}

func (s *Store) checkDuplicate(ctx context.Context, q queryer, v vehicle.Vehicle) error {
	var or sq.Or
	if v.VIN != "" {
		or = append(or, sq.Eq{"vin": v.VIN})
	}
	if v.VRM != "" {
		or = append(or, sq.Eq{"vrm": v.VRM})
	}
	query, args, err := s.d.sb.Select("COUNT(*)").From("vehicles").Where(or).ToSql()
	if err != nil {
		return err
	}
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return fmt.Errorf("checking for duplicates: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: vin %q vrm %q", ErrDuplicate, v.VIN, v.VRM)
	}
	return nil
}

// AddHistoryEvent appends a history event and bumps the vehicle's
// updated_at, which changes its insight fingerprint.
func (s *Store) AddHistoryEvent(ctx context.Context, vehicleID int64, e vehicle.HistoryEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertChildren(ctx, tx, s.d, historyTable, vehicleID, []vehicle.HistoryEvent{e}); err != nil {
		return err
	}
	query, args, err := s.d.sb.Update("vehicles").
		Set("updated_at", s.d.timestamp(time.Now())).
		Where(sq.Eq{"id": vehicleID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("touching vehicle: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return vehicle.ErrNotFound
	}
	return tx.Commit()
}

// DeleteVehicle removes a vehicle; related records and its cached insight
// go with it.
func (s *Store) DeleteVehicle(ctx context.Context, id int64) error {
	query, args, err := s.d.sb.Delete("vehicles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting vehicle: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return vehicle.ErrNotFound
	}
	return nil
}

// Stats counts stored vehicles and cached insights.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vehicles").Scan(&st.Vehicles); err != nil {
		return st, fmt.Errorf("counting vehicles: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vehicle_insights").Scan(&st.Insights); err != nil {
		return st, fmt.Errorf("counting insights: %w", err)
	}
	return st, nil
}
