package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/vinsight/internal/vehicle"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err, "Open(:memory:)")
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func date(y int, m time.Month, d int) *vehicle.Date {
	v := vehicle.NewDate(y, m, d)
	return &v
}

func focus() *vehicle.Aggregate {
	return &vehicle.Aggregate{
		Basic: vehicle.Vehicle{
			VIN:              "wf0axxgcda1234567",
			VRM:              "ab12 cde",
			Make:             "Ford",
			Model:            "Focus",
			Year:             ptr(2019),
			RegistrationDate: date(2019, time.March, 1),
			EngineSize:       ptr(1.0),
			FuelType:         "Petrol",
			MOTExpiryDate:    date(2025, time.February, 28),
			InsuranceGroup:   "14",
			EnginePowerKW:    ptr(92),
			CO2Emissions:     ptr(118.5),
			VehicleClass:     "M1",
		},
		Valuations: []vehicle.ValuationRecord{
			{ValuationDate: date(2024, time.January, 10), RetailValue: ptr(12500.0), RegionalAdjustment: ptr(-2.5)},
		},
		History: []vehicle.HistoryEvent{
			{EventDate: date(2022, time.March, 1), EventType: vehicle.EventMOT, PassFail: vehicle.OutcomePass, Mileage: ptr(30100)},
			{EventDate: date(2023, time.March, 2), EventType: vehicle.EventMOT, PassFail: vehicle.OutcomeFail, Mileage: ptr(41250), AdvisoryNotes: "Brake pipe corroded"},
		},
		Recalls: []vehicle.RecallRecord{
			{RecallNumber: "R/2022/014", RecallDate: date(2022, time.June, 10), RecallStatus: vehicle.RecallOpen, SafetyIssue: ptr(true)},
		},
		Specification: &vehicle.Specification{
			EngineCode:         "M1DA",
			CylinderCount:      ptr(3),
			ABS:                ptr(true),
			Acceleration0To60:  ptr(9.9),
			FuelTankCapacity:   ptr(52.0),
			BootCapacityLitres: ptr(375),
			GrossWeightKG:      ptr(1825),
			SteeringType:       "Electric PAS",
			BrakeTypeRear:      "Drum",
			Airbags:            "6 (front, side, curtain)",
		},
		MileageRecords: []vehicle.MileageReading{
			{ReadingDate: date(2024, time.January, 5), Mileage: 45000, Source: "dealer", Verified: true},
		},
		InsuranceClaims: []vehicle.InsuranceClaim{
			{ClaimDate: date(2021, time.August, 9), ClaimAmount: ptr(1250.5), TotalLoss: false, Insurer: "Aviva"},
		},
		FinanceRecords: []vehicle.FinanceRecord{
			{AgreementType: "PCP", StartDate: date(2019, time.March, 1), OutstandingFinance: true},
		},
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s1, err := Open(dir)
	require.NoError(t, err)
	v1, err := s1.AppliedMigrations(ctx)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()
	v2, err := s2.AppliedMigrations(ctx)
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
}

func TestMigrationsOrdered(t *testing.T) {
	versions, err := openTestStore(t).AppliedMigrations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, versions)
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	for _, idx := range []string{
		"idx_vehicles_make_model",
		"idx_history_events_vehicle",
		"idx_recalls_vehicle",
		"idx_mileage_records_vehicle",
		"idx_vehicle_insights_search_key",
	} {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "index %s", idx)
	}
}

func TestInsertAndLoad(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.InsertAggregate(ctx, focus())
	require.NoError(t, err)

	agg, err := s.LoadByKey(ctx, vehicle.KeyVRM, "AB12CDE")
	require.NoError(t, err)

	assert.Equal(t, id, agg.Basic.ID)
	assert.Equal(t, "WF0AXXGCDA1234567", agg.Basic.VIN)
	assert.Equal(t, "AB12CDE", agg.Basic.VRM)
	assert.Equal(t, 2019, *agg.Basic.Year)
	assert.Equal(t, "2019-03-01", agg.Basic.RegistrationDate.String())
	assert.Nil(t, agg.Basic.Doors)
	assert.Empty(t, agg.Basic.Variant)
	assert.False(t, agg.Basic.UpdatedAt.IsZero())

	require.Len(t, agg.History, 2)
	assert.Equal(t, vehicle.EventMOT, agg.History[1].EventType)
	assert.Equal(t, vehicle.OutcomeFail, agg.History[1].PassFail)
	assert.Equal(t, 41250, *agg.History[1].Mileage)
	assert.Nil(t, agg.History[0].Cost)

	require.Len(t, agg.Recalls, 1)
	assert.Equal(t, vehicle.RecallOpen, agg.Recalls[0].RecallStatus)
	assert.True(t, *agg.Recalls[0].SafetyIssue)
	assert.Nil(t, agg.Recalls[0].CompletionDate)

	require.NotNil(t, agg.Specification)
	assert.Equal(t, "M1DA", agg.Specification.EngineCode)
	assert.Equal(t, 9.9, *agg.Specification.Acceleration0To60)
	assert.Nil(t, agg.Specification.ESP)
	assert.Equal(t, 52.0, *agg.Specification.FuelTankCapacity)
	assert.Equal(t, 375, *agg.Specification.BootCapacityLitres)
	assert.Equal(t, 1825, *agg.Specification.GrossWeightKG)
	assert.Nil(t, agg.Specification.MaxTowingWeightKG)
	assert.Equal(t, "Electric PAS", agg.Specification.SteeringType)
	assert.Equal(t, "Drum", agg.Specification.BrakeTypeRear)
	assert.Empty(t, agg.Specification.BrakeTypeFront)
	assert.Equal(t, "6 (front, side, curtain)", agg.Specification.Airbags)

	assert.Equal(t, 92, *agg.Basic.EnginePowerKW)
	assert.Equal(t, 118.5, *agg.Basic.CO2Emissions)
	assert.Equal(t, "M1", agg.Basic.VehicleClass)
	require.Len(t, agg.Valuations, 1)
	assert.Equal(t, -2.5, *agg.Valuations[0].RegionalAdjustment)

	assert.True(t, agg.MileageRecords[0].Verified)
	assert.Equal(t, 1250.5, *agg.InsuranceClaims[0].ClaimAmount)
	assert.True(t, agg.FinanceRecords[0].OutstandingFinance)

	// Empty collections are never nil.
	assert.NotNil(t, agg.TheftRecords)
	assert.NotNil(t, agg.AuctionRecords)
	assert.Empty(t, agg.OwnershipChanges)
}

func TestLoadByKey_VIN(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	id, err := s.InsertAggregate(ctx, focus())
	require.NoError(t, err)

	agg, err := s.LoadByVIN(ctx, "WF0AXXGCDA1234567")
	require.NoError(t, err)
	assert.Equal(t, id, agg.Basic.ID)

	byID, err := s.LoadByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, agg.Basic.VRM, byID.Basic.VRM)
}

func TestLoadByKey_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LoadByKey(context.Background(), vehicle.KeyVRM, "ZZ99ZZZ")
	assert.ErrorIs(t, err, vehicle.ErrNotFound)

	_, err = s.GetVehicle(context.Background(), 42)
	assert.ErrorIs(t, err, vehicle.ErrNotFound)
}

func TestLoadByKey_NoSpecification(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	agg := focus()
	agg.Specification = nil
	_, err := s.InsertAggregate(ctx, agg)
	require.NoError(t, err)

	got, err := s.LoadByKey(ctx, vehicle.KeyVRM, "AB12CDE")
	require.NoError(t, err)
	assert.Nil(t, got.Specification)
}

func TestInsertAggregate_Duplicate(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	_, err := s.InsertAggregate(ctx, focus())
	require.NoError(t, err)

	dup := focus()
	dup.Basic.VIN = ""
	_, err = s.InsertAggregate(ctx, dup)
	assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)
}

func TestInsertAggregate_RequiresKey(t *testing.T) {
	agg := focus()
	agg.Basic.VIN, agg.Basic.VRM = "", ""
	_, err := openTestStore(t).InsertAggregate(context.Background(), agg)
	assert.ErrorIs(t, err, vehicle.ErrInvalidKey)
}

func TestInsertAggregate_VehiclesWithoutVIN(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, vrm := range []string{"AA11AAA", "BB22BBB"} {
		_, err := s.InsertAggregate(ctx, &vehicle.Aggregate{Basic: vehicle.Vehicle{VRM: vrm, Make: "Vauxhall"}})
		require.NoError(t, err)
	}
	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Vehicles)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	_, err := s.InsertAggregate(ctx, focus())
	require.NoError(t, err)
	_, err = s.InsertAggregate(ctx, &vehicle.Aggregate{Basic: vehicle.Vehicle{VRM: "XY70ABC", Make: "Tesla", Model: "Model_3"}})
	require.NoError(t, err)

	tests := []struct {
		q    string
		want []string
	}{
		{"ocus", []string{"AB12CDE"}},
		{"FORD", []string{"AB12CDE"}},
		{"xy70", []string{"XY70ABC"}},
		{"1234567", []string{"AB12CDE"}},
		{"_", []string{"XY70ABC"}},
		{"%", nil},
		{"   ", nil},
		{"nothing", nil},
	}
	for _, tt := range tests {
		results, err := s.Search(ctx, tt.q)
		require.NoError(t, err, tt.q)
		var got []string
		for _, r := range results {
			got = append(got, r.VRM)
		}
		assert.Equal(t, tt.want, got, "query %q", tt.q)
	}
}

func TestSearch_Limit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	for i := 0; i < SearchLimit+3; i++ {
		_, err := s.InsertAggregate(ctx, &vehicle.Aggregate{Basic: vehicle.Vehicle{
			VRM: "GOLF" + string(rune('A'+i)), Make: "Volkswagen", Model: "Golf",
		}})
		require.NoError(t, err)
	}
	results, err := s.Search(ctx, "golf")
	require.NoError(t, err)
	assert.Len(t, results, SearchLimit)
}

func TestAddHistoryEvent_BumpsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	agg := focus()
	agg.Basic.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	id, err := s.InsertAggregate(ctx, agg)
	require.NoError(t, err)

	before, err := s.GetVehicle(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, agg.Basic.CreatedAt, before.UpdatedAt)

	require.NoError(t, s.AddHistoryEvent(ctx, id, vehicle.HistoryEvent{
		EventDate: date(2024, time.March, 3), EventType: vehicle.EventService, Mileage: ptr(46000),
	}))

	after, err := s.LoadByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, after.Basic.UpdatedAt.After(before.UpdatedAt))
	assert.Len(t, after.History, 3)

	err = s.AddHistoryEvent(ctx, 999, vehicle.HistoryEvent{EventType: vehicle.EventOther})
	assert.Error(t, err)
}

func TestInsightRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	id, err := s.InsertAggregate(ctx, focus())
	require.NoError(t, err)

	_, err = s.GetInsight(ctx, id)
	assert.ErrorIs(t, err, vehicle.ErrNotFound)

	generated := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	row := InsightRow{
		VehicleID:      id,
		SearchKey:      "AB12CDE",
		Payload:        []byte(`{"summary":"first"}`),
		Fingerprint:    "abc",
		GeneratedAt:    generated,
		ModelVersion:   "ollama:llama3.1",
		HasIssues:      true,
		NeedsAttention: false,
		UpdatedAt:      generated,
	}
	require.NoError(t, s.UpsertInsight(ctx, row))

	got, err := s.GetInsight(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, row, got)

	row.Payload = []byte(`{"summary":"second"}`)
	row.Fingerprint = "def"
	row.NeedsAttention = true
	require.NoError(t, s.UpsertInsight(ctx, row))

	got, err = s.GetInsight(ctx, id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":"second"}`, string(got.Payload))
	assert.Equal(t, "def", got.Fingerprint)
	assert.True(t, got.NeedsAttention)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Vehicles: 1, Insights: 1}, st)

	require.NoError(t, s.DeleteInsight(ctx, id))
	require.NoError(t, s.DeleteInsight(ctx, id))
	_, err = s.GetInsight(ctx, id)
	assert.ErrorIs(t, err, vehicle.ErrNotFound)
}

func TestDeleteVehicle_Cascades(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	id, err := s.InsertAggregate(ctx, focus())
	require.NoError(t, err)
	require.NoError(t, s.UpsertInsight(ctx, InsightRow{
		VehicleID: id, SearchKey: "AB12CDE", Payload: []byte(`{}`), Fingerprint: "f",
		GeneratedAt: time.Now(), ModelVersion: "m", UpdatedAt: time.Now(),
	}))

	require.NoError(t, s.DeleteVehicle(ctx, id))

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM history_events").Scan(&n))
	assert.Zero(t, n)
	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)

	assert.ErrorIs(t, s.DeleteVehicle(ctx, id), vehicle.ErrNotFound)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
}
