package vehicle

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestNormalizeVIN(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "valid", in: "1HGCM82633A004352", want: "1HGCM82633A004352"},
		{name: "lowercase and padded", in: "  1hgcm82633a004352 ", want: "1HGCM82633A004352"},
		{name: "too short", in: "1HGCM82633A00435", wantErr: true},
		{name: "too long", in: "1HGCM82633A0043521", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeVIN(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidKey))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeVRM(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "spaced plate", in: "ab12 cde", want: "AB12CDE"},
		{name: "minimum length", in: "a 1", want: "A1"},
		{name: "fifteen chars", in: "ABCDEFGHIJKLMNO", want: "ABCDEFGHIJKLMNO"},
		{name: "single char", in: " A ", wantErr: true},
		{name: "sixteen chars", in: "ABCDEFGHIJKLMNOP", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeVRM(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKeyType(t *testing.T) {
	kt, err := ParseKeyType("VIN")
	require.NoError(t, err)
	assert.Equal(t, KeyVIN, kt)

	_, err = ParseKeyType("plate")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestRecallStatusUnresolved(t *testing.T) {
	assert.True(t, ParseRecallStatus("Open").Unresolved())
	assert.True(t, ParseRecallStatus("OUTSTANDING").Unresolved())
	assert.True(t, ParseRecallStatus("not completed").Unresolved())
	assert.False(t, ParseRecallStatus("Completed").Unresolved())
	assert.False(t, ParseRecallStatus("whatever").Unresolved())
	assert.Equal(t, RecallUnknown, ParseRecallStatus(""))
}

func TestEnumsDecodeLoosely(t *testing.T) {
	var ev HistoryEvent
	require.NoError(t, json.Unmarshal([]byte(`{"event_type":"mot","pass_fail":"Failed"}`), &ev))
	assert.True(t, ev.Failed())

	var th TheftRecord
	require.NoError(t, json.Unmarshal([]byte(`{"current_status":"Reported Stolen"}`), &th))
	assert.Equal(t, TheftStolen, th.CurrentStatus)

	var oc OwnershipChange
	require.NoError(t, json.Unmarshal([]byte(`{"change_type":"trade-sale"}`), &oc))
	assert.Equal(t, ChangeDealerSale, oc.ChangeType)
}

func TestAggregateDecodesRecordShape(t *testing.T) {
	const data = `{
  "basic": {
    "vrm": "AB12CDE", "make": "Ford", "model": "Focus", "year": 2019,
    "engine_power_hp": 125, "engine_power_kw": 92, "co2_emissions": 118.5,
    "fuel_consumption_urban": 45.6, "fuel_consumption_extra_urban": 67.3,
    "fuel_consumption_combined": 56.5, "vehicle_class": "M1"
  },
  "valuations": [{"retail_value": 12500.0, "regional_adjustment": -2.5}],
  "specifications": {
    "length_mm": 4378, "gross_weight_kg": 1825, "max_towing_weight_kg": 1200,
    "fuel_tank_capacity": 52.0, "boot_capacity_litres": 375, "top_speed_mph": 124,
    "acceleration_0_60_mph": 9.4, "drive_type": "FWD", "steering_type": "Electric PAS",
    "brake_type_front": "Ventilated Disc", "brake_type_rear": "Drum",
    "airbags": "6 (front, side, curtain)", "abs": true, "esp": true
  }
}`
	var agg Aggregate
	require.NoError(t, json.Unmarshal([]byte(data), &agg))

	b := agg.Basic
	assert.Equal(t, 92, *b.EnginePowerKW)
	assert.Equal(t, 118.5, *b.CO2Emissions)
	assert.Equal(t, 45.6, *b.FuelConsumptionUrban)
	assert.Equal(t, 67.3, *b.FuelConsumptionExtraUrban)
	assert.Equal(t, "M1", b.VehicleClass)
	assert.Equal(t, -2.5, *agg.Valuations[0].RegionalAdjustment)

	s := agg.Specification
	require.NotNil(t, s)
	assert.Equal(t, 1825, *s.GrossWeightKG)
	assert.Equal(t, 1200, *s.MaxTowingWeightKG)
	assert.Equal(t, 52.0, *s.FuelTankCapacity)
	assert.Equal(t, 375, *s.BootCapacityLitres)
	assert.Equal(t, 9.4, *s.Acceleration0To60)
	assert.Equal(t, "Electric PAS", s.SteeringType)
	assert.Equal(t, "Ventilated Disc", s.BrakeTypeFront)
	assert.Equal(t, "Drum", s.BrakeTypeRear)
	assert.Equal(t, "6 (front, side, curtain)", s.Airbags)
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2024, time.March, 9)
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-09"`, string(b))

	var back Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-09T00:00:00Z"`), &back))
	assert.True(t, back.Equal(d.Time))
}

func TestDateDaysUntil(t *testing.T) {
	now := time.Date(2024, time.January, 1, 18, 30, 0, 0, time.UTC)
	assert.Equal(t, 0, NewDate(2024, time.January, 1).DaysUntil(now))
	assert.Equal(t, 30, NewDate(2024, time.January, 31).DaysUntil(now))
	assert.Equal(t, -1, NewDate(2023, time.December, 31).DaysUntil(now))
}

func TestCurrentMileage(t *testing.T) {
	agg := Aggregate{
		History: []HistoryEvent{
			{Mileage: intPtr(42000)},
			{Mileage: nil},
		},
		MileageRecords: []MileageReading{
			{Mileage: 39000},
			{Mileage: 45500},
		},
	}
	m, ok := agg.CurrentMileage()
	require.True(t, ok)
	assert.Equal(t, 45500, m)

	_, ok = (&Aggregate{}).CurrentMileage()
	assert.False(t, ok)
}

func TestEnsureCollections(t *testing.T) {
	var agg Aggregate
	agg.EnsureCollections()

	b, err := json.Marshal(agg)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, []any{}, out["history"])
	assert.Equal(t, []any{}, out["auction_records"])
	assert.Nil(t, out["specifications"])
}
