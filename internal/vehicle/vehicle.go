// Package vehicle defines the read-only vehicle aggregate assembled from the
// database and the natural-key rules used to look it up.
package vehicle

import "time"

// Vehicle holds the core attributes of a single vehicle row.
type Vehicle struct {
	ID                        int64     `json:"id"`
	VIN                       string    `json:"vin"`
	VRM                       string    `json:"vrm"`
	Make                      string    `json:"make"`
	Model                     string    `json:"model"`
	Variant                   string    `json:"variant"`
	Year                      *int      `json:"year"`
	RegistrationDate          *Date     `json:"registration_date"`
	EngineSize                *float64  `json:"engine_size"`
	FuelType                  string    `json:"fuel_type"`
	Transmission              string    `json:"transmission"`
	BodyType                  string    `json:"body_type"`
	Colour                    string    `json:"colour"`
	Doors                     *int      `json:"doors"`
	Seats                     *int      `json:"seats"`
	EnginePowerHP             *int      `json:"engine_power_hp"`
	EnginePowerKW             *int      `json:"engine_power_kw"`
	CO2Emissions              *float64  `json:"co2_emissions"`
	FuelConsumptionUrban      *float64  `json:"fuel_consumption_urban"`
	FuelConsumptionExtraUrban *float64  `json:"fuel_consumption_extra_urban"`
	FuelConsumptionCombined   *float64  `json:"fuel_consumption_combined"`
	VehicleStatus             string    `json:"vehicle_status"`
	MOTStatus                 string    `json:"mot_status"`
	MOTExpiryDate             *Date     `json:"mot_expiry_date"`
	TaxStatus                 string    `json:"tax_status"`
	TaxDueDate                *Date     `json:"tax_due_date"`
	InsuranceGroup            string    `json:"insurance_group"`
	EuroStatus                string    `json:"euro_status"`
	VehicleClass              string    `json:"vehicle_class"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

type ValuationRecord struct {
	ID                 int64    `json:"id"`
	ValuationDate      *Date    `json:"valuation_date"`
	RetailValue        *float64 `json:"retail_value"`
	TradeValue         *float64 `json:"trade_value"`
	PrivateValue       *float64 `json:"private_value"`
	AuctionValue       *float64 `json:"auction_value"`
	MileageAtValuation *int     `json:"mileage_at_valuation"`
	ConditionGrade     string   `json:"condition_grade"`
	RegionalAdjustment *float64 `json:"regional_adjustment"`
	ValuationSource    string   `json:"valuation_source"`
	ConfidenceScore    *float64 `json:"confidence_score"`
}

// HistoryEvent is an MOT test, service, repair or registration event.
type HistoryEvent struct {
	ID               int64       `json:"id"`
	EventDate        *Date       `json:"event_date"`
	EventType        EventType   `json:"event_type"`
	EventDescription string      `json:"event_description"`
	Mileage          *int        `json:"mileage"`
	PassFail         TestOutcome `json:"pass_fail"`
	AdvisoryNotes    string      `json:"advisory_notes"`
	Cost             *float64    `json:"cost"`
	Location         string      `json:"location"`
	Source           string      `json:"source"`
}

// Failed reports whether the event is an MOT test with a fail outcome.
func (e HistoryEvent) Failed() bool {
	return e.EventType == EventMOT && e.PassFail == OutcomeFail
}

type RecallRecord struct {
	ID                   int64        `json:"id"`
	RecallNumber         string       `json:"recall_number"`
	RecallDate           *Date        `json:"recall_date"`
	RecallTitle          string       `json:"recall_title"`
	RecallDescription    string       `json:"recall_description"`
	SafetyIssue          *bool        `json:"safety_issue"`
	RecallStatus         RecallStatus `json:"recall_status"`
	CompletionDate       *Date        `json:"completion_date"`
	IssuingAuthority     string       `json:"issuing_authority"`
	ManufacturerCampaign string       `json:"manufacturer_campaign"`
}

type Specification struct {
	ID                 int64    `json:"id"`
	LengthMM           *int     `json:"length_mm"`
	WidthMM            *int     `json:"width_mm"`
	HeightMM           *int     `json:"height_mm"`
	WheelbaseMM        *int     `json:"wheelbase_mm"`
	KerbWeightKG       *int     `json:"kerb_weight_kg"`
	GrossWeightKG      *int     `json:"gross_weight_kg"`
	MaxTowingWeightKG  *int     `json:"max_towing_weight_kg"`
	FuelTankCapacity   *float64 `json:"fuel_tank_capacity"`
	BootCapacityLitres *int     `json:"boot_capacity_litres"`
	TopSpeedMPH        *int     `json:"top_speed_mph"`
	Acceleration0To60  *float64 `json:"acceleration_0_60_mph"`
	DriveType          string   `json:"drive_type"`
	SteeringType       string   `json:"steering_type"`
	BrakeTypeFront     string   `json:"brake_type_front"`
	BrakeTypeRear      string   `json:"brake_type_rear"`
	Airbags            string   `json:"airbags"`
	ABS                *bool    `json:"abs"`
	ESP                *bool    `json:"esp"`
	EngineCode         string   `json:"engine_code"`
	CylinderCount      *int     `json:"cylinder_count"`
	MaxTorqueNM        *int     `json:"max_torque_nm"`
	EuroNCAPRating     *int     `json:"euro_ncap_rating"`
	AdditionalFeatures string   `json:"additional_features"`
}

type OwnershipChange struct {
	ID              int64               `json:"id"`
	ChangeDate      *Date               `json:"change_date"`
	ChangeType      OwnershipChangeType `json:"change_type"`
	KeeperCount     *int                `json:"keeper_count"`
	OwnerType       string              `json:"owner_type"`
	Region          string              `json:"region"`
	MileageAtChange *int                `json:"mileage_at_change"`
	Notes           string              `json:"notes"`
}

type TheftRecord struct {
	ID             int64       `json:"id"`
	ReportedDate   *Date       `json:"reported_date"`
	RecoveredDate  *Date       `json:"recovered_date"`
	CurrentStatus  TheftStatus `json:"current_status"`
	PoliceForce    string      `json:"police_force"`
	CrimeReference string      `json:"crime_reference"`
	Notes          string      `json:"notes"`
}

type InsuranceClaim struct {
	ID               int64    `json:"id"`
	ClaimDate        *Date    `json:"claim_date"`
	ClaimType        string   `json:"claim_type"`
	ClaimAmount      *float64 `json:"claim_amount"`
	TotalLoss        bool     `json:"total_loss"`
	WriteOffCategory string   `json:"write_off_category"`
	Insurer          string   `json:"insurer"`
	Status           string   `json:"status"`
	Description      string   `json:"description"`
}

type MileageReading struct {
	ID          int64  `json:"id"`
	ReadingDate *Date  `json:"reading_date"`
	Mileage     int    `json:"mileage"`
	Source      string `json:"source"`
	Verified    bool   `json:"verified"`
}

type FinanceRecord struct {
	ID                 int64    `json:"id"`
	AgreementType      string   `json:"agreement_type"`
	FinanceCompany     string   `json:"finance_company"`
	StartDate          *Date    `json:"start_date"`
	EndDate            *Date    `json:"end_date"`
	Amount             *float64 `json:"amount"`
	MonthlyPayment     *float64 `json:"monthly_payment"`
	OutstandingFinance bool     `json:"outstanding_finance"`
}

type AuctionRecord struct {
	ID               int64    `json:"id"`
	AuctionDate      *Date    `json:"auction_date"`
	AuctionHouse     string   `json:"auction_house"`
	LotNumber        string   `json:"lot_number"`
	SalePrice        *float64 `json:"sale_price"`
	ReservePrice     *float64 `json:"reserve_price"`
	Sold             bool     `json:"sold"`
	ConditionGrade   string   `json:"condition_grade"`
	MileageAtAuction *int     `json:"mileage_at_auction"`
	Notes            string   `json:"notes"`
}

// Aggregate is a read-only snapshot of a vehicle and every related record.
// It is also the JSON shape returned as detailed_data.
type Aggregate struct {
	Basic            Vehicle           `json:"basic"`
	Valuations       []ValuationRecord `json:"valuations"`
	History          []HistoryEvent    `json:"history"`
	Recalls          []RecallRecord    `json:"recalls"`
	Specification    *Specification    `json:"specifications"`
	OwnershipChanges []OwnershipChange `json:"ownership_changes"`
	TheftRecords     []TheftRecord     `json:"theft_records"`
	InsuranceClaims  []InsuranceClaim  `json:"insurance_claims"`
	MileageRecords   []MileageReading  `json:"mileage_records"`
	FinanceRecords   []FinanceRecord   `json:"finance_records"`
	AuctionRecords   []AuctionRecord   `json:"auction_records"`
}

// EnsureCollections replaces nil collections with empty ones so that they
// serialize as [] rather than null.
func (a *Aggregate) EnsureCollections() {
	if a.Valuations == nil {
		a.Valuations = []ValuationRecord{}
	}
	if a.History == nil {
		a.History = []HistoryEvent{}
	}
	if a.Recalls == nil {
		a.Recalls = []RecallRecord{}
	}
	if a.OwnershipChanges == nil {
		a.OwnershipChanges = []OwnershipChange{}
	}
	if a.TheftRecords == nil {
		a.TheftRecords = []TheftRecord{}
	}
	if a.InsuranceClaims == nil {
		a.InsuranceClaims = []InsuranceClaim{}
	}
	if a.MileageRecords == nil {
		a.MileageRecords = []MileageReading{}
	}
	if a.FinanceRecords == nil {
		a.FinanceRecords = []FinanceRecord{}
	}
	if a.AuctionRecords == nil {
		a.AuctionRecords = []AuctionRecord{}
	}
}

// CurrentMileage is the highest odometer reading across history events and
// mileage records. Neither source is authoritative over the other.
func (a *Aggregate) CurrentMileage() (int, bool) {
	var (
		best  int
		found bool
	)
	for _, h := range a.History {
		if h.Mileage != nil && (!found || *h.Mileage > best) {
			best, found = *h.Mileage, true
		}
	}
	for _, m := range a.MileageRecords {
		if !found || m.Mileage > best {
			best, found = m.Mileage, true
		}
	}
	return best, found
}

// SearchKey is the registration mark when known, otherwise the VIN.
func (a *Aggregate) SearchKey() string {
	if a.Basic.VRM != "" {
		return a.Basic.VRM
	}
	return a.Basic.VIN
}
