package storage

import (
	"database/sql"

	"github.com/kalambet/vinsight/internal/vehicle"
)

// childTable maps one related-record table to its Go type.
type childTable[T any] struct {
	name   string
	cols   []string // insert column names, without id and vehicle_id
	sel    []string // select expressions, id first, in scan order
	scan   func(r rowScanner) (T, error)
	values func(T) []any
}

var valuationsTable = childTable[vehicle.ValuationRecord]{
	name: "valuations",
	cols: []string{"valuation_date", "retail_value", "trade_value", "private_value", "auction_value",
		"mileage_at_valuation", "condition_grade", "regional_adjustment", "valuation_source", "confidence_score"},
	sel: []string{"id", "valuation_date", "retail_value", "trade_value", "private_value", "auction_value",
		"mileage_at_valuation", text("condition_grade"), "regional_adjustment", text("valuation_source"), "confidence_score"},
	scan: func(r rowScanner) (vehicle.ValuationRecord, error) {
		var (
			v                                 vehicle.ValuationRecord
			date                              dateCol
			retail, trade, private, auct, cfd sql.NullFloat64
			regional                          sql.NullFloat64
			mileage                           sql.NullInt64
		)
		err := r.Scan(&v.ID, &date, &retail, &trade, &private, &auct, &mileage, &v.ConditionGrade, &regional, &v.ValuationSource, &cfd)
		v.ValuationDate = date.v
		v.RetailValue, v.TradeValue, v.PrivateValue, v.AuctionValue = floatPtr(retail), floatPtr(trade), floatPtr(private), floatPtr(auct)
		v.MileageAtValuation = intPtr(mileage)
		v.RegionalAdjustment, v.ConfidenceScore = floatPtr(regional), floatPtr(cfd)
		return v, err
	},
	values: func(v vehicle.ValuationRecord) []any {
		return []any{dateArg(v.ValuationDate), floatArg(v.RetailValue), floatArg(v.TradeValue), floatArg(v.PrivateValue),
			floatArg(v.AuctionValue), intArg(v.MileageAtValuation), v.ConditionGrade, floatArg(v.RegionalAdjustment),
			v.ValuationSource, floatArg(v.ConfidenceScore)}
	},
}

var historyTable = childTable[vehicle.HistoryEvent]{
	name: "history_events",
	cols: []string{"event_date", "event_type", "event_description", "mileage", "pass_fail",
		"advisory_notes", "cost", "location", "source"},
	sel: []string{"id", "event_date", text("event_type"), text("event_description"), "mileage", text("pass_fail"),
		text("advisory_notes"), "cost", text("location"), text("source")},
	scan: func(r rowScanner) (vehicle.HistoryEvent, error) {
		var (
			e            vehicle.HistoryEvent
			date         dateCol
			typ, outcome string
			mileage      sql.NullInt64
			cost         sql.NullFloat64
		)
		err := r.Scan(&e.ID, &date, &typ, &e.EventDescription, &mileage, &outcome, &e.AdvisoryNotes, &cost, &e.Location, &e.Source)
		e.EventDate = date.v
		e.EventType = vehicle.ParseEventType(typ)
		e.PassFail = vehicle.ParseTestOutcome(outcome)
		e.Mileage = intPtr(mileage)
		e.Cost = floatPtr(cost)
		return e, err
	},
	values: func(e vehicle.HistoryEvent) []any {
		return []any{dateArg(e.EventDate), string(e.EventType), e.EventDescription, intArg(e.Mileage), string(e.PassFail),
			e.AdvisoryNotes, floatArg(e.Cost), e.Location, e.Source}
	},
}

var recallsTable = childTable[vehicle.RecallRecord]{
	name: "recalls",
	cols: []string{"recall_number", "recall_date", "recall_title", "recall_description", "safety_issue",
		"recall_status", "completion_date", "issuing_authority", "manufacturer_campaign"},
	sel: []string{"id", text("recall_number"), "recall_date", text("recall_title"), text("recall_description"), "safety_issue",
		text("recall_status"), "completion_date", text("issuing_authority"), text("manufacturer_campaign")},
	scan: func(r rowScanner) (vehicle.RecallRecord, error) {
		var (
			rc               vehicle.RecallRecord
			date, completion dateCol
			safety           sql.NullBool
			status           string
		)
		err := r.Scan(&rc.ID, &rc.RecallNumber, &date, &rc.RecallTitle, &rc.RecallDescription, &safety,
			&status, &completion, &rc.IssuingAuthority, &rc.ManufacturerCampaign)
		rc.RecallDate, rc.CompletionDate = date.v, completion.v
		rc.SafetyIssue = boolPtr(safety)
		rc.RecallStatus = vehicle.ParseRecallStatus(status)
		return rc, err
	},
	values: func(rc vehicle.RecallRecord) []any {
		return []any{rc.RecallNumber, dateArg(rc.RecallDate), rc.RecallTitle, rc.RecallDescription, boolArg(rc.SafetyIssue),
			string(rc.RecallStatus), dateArg(rc.CompletionDate), rc.IssuingAuthority, rc.ManufacturerCampaign}
	},
}

var specificationsTable = childTable[vehicle.Specification]{
	name: "specifications",
	cols: []string{"length_mm", "width_mm", "height_mm", "wheelbase_mm", "kerb_weight_kg", "gross_weight_kg",
		"max_towing_weight_kg", "fuel_tank_capacity", "boot_capacity_litres", "top_speed_mph", "acceleration_0_60_mph",
		"drive_type", "steering_type", "brake_type_front", "brake_type_rear", "airbags", "abs", "esp",
		"engine_code", "cylinder_count", "max_torque_nm", "euro_ncap_rating", "additional_features"},
	sel: []string{"id", "length_mm", "width_mm", "height_mm", "wheelbase_mm", "kerb_weight_kg", "gross_weight_kg",
		"max_towing_weight_kg", "fuel_tank_capacity", "boot_capacity_litres", "top_speed_mph", "acceleration_0_60_mph",
		text("drive_type"), text("steering_type"), text("brake_type_front"), text("brake_type_rear"), text("airbags"), "abs", "esp",
		text("engine_code"), "cylinder_count", "max_torque_nm", "euro_ncap_rating", text("additional_features")},
	scan: func(r rowScanner) (vehicle.Specification, error) {
		var (
			s                              vehicle.Specification
			l, w, h, wb, kerb, gross, tow  sql.NullInt64
			boot, speed, cyl, torque, ncap sql.NullInt64
			tank, accel                    sql.NullFloat64
			abs, esp                       sql.NullBool
		)
		err := r.Scan(&s.ID, &l, &w, &h, &wb, &kerb, &gross, &tow, &tank, &boot, &speed, &accel,
			&s.DriveType, &s.SteeringType, &s.BrakeTypeFront, &s.BrakeTypeRear, &s.Airbags, &abs, &esp,
			&s.EngineCode, &cyl, &torque, &ncap, &s.AdditionalFeatures)
		s.LengthMM, s.WidthMM, s.HeightMM, s.WheelbaseMM = intPtr(l), intPtr(w), intPtr(h), intPtr(wb)
		s.KerbWeightKG, s.GrossWeightKG, s.MaxTowingWeightKG = intPtr(kerb), intPtr(gross), intPtr(tow)
		s.FuelTankCapacity, s.BootCapacityLitres = floatPtr(tank), intPtr(boot)
		s.TopSpeedMPH, s.Acceleration0To60 = intPtr(speed), floatPtr(accel)
		s.ABS, s.ESP = boolPtr(abs), boolPtr(esp)
		s.CylinderCount, s.MaxTorqueNM, s.EuroNCAPRating = intPtr(cyl), intPtr(torque), intPtr(ncap)
		return s, err
	},
	values: func(s vehicle.Specification) []any {
		return []any{intArg(s.LengthMM), intArg(s.WidthMM), intArg(s.HeightMM), intArg(s.WheelbaseMM), intArg(s.KerbWeightKG),
			intArg(s.GrossWeightKG), intArg(s.MaxTowingWeightKG), floatArg(s.FuelTankCapacity), intArg(s.BootCapacityLitres),
			intArg(s.TopSpeedMPH), floatArg(s.Acceleration0To60), s.DriveType, s.SteeringType, s.BrakeTypeFront, s.BrakeTypeRear,
			s.Airbags, boolArg(s.ABS), boolArg(s.ESP), s.EngineCode, intArg(s.CylinderCount), intArg(s.MaxTorqueNM),
			intArg(s.EuroNCAPRating), s.AdditionalFeatures}
	},
}

var ownershipTable = childTable[vehicle.OwnershipChange]{
	name: "ownership_changes",
	cols: []string{"change_date", "change_type", "keeper_count", "owner_type", "region", "mileage_at_change", "notes"},
	sel:  []string{"id", "change_date", text("change_type"), "keeper_count", text("owner_type"), text("region"), "mileage_at_change", text("notes")},
	scan: func(r rowScanner) (vehicle.OwnershipChange, error) {
		var (
			o              vehicle.OwnershipChange
			date           dateCol
			typ            string
			keepers, miles sql.NullInt64
		)
		err := r.Scan(&o.ID, &date, &typ, &keepers, &o.OwnerType, &o.Region, &miles, &o.Notes)
		o.ChangeDate = date.v
		o.ChangeType = vehicle.ParseOwnershipChangeType(typ)
		o.KeeperCount, o.MileageAtChange = intPtr(keepers), intPtr(miles)
		return o, err
	},
	values: func(o vehicle.OwnershipChange) []any {
		return []any{dateArg(o.ChangeDate), string(o.ChangeType), intArg(o.KeeperCount), o.OwnerType, o.Region, intArg(o.MileageAtChange), o.Notes}
	},
}

var theftTable = childTable[vehicle.TheftRecord]{
	name: "theft_records",
	cols: []string{"reported_date", "recovered_date", "current_status", "police_force", "crime_reference", "notes"},
	sel:  []string{"id", "reported_date", "recovered_date", text("current_status"), text("police_force"), text("crime_reference"), text("notes")},
	scan: func(r rowScanner) (vehicle.TheftRecord, error) {
		var (
			t                   vehicle.TheftRecord
			reported, recovered dateCol
			status              string
		)
		err := r.Scan(&t.ID, &reported, &recovered, &status, &t.PoliceForce, &t.CrimeReference, &t.Notes)
		t.ReportedDate, t.RecoveredDate = reported.v, recovered.v
		t.CurrentStatus = vehicle.ParseTheftStatus(status)
		return t, err
	},
	values: func(t vehicle.TheftRecord) []any {
		return []any{dateArg(t.ReportedDate), dateArg(t.RecoveredDate), string(t.CurrentStatus), t.PoliceForce, t.CrimeReference, t.Notes}
	},
}

var claimsTable = childTable[vehicle.InsuranceClaim]{
	name: "insurance_claims",
	cols: []string{"claim_date", "claim_type", "claim_amount", "total_loss", "write_off_category", "insurer", "status", "description"},
	sel: []string{"id", "claim_date", text("claim_type"), "claim_amount", "total_loss", text("write_off_category"),
		text("insurer"), text("status"), text("description")},
	scan: func(r rowScanner) (vehicle.InsuranceClaim, error) {
		var (
			c      vehicle.InsuranceClaim
			date   dateCol
			amount sql.NullFloat64
		)
		err := r.Scan(&c.ID, &date, &c.ClaimType, &amount, &c.TotalLoss, &c.WriteOffCategory, &c.Insurer, &c.Status, &c.Description)
		c.ClaimDate = date.v
		c.ClaimAmount = floatPtr(amount)
		return c, err
	},
	values: func(c vehicle.InsuranceClaim) []any {
		return []any{dateArg(c.ClaimDate), c.ClaimType, floatArg(c.ClaimAmount), c.TotalLoss, c.WriteOffCategory, c.Insurer, c.Status, c.Description}
	},
}

var mileageTable = childTable[vehicle.MileageReading]{
	name: "mileage_records",
	cols: []string{"reading_date", "mileage", "source", "verified"},
	sel:  []string{"id", "reading_date", "mileage", text("source"), "verified"},
	scan: func(r rowScanner) (vehicle.MileageReading, error) {
		var (
			m    vehicle.MileageReading
			date dateCol
		)
		err := r.Scan(&m.ID, &date, &m.Mileage, &m.Source, &m.Verified)
		m.ReadingDate = date.v
		return m, err
	},
	values: func(m vehicle.MileageReading) []any {
		return []any{dateArg(m.ReadingDate), m.Mileage, m.Source, m.Verified}
	},
}

var financeTable = childTable[vehicle.FinanceRecord]{
	name: "finance_records",
	cols: []string{"agreement_type", "finance_company", "start_date", "end_date", "amount", "monthly_payment", "outstanding_finance"},
	sel: []string{"id", text("agreement_type"), text("finance_company"), "start_date", "end_date", "amount",
		"monthly_payment", "outstanding_finance"},
	scan: func(r rowScanner) (vehicle.FinanceRecord, error) {
		var (
			f               vehicle.FinanceRecord
			start, end      dateCol
			amount, monthly sql.NullFloat64
		)
		err := r.Scan(&f.ID, &f.AgreementType, &f.FinanceCompany, &start, &end, &amount, &monthly, &f.OutstandingFinance)
		f.StartDate, f.EndDate = start.v, end.v
		f.Amount, f.MonthlyPayment = floatPtr(amount), floatPtr(monthly)
		return f, err
	},
	values: func(f vehicle.FinanceRecord) []any {
		return []any{f.AgreementType, f.FinanceCompany, dateArg(f.StartDate), dateArg(f.EndDate), floatArg(f.Amount),
			floatArg(f.MonthlyPayment), f.OutstandingFinance}
	},
}

var auctionsTable = childTable[vehicle.AuctionRecord]{
	name: "auction_records",
	cols: []string{"auction_date", "auction_house", "lot_number", "sale_price", "reserve_price", "sold",
		"condition_grade", "mileage_at_auction", "notes"},
	sel: []string{"id", "auction_date", text("auction_house"), text("lot_number"), "sale_price", "reserve_price", "sold",
		text("condition_grade"), "mileage_at_auction", text("notes")},
	scan: func(r rowScanner) (vehicle.AuctionRecord, error) {
		var (
			a             vehicle.AuctionRecord
			date          dateCol
			sale, reserve sql.NullFloat64
			mileage       sql.NullInt64
		)
		err := r.Scan(&a.ID, &date, &a.AuctionHouse, &a.LotNumber, &sale, &reserve, &a.Sold, &a.ConditionGrade, &mileage, &a.Notes)
		a.AuctionDate = date.v
		a.SalePrice, a.ReservePrice = floatPtr(sale), floatPtr(reserve)
		a.MileageAtAuction = intPtr(mileage)
		return a, err
	},
	values: func(a vehicle.AuctionRecord) []any {
		return []any{dateArg(a.AuctionDate), a.AuctionHouse, a.LotNumber, floatArg(a.SalePrice), floatArg(a.ReservePrice), a.Sold,
			a.ConditionGrade, intArg(a.MileageAtAuction), a.Notes}
	},
}
