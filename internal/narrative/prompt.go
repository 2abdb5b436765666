package narrative

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kalambet/vinsight/internal/engine"
	"github.com/kalambet/vinsight/internal/vehicle"
)

const systemPrompt = `You are an automotive analyst writing for the owner of one specific vehicle.
Every statement you make must be supported by the records supplied to you.
Do not describe the make or model family in general terms, do not mention common faults you cannot see in the records, and do not invent dates, amounts or events.
When a section has no records, say so plainly instead of guessing.
Reply with a single JSON object and nothing else: no Markdown, no code fences, no commentary.`

const outputContract = `Return JSON with exactly these fields:
{
  "summary": "2-3 short paragraphs about this vehicle, grounded in the records above",
  "key_insights": ["4-6 facts the owner should know, each traceable to a record"],
  "owner_advice": "practical advice for this owner based on the records",
  "reliability_assessment": {"score": 1-10 as a number, "explanation": "which records drove the score"},
  "value_assessment": {"current_market_position": "based on the valuation records", "factors_affecting_value": "record-backed factors"},
  "attention_items": ["anything due, overdue, open or outstanding; empty array if nothing"],
  "cost_insights": {"typical_maintenance": "from the service and repair costs", "insurance_notes": "from the insurance group and claims", "fuel_efficiency": "from the fuel and consumption data"},
  "technical_highlights": ["2-3 features taken from the specification"]
}
Mention safety recalls, theft markers, write-offs and outstanding finance explicitly in attention_items when present.`

// BuildMessages returns the chat messages for one aggregate.
func BuildMessages(agg *vehicle.Aggregate) []engine.Message {
	return []engine.Message{
		{Role: engine.RoleSystem, Content: systemPrompt},
		{Role: engine.RoleUser, Content: BuildPrompt(agg)},
	}
}

// BuildPrompt renders every section of agg followed by the output contract.
func BuildPrompt(agg *vehicle.Aggregate) string {
	var sb strings.Builder
	sb.WriteString("VEHICLE RECORDS\n\n")
	for _, s := range RenderSections(agg) {
		sb.WriteString(s)
		sb.WriteString("\n\n")
	}
	sb.WriteString(outputContract)
	return sb.String()
}

// RenderSections renders each section of the aggregate as readable text.
// Empty sections are rendered with an explicit marker rather than omitted.
func RenderSections(agg *vehicle.Aggregate) []string {
	b := agg.Basic
	basic := renderRecord(vehicleFields(b, agg))

	var spec []string
	if agg.Specification != nil {
		spec = []string{renderRecord(specificationFields(*agg.Specification))}
	}

	return []string{
		section("Basic Vehicle Information", []string{basic}),
		section("Technical Specifications", spec),
		section("Valuation History", each(agg.Valuations, valuationFields)),
		section("MOT and Service History", each(agg.History, historyFields)),
		section("Recall Information", each(agg.Recalls, recallFields)),
		section("Ownership Changes", each(agg.OwnershipChanges, ownershipFields)),
		section("Theft Records", each(agg.TheftRecords, theftFields)),
		section("Insurance Claims", each(agg.InsuranceClaims, claimFields)),
		section("Mileage Records", each(agg.MileageRecords, mileageFields)),
		section("Finance Records", each(agg.FinanceRecords, financeFields)),
		section("Auction Records", each(agg.AuctionRecords, auctionFields)),
	}
}

func section(title string, lines []string) string {
	var kept []string
	for _, l := range lines {
		if l != "" {
			kept = append(kept, "- "+l)
		}
	}
	if len(kept) == 0 {
		return title + ": No records found"
	}
	return title + ":\n" + strings.Join(kept, "\n")
}

func each[T any](items []T, fn func(T) fields) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, renderRecord(fn(it)))
	}
	return out
}

// fields is an ordered list of "Key: Value" pairs. Empty values are skipped.
type fields []string

func renderRecord(f fields) string {
	return strings.Join(f, " | ")
}

func (f *fields) text(label, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*f = append(*f, label+": "+v)
	}
}

func (f *fields) num(label string, v *int) {
	if v != nil {
		*f = append(*f, label+": "+strconv.Itoa(*v))
	}
}

func (f *fields) decimal(label string, v *float64, unit string) {
	if v != nil {
		*f = append(*f, label+": "+strconv.FormatFloat(*v, 'f', -1, 64)+unit)
	}
}

func (f *fields) money(label string, v *float64) {
	if v != nil {
		*f = append(*f, fmt.Sprintf("%s: £%.2f", label, *v))
	}
}

func (f *fields) date(label string, v *vehicle.Date) {
	if v != nil {
		*f = append(*f, label+": "+v.String())
	}
}

func (f *fields) flag(label string, v *bool) {
	if v != nil {
		f.yesNo(label, *v)
	}
}

func (f *fields) yesNo(label string, v bool) {
	if v {
		*f = append(*f, label+": Yes")
	} else {
		*f = append(*f, label+": No")
	}
}

func vehicleFields(b vehicle.Vehicle, agg *vehicle.Aggregate) fields {
	var f fields
	f.text("VRM", b.VRM)
	f.text("VIN", b.VIN)
	f.text("Make", b.Make)
	f.text("Model", b.Model)
	f.text("Variant", b.Variant)
	f.num("Year", b.Year)
	f.date("Registration Date", b.RegistrationDate)
	f.text("Vehicle Status", b.VehicleStatus)
	f.text("MOT Status", b.MOTStatus)
	f.date("MOT Expiry Date", b.MOTExpiryDate)
	f.text("Tax Status", b.TaxStatus)
	f.date("Tax Due Date", b.TaxDueDate)
	if m, ok := agg.CurrentMileage(); ok {
		f.num("Latest Recorded Mileage", &m)
	}
	f.decimal("Engine Size", b.EngineSize, "L")
	f.text("Fuel Type", b.FuelType)
	f.text("Transmission", b.Transmission)
	f.text("Body Type", b.BodyType)
	f.num("Engine Power HP", b.EnginePowerHP)
	f.num("Engine Power kW", b.EnginePowerKW)
	f.decimal("CO2 Emissions", b.CO2Emissions, " g/km")
	f.decimal("Fuel Consumption Urban", b.FuelConsumptionUrban, " mpg")
	f.decimal("Fuel Consumption Extra Urban", b.FuelConsumptionExtraUrban, " mpg")
	f.decimal("Fuel Consumption Combined", b.FuelConsumptionCombined, " mpg")
	f.text("Insurance Group", b.InsuranceGroup)
	f.text("Euro Status", b.EuroStatus)
	f.text("Vehicle Class", b.VehicleClass)
	f.num("Doors", b.Doors)
	f.num("Seats", b.Seats)
	f.text("Colour", b.Colour)
	return f
}

func specificationFields(s vehicle.Specification) fields {
	var f fields
	f.text("Engine Code", s.EngineCode)
	f.num("Cylinders", s.CylinderCount)
	f.num("Max Torque Nm", s.MaxTorqueNM)
	f.num("Top Speed mph", s.TopSpeedMPH)
	f.decimal("0-60 mph", s.Acceleration0To60, "s")
	f.text("Drive Type", s.DriveType)
	f.text("Steering", s.SteeringType)
	f.text("Front Brakes", s.BrakeTypeFront)
	f.text("Rear Brakes", s.BrakeTypeRear)
	f.flag("ABS", s.ABS)
	f.flag("ESP", s.ESP)
	f.text("Airbags", s.Airbags)
	f.num("Euro NCAP Rating", s.EuroNCAPRating)
	f.num("Length mm", s.LengthMM)
	f.num("Width mm", s.WidthMM)
	f.num("Height mm", s.HeightMM)
	f.num("Wheelbase mm", s.WheelbaseMM)
	f.num("Kerb Weight kg", s.KerbWeightKG)
	f.num("Gross Weight kg", s.GrossWeightKG)
	f.num("Max Towing Weight kg", s.MaxTowingWeightKG)
	f.decimal("Fuel Tank", s.FuelTankCapacity, "L")
	f.num("Boot Capacity L", s.BootCapacityLitres)
	f.text("Additional Features", s.AdditionalFeatures)
	return f
}

func valuationFields(v vehicle.ValuationRecord) fields {
	var f fields
	f.date("Valuation Date", v.ValuationDate)
	f.money("Retail Value", v.RetailValue)
	f.money("Private Value", v.PrivateValue)
	f.money("Trade Value", v.TradeValue)
	f.money("Auction Value", v.AuctionValue)
	f.num("Mileage At Valuation", v.MileageAtValuation)
	f.text("Condition Grade", v.ConditionGrade)
	f.decimal("Regional Adjustment", v.RegionalAdjustment, "")
	f.text("Source", v.ValuationSource)
	f.decimal("Confidence", v.ConfidenceScore, "")
	return f
}

func historyFields(h vehicle.HistoryEvent) fields {
	var f fields
	f.date("Date", h.EventDate)
	f.text("Event", string(h.EventType))
	f.text("Result", string(h.PassFail))
	f.num("Mileage", h.Mileage)
	f.money("Cost", h.Cost)
	f.text("Description", h.EventDescription)
	f.text("Advisories", h.AdvisoryNotes)
	f.text("Location", h.Location)
	f.text("Source", h.Source)
	return f
}

func recallFields(r vehicle.RecallRecord) fields {
	var f fields
	f.date("Recall Date", r.RecallDate)
	f.text("Status", string(r.RecallStatus))
	f.flag("Safety Issue", r.SafetyIssue)
	f.text("Title", r.RecallTitle)
	f.text("Recall Number", r.RecallNumber)
	f.date("Completion Date", r.CompletionDate)
	f.text("Description", r.RecallDescription)
	f.text("Issuing Authority", r.IssuingAuthority)
	f.text("Campaign", r.ManufacturerCampaign)
	return f
}

func ownershipFields(o vehicle.OwnershipChange) fields {
	var f fields
	f.date("Change Date", o.ChangeDate)
	f.text("Change Type", string(o.ChangeType))
	f.num("Keeper Count", o.KeeperCount)
	f.num("Mileage At Change", o.MileageAtChange)
	f.text("Owner Type", o.OwnerType)
	f.text("Region", o.Region)
	f.text("Notes", o.Notes)
	return f
}

func theftFields(t vehicle.TheftRecord) fields {
	var f fields
	f.date("Reported Date", t.ReportedDate)
	f.text("Current Status", string(t.CurrentStatus))
	f.date("Recovered Date", t.RecoveredDate)
	f.text("Police Force", t.PoliceForce)
	f.text("Crime Reference", t.CrimeReference)
	f.text("Notes", t.Notes)
	return f
}

func claimFields(c vehicle.InsuranceClaim) fields {
	var f fields
	f.date("Claim Date", c.ClaimDate)
	f.text("Claim Type", c.ClaimType)
	f.yesNo("Total Loss", c.TotalLoss)
	f.text("Write-off Category", c.WriteOffCategory)
	f.money("Claim Amount", c.ClaimAmount)
	f.text("Status", c.Status)
	f.text("Insurer", c.Insurer)
	f.text("Description", c.Description)
	return f
}

func mileageFields(m vehicle.MileageReading) fields {
	var f fields
	f.date("Reading Date", m.ReadingDate)
	mileage := m.Mileage
	f.num("Mileage", &mileage)
	f.yesNo("Verified", m.Verified)
	f.text("Source", m.Source)
	return f
}

func financeFields(fr vehicle.FinanceRecord) fields {
	var f fields
	f.yesNo("Outstanding Finance", fr.OutstandingFinance)
	f.date("Start Date", fr.StartDate)
	f.date("End Date", fr.EndDate)
	f.text("Agreement Type", fr.AgreementType)
	f.money("Amount", fr.Amount)
	f.money("Monthly Payment", fr.MonthlyPayment)
	f.text("Finance Company", fr.FinanceCompany)
	return f
}

func auctionFields(a vehicle.AuctionRecord) fields {
	var f fields
	f.date("Auction Date", a.AuctionDate)
	f.yesNo("Sold", a.Sold)
	f.money("Sale Price", a.SalePrice)
	f.money("Reserve Price", a.ReservePrice)
	f.num("Mileage At Auction", a.MileageAtAuction)
	f.text("Condition Grade", a.ConditionGrade)
	f.text("Auction House", a.AuctionHouse)
	f.text("Lot Number", a.LotNumber)
	f.text("Notes", a.Notes)
	return f
}

// artifactSchema mirrors outputContract for backends that enforce
// structured output.
func artifactSchema() *engine.Schema {
	return engine.NewSchema(map[string]engine.SchemaProperty{
		"summary":      engine.String("2-3 short paragraphs grounded in the records"),
		"key_insights": engine.StringArray("4-6 facts traceable to a record"),
		"owner_advice": engine.String("practical advice based on the records"),
		"reliability_assessment": engine.Object(map[string]engine.SchemaProperty{
			"score":       engine.IntegerRange("reliability rating", 1, 10),
			"explanation": engine.String("which records drove the score"),
		}),
		"value_assessment": engine.Object(map[string]engine.SchemaProperty{
			"current_market_position": engine.String("based on the valuation records"),
			"factors_affecting_value": engine.String("record-backed factors"),
		}),
		"attention_items": engine.StringArray("anything due, overdue, open or outstanding"),
		"cost_insights": engine.Object(map[string]engine.SchemaProperty{
			"typical_maintenance": engine.String("from service and repair costs"),
			"insurance_notes":     engine.String("from the insurance group and claims"),
			"fuel_efficiency":     engine.String("from the fuel and consumption data"),
		}),
		"technical_highlights": engine.StringArray("2-3 features from the specification"),
	})
}
