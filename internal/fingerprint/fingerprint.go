// Package fingerprint hashes the parts of a vehicle aggregate that should
// invalidate a cached narrative when they change.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/kalambet/vinsight/internal/vehicle"
)

// Length is the size of a fingerprint in hex characters.
const Length = sha256.Size * 2

// Compute returns the lowercase hex SHA-256 of the normalized projection of
// agg. Free-text fields are not part of the projection.
func Compute(agg *vehicle.Aggregate) string {
	// encoding/json sorts map keys, which gives a canonical serialization.
	b, err := json.Marshal(Projection(agg))
	if err != nil {
		// Projection only holds strings, numbers, bools and nil.
		panic("fingerprint: marshal projection: " + err.Error())
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Projection is the normalized view of agg that Compute hashes.
func Projection(agg *vehicle.Aggregate) map[string]any {
	b := agg.Basic

	p := map[string]any{
		"vin":                     b.VIN,
		"vrm":                     b.VRM,
		"year":                    intOrNil(b.Year),
		"mot_status":              b.MOTStatus,
		"mot_expiry_date":         dateOrNil(b.MOTExpiryDate),
		"history_count":           len(agg.History),
		"valuations_count":        len(agg.Valuations),
		"recalls_count":           len(agg.Recalls),
		"ownership_changes_count": len(agg.OwnershipChanges),
		"theft_records_count":     len(agg.TheftRecords),
		"insurance_claims_count":  len(agg.InsuranceClaims),
		"mileage_records_count":   len(agg.MileageRecords),
		"finance_records_count":   len(agg.FinanceRecords),
		"auction_records_count":   len(agg.AuctionRecords),
		"updated_at":              timeOrNil(b.UpdatedAt),
	}

	if m, ok := agg.CurrentMileage(); ok {
		p["latest_mileage"] = m
	} else {
		p["latest_mileage"] = nil
	}

	p["latest_recall_status"] = nil
	if r, ok := latestRecall(agg.Recalls); ok {
		p["latest_recall_status"] = string(r.RecallStatus)
	}

	p["latest_theft_status"] = nil
	if t, ok := latestTheft(agg.TheftRecords); ok {
		p["latest_theft_status"] = string(t.CurrentStatus)
	}

	p["latest_claim_total_loss"] = nil
	if c, ok := latestClaim(agg.InsuranceClaims); ok {
		p["latest_claim_total_loss"] = c.TotalLoss
	}

	p["latest_finance_outstanding"] = nil
	if f, ok := latestFinance(agg.FinanceRecords); ok {
		p["latest_finance_outstanding"] = f.OutstandingFinance
	}

	return p
}

func intOrNil(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func dateOrNil(d *vehicle.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func timeOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
