package fingerprint

import (
	"strconv"

	"github.com/kalambet/vinsight/internal/vehicle"
)

// latest picks the element with the greatest date. Undated elements lose to
// dated ones. Equal dates fall back to comparing tie, so the result never
// depends on slice order.
func latest[T any](items []T, date func(T) *vehicle.Date, tie func(T) string) (T, bool) {
	var (
		best  T
		found bool
	)
	for _, it := range items {
		if !found || later(date(it), tie(it), date(best), tie(best)) {
			best, found = it, true
		}
	}
	return best, found
}

func later(d *vehicle.Date, tie string, bestD *vehicle.Date, bestTie string) bool {
	switch {
	case d == nil && bestD == nil:
		return tie > bestTie
	case d == nil:
		return false
	case bestD == nil:
		return true
	case d.After(bestD.Time):
		return true
	case d.Equal(bestD.Time):
		return tie > bestTie
	default:
		return false
	}
}

func latestRecall(rs []vehicle.RecallRecord) (vehicle.RecallRecord, bool) {
	return latest(rs,
		func(r vehicle.RecallRecord) *vehicle.Date { return r.RecallDate },
		func(r vehicle.RecallRecord) string { return r.RecallNumber + "|" + string(r.RecallStatus) },
	)
}

func latestTheft(ts []vehicle.TheftRecord) (vehicle.TheftRecord, bool) {
	return latest(ts,
		func(t vehicle.TheftRecord) *vehicle.Date { return t.ReportedDate },
		func(t vehicle.TheftRecord) string { return t.CrimeReference + "|" + string(t.CurrentStatus) },
	)
}

func latestClaim(cs []vehicle.InsuranceClaim) (vehicle.InsuranceClaim, bool) {
	return latest(cs,
		func(c vehicle.InsuranceClaim) *vehicle.Date { return c.ClaimDate },
		func(c vehicle.InsuranceClaim) string { return c.ClaimType + "|" + strconv.FormatBool(c.TotalLoss) },
	)
}

func latestFinance(fs []vehicle.FinanceRecord) (vehicle.FinanceRecord, bool) {
	return latest(fs,
		func(f vehicle.FinanceRecord) *vehicle.Date { return f.StartDate },
		func(f vehicle.FinanceRecord) string { return f.FinanceCompany + "|" + strconv.FormatBool(f.OutstandingFinance) },
	)
}
