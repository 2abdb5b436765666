package narrative

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kalambet/vinsight/internal/vehicle"
)

// Fallback builds a templated artifact purely from the vehicle's basic
// attributes. It is used whenever the generator cannot produce one.
func Fallback(agg *vehicle.Aggregate, now time.Time) Artifact {
	b := agg.Basic

	year := "Unknown"
	if b.Year != nil {
		year = strconv.Itoa(*b.Year)
	}
	engineSize := "Unknown"
	if b.EngineSize != nil {
		engineSize = strconv.FormatFloat(*b.EngineSize, 'f', -1, 64)
	}

	a := Artifact{
		Summary: fmt.Sprintf("This is a %s %s %s. We encountered an issue generating detailed insights, "+
			"but the basic vehicle information is available below.",
			year, orDefault(b.Make, "Unknown"), orDefault(b.Model, "Unknown")),
		KeyInsights: StringList{
			"Vehicle information has been retrieved from official records",
			"Detailed AI analysis is temporarily unavailable",
			"All technical data and history records are still accessible",
		},
		OwnerAdvice: "Please refer to the detailed vehicle data below for specific information about your vehicle.",
		ReliabilityAssessment: Reliability{
			Explanation: "Unable to generate reliability assessment at this time",
		},
		ValueAssessment: ValueAssessment{
			CurrentMarketPosition: "Valuation data available in detailed information",
			FactorsAffectingValue: "Age, mileage, condition, and service history",
		},
		AttentionItems: StringList{"Check detailed data for MOT and tax due dates"},
		CostInsights: CostInsights{
			TypicalMaintenance: "Refer to service history for maintenance patterns",
			InsuranceNotes:     "Insurance group: " + orDefault(b.InsuranceGroup, "Not available"),
			FuelEfficiency:     "Fuel type: " + orDefault(b.FuelType, "Not specified"),
		},
		TechnicalHighlights: StringList{
			fmt.Sprintf("Engine: %sL %s", engineSize, orDefault(b.FuelType, "Unknown")),
			"Transmission: " + orDefault(b.Transmission, "Unknown"),
			"Body type: " + orDefault(b.BodyType, "Unknown"),
		},
		GeneratedAt:  now.UTC(),
		ModelVersion: FallbackModelVersion,
		Error:        true,
		ErrorKind:    KindGeneratorUnavailable,
	}
	return a
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
