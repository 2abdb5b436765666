package vehicle

import (
	"encoding/json"
	"strings"
)

// normalizeEnum lowercases s and folds spaces and hyphens into underscores so
// that "Not Completed", "not-completed" and "NOT_COMPLETED" compare equal.
func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func unmarshalEnum[T ~string](data []byte, parse func(string) T, dst *T) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*dst = parse(s)
	return nil
}

// EventType classifies a history event.
type EventType string

const (
	EventMOT          EventType = "MOT"
	EventService      EventType = "SERVICE"
	EventRepair       EventType = "REPAIR"
	EventRegistration EventType = "REGISTRATION"
	EventInspection   EventType = "INSPECTION"
	EventOther        EventType = "OTHER"
)

func ParseEventType(s string) EventType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MOT", "MOT_TEST", "MOT TEST":
		return EventMOT
	case "SERVICE":
		return EventService
	case "REPAIR":
		return EventRepair
	case "REGISTRATION":
		return EventRegistration
	case "INSPECTION":
		return EventInspection
	default:
		return EventOther
	}
}

func (e *EventType) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, ParseEventType, e)
}

// TestOutcome is the pass/fail result attached to an inspection-type event.
type TestOutcome string

const (
	OutcomePass TestOutcome = "PASS"
	OutcomeFail TestOutcome = "FAIL"
	OutcomeNone TestOutcome = ""
)

func ParseTestOutcome(s string) TestOutcome {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PASS", "PASSED":
		return OutcomePass
	case "FAIL", "FAILED":
		return OutcomeFail
	default:
		return OutcomeNone
	}
}

func (o *TestOutcome) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, ParseTestOutcome, o)
}

// RecallStatus is the remedy state of a manufacturer recall.
type RecallStatus string

const (
	RecallOpen          RecallStatus = "open"
	RecallOutstanding   RecallStatus = "outstanding"
	RecallNotCompleted  RecallStatus = "not_completed"
	RecallCompleted     RecallStatus = "completed"
	RecallNotApplicable RecallStatus = "not_applicable"
	RecallUnknown       RecallStatus = "unknown"
)

func ParseRecallStatus(s string) RecallStatus {
	switch normalizeEnum(s) {
	case "open":
		return RecallOpen
	case "outstanding":
		return RecallOutstanding
	case "not_completed", "incomplete":
		return RecallNotCompleted
	case "completed", "closed", "remedied", "remedy_completed":
		return RecallCompleted
	case "not_applicable", "n/a":
		return RecallNotApplicable
	default:
		return RecallUnknown
	}
}

// Unresolved reports whether the recall still needs remedy work.
func (s RecallStatus) Unresolved() bool {
	switch s {
	case RecallOpen, RecallOutstanding, RecallNotCompleted:
		return true
	case RecallCompleted, RecallNotApplicable, RecallUnknown:
		return false
	}
	return false
}

func (s *RecallStatus) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, ParseRecallStatus, s)
}

// TheftStatus is the current police-register state of a theft record.
type TheftStatus string

const (
	TheftStolen    TheftStatus = "stolen"
	TheftRecovered TheftStatus = "recovered"
	TheftCleared   TheftStatus = "cleared"
	TheftUnknown   TheftStatus = "unknown"
)

func ParseTheftStatus(s string) TheftStatus {
	switch normalizeEnum(s) {
	case "stolen", "reported_stolen":
		return TheftStolen
	case "recovered":
		return TheftRecovered
	case "cleared", "removed":
		return TheftCleared
	default:
		return TheftUnknown
	}
}

func (s *TheftStatus) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, ParseTheftStatus, s)
}

// OwnershipChangeType describes how a vehicle changed keeper.
type OwnershipChangeType string

const (
	ChangeFirstRegistration OwnershipChangeType = "first_registration"
	ChangePrivateSale       OwnershipChangeType = "private_sale"
	ChangeDealerSale        OwnershipChangeType = "dealer_sale"
	ChangeTransfer          OwnershipChangeType = "transfer"
	ChangeImport            OwnershipChangeType = "import"
	ChangeExport            OwnershipChangeType = "export"
	ChangeScrapped          OwnershipChangeType = "scrapped"
	ChangeUnknown           OwnershipChangeType = "unknown"
)

func ParseOwnershipChangeType(s string) OwnershipChangeType {
	switch normalizeEnum(s) {
	case "first_registration", "new":
		return ChangeFirstRegistration
	case "private_sale", "private":
		return ChangePrivateSale
	case "dealer_sale", "trade_sale", "dealer":
		return ChangeDealerSale
	case "transfer", "keeper_change":
		return ChangeTransfer
	case "import", "imported":
		return ChangeImport
	case "export", "exported":
		return ChangeExport
	case "scrapped", "destroyed":
		return ChangeScrapped
	default:
		return ChangeUnknown
	}
}

func (c *OwnershipChangeType) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, ParseOwnershipChangeType, c)
}
