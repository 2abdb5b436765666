package storage

import (
	"errors"
	"time"
)

// ErrDuplicate is returned when a seeded vehicle collides with an existing
// VIN or VRM.
var ErrDuplicate = errors.New("vehicle already exists")

// InsightRow is one cached insight artifact. Payload is the serialized
// artifact; the store does not interpret it.
type InsightRow struct {
	VehicleID      int64
	SearchKey      string
	Payload        []byte
	Fingerprint    string
	GeneratedAt    time.Time
	ModelVersion   string
	HasIssues      bool
	NeedsAttention bool
	UpdatedAt      time.Time
}

// SearchResult is a lightweight vehicle match.
type SearchResult struct {
	ID            int64  `json:"id"`
	VIN           string `json:"vin"`
	VRM           string `json:"vrm"`
	Make          string `json:"make"`
	Model         string `json:"model"`
	Year          *int   `json:"year"`
	VehicleStatus string `json:"vehicle_status"`
}

// Stats summarizes table sizes for the status command.
type Stats struct {
	Vehicles int64 `json:"vehicles"`
	Insights int64 `json:"insights"`
}
