package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/vinsight/internal/vehicle"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// text selects a nullable text column as '' when NULL.
func text(col string) string {
	return "COALESCE(" + col + ", '')"
}

// dateCol reads DATE (postgres) and TEXT (sqlite) columns alike.
type dateCol struct{ v *vehicle.Date }

func (d *dateCol) Scan(src any) error {
	d.v = nil
	switch x := src.(type) {
	case nil:
		return nil
	case time.Time:
		v := vehicle.DateOf(x)
		d.v = &v
		return nil
	case string:
		return d.parse(x)
	case []byte:
		return d.parse(string(x))
	default:
		return fmt.Errorf("unsupported date value %T", src)
	}
}

func (d *dateCol) parse(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	v, err := vehicle.ParseDate(s)
	if err != nil {
		return err
	}
	d.v = &v
	return nil
}

// timeCol reads TIMESTAMPTZ (postgres) and RFC 3339 TEXT (sqlite) columns.
type timeCol struct{ v time.Time }

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999Z07:00", "2006-01-02 15:04:05"}

func (t *timeCol) Scan(src any) error {
	switch x := src.(type) {
	case nil:
		t.v = time.Time{}
		return nil
	case time.Time:
		t.v = x.UTC()
		return nil
	case string:
		return t.parse(x)
	case []byte:
		return t.parse(string(x))
	default:
		return fmt.Errorf("unsupported timestamp value %T", src)
	}
}

func (t *timeCol) parse(s string) error {
	for _, layout := range timeLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.v = v.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func boolPtr(n sql.NullBool) *bool {
	if !n.Valid {
		return nil
	}
	v := n.Bool
	return &v
}

// dateArg renders an optional date as an ISO string or NULL.
func dateArg(d *vehicle.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// nullIfEmpty stores empty text as NULL so the unique VIN/VRM indexes allow
// several vehicles without one.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func intArg(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatArg(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolArg(v *bool) any {
	if v == nil {
		return nil
	}
	return *v
}
