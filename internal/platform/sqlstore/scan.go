package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// timestampLayouts are the text forms a driver may hand back for a
// timestamp column. SQLite returns text when it cannot parse the value.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	dateLayout,
}

// dateArg renders a calendar date as a bind parameter.
func dateArg(date time.Time) string {
	return date.Format(dateLayout)
}

// timestampArg renders an instant as a bind parameter.
func timestampArg(t time.Time) time.Time {
	return t.UTC()
}

// timeValue scans a date or timestamp column regardless of whether the
// driver returns time.Time or text.
type timeValue struct {
	Time  time.Time
	Valid bool
}

func (v *timeValue) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		v.Time, v.Valid = time.Time{}, false
		return nil
	case time.Time:
		v.Time, v.Valid = s.UTC(), true
		return nil
	case string:
		return v.parse(s)
	case []byte:
		return v.parse(string(s))
	default:
		return fmt.Errorf("cannot scan %T into time value", src)
	}
}

func (v *timeValue) parse(s string) error {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			v.Time, v.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("cannot parse %q as time", s)
}

// date returns the calendar date of the value as UTC midnight.
func (v timeValue) date() time.Time {
	y, m, d := v.Time.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// datePtr returns nil for NULL and the calendar date otherwise.
func (v timeValue) datePtr() *time.Time {
	if !v.Valid {
		return nil
	}
	d := v.date()
	return &d
}

// nullableDateArg renders an optional date as a bind parameter.
func nullableDateArg(date *time.Time) any {
	if date == nil {
		return nil
	}
	return dateArg(*date)
}

// rowsAffected reports the number of rows an Exec touched.
func rowsAffected(result sql.Result) (int64, error) {
	if result == nil {
		return 0, errors.New("nil result")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
