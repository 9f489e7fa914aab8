// Package timeslot holds the time-of-day and interval arithmetic shared by
// booking allocation and availability projection.
package timeslot

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used on the wire and in storage.
const DateLayout = "2006-01-02"

// MaxMinutes is 24:00, the largest representable time of day (end of day).
const MaxMinutes = 24 * 60

var ErrInvalidTime = errors.New("invalid time of day")

// TimeOfDay counts minutes since midnight.
type TimeOfDay int

// At builds a TimeOfDay from hour and minute without validation.
func At(hour, minute int) TimeOfDay { return TimeOfDay(hour*60 + minute) }

// ParseTimeOfDay accepts HH:MM or HH:MM:SS. Seconds must be zero.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		if len(p) != 2 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		nums[i] = n
	}
	h, m := nums[0], nums[1]
	if m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	if len(nums) == 3 && nums[2] != 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return At(h, m), nil
}

// MustParse is ParseTimeOfDay for constants; it panics on bad input.
func MustParse(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Add returns t shifted by d minutes, unclamped.
func (t TimeOfDay) Add(minutes int) TimeOfDay { return t + TimeOfDay(minutes) }

// Valid reports whether t lies within [00:00, 24:00].
func (t TimeOfDay) Valid() bool { return t >= 0 && t <= MaxMinutes }

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute()) }

func (t TimeOfDay) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Value stores the time as a MySQL TIME literal.
func (t TimeOfDay) Value() (driver.Value, error) {
	return fmt.Sprintf("%02d:%02d:00", t.Hour(), t.Minute()), nil
}

// Scan reads a TIME column, which the MySQL driver returns as text.
func (t *TimeOfDay) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return t.scanString(string(v))
	case string:
		return t.scanString(v)
	case time.Time:
		*t = At(v.Hour(), v.Minute())
		return nil
	case nil:
		return errors.New("timeslot: cannot scan NULL into TimeOfDay")
	}
	return fmt.Errorf("timeslot: unsupported scan type %T", src)
}

func (t *TimeOfDay) scanString(s string) error {
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Overlaps is the half-open interval test: [s1,e1) and [s2,e2) conflict iff
// s1 < e2 and s2 < e1.
func Overlaps(s1, e1, s2, e2 TimeOfDay) bool {
	return s1 < e2 && s2 < e1
}

// Interval is a half-open [Start, End) range within one day.
type Interval struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

func (iv Interval) Overlaps(o Interval) bool { return Overlaps(iv.Start, iv.End, o.Start, o.End) }

// Minutes is End-Start; zero or negative for empty or reversed intervals.
func (iv Interval) Minutes() int { return int(iv.End - iv.Start) }

func (iv Interval) String() string { return iv.Start.String() + "-" + iv.End.String() }

// Hourly splits [from, to) into consecutive one-hour intervals. A trailing
// partial hour is dropped.
func Hourly(from, to TimeOfDay) []Interval {
	var out []Interval
	for s := from; s.Add(60) <= to; s = s.Add(60) {
		out = append(out, Interval{Start: s, End: s.Add(60)})
	}
	return out
}

// ParseDate parses a YYYY-MM-DD calendar day as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// FormatDate renders the calendar day of d.
func FormatDate(d time.Time) string { return d.Format(DateLayout) }
