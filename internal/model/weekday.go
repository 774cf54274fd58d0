package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Weekday is a closed day-of-week enum with a fixed ordinal mapping
// (Sunday=0 .. Saturday=6). All day-of-week arithmetic in the codebase
// goes through this type; nothing compares day names as raw strings.
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var weekdayNames = [...]string{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
}

func (d Weekday) Valid() bool { return d >= Sunday && d <= Saturday }

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// Std converts to the stdlib weekday; the ordinals are aligned on purpose.
func (d Weekday) Std() time.Weekday { return time.Weekday(d) }

// WeekdayOf converts from the stdlib weekday.
func WeekdayOf(wd time.Weekday) Weekday { return Weekday(wd) }

func ParseWeekday(s string) (Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range weekdayNames {
		if n == name || n[:3] == name {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

func (d Weekday) MarshalJSON() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid weekday %d", int(d))
	}
	return json.Marshal(d.String())
}

func (d *Weekday) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Legacy records stored ordinals.
		var n int
		if err2 := json.Unmarshal(b, &n); err2 != nil {
			return err
		}
		wd := Weekday(n)
		if !wd.Valid() {
			return fmt.Errorf("weekday ordinal %d out of range", n)
		}
		*d = wd
		return nil
	}
	wd, err := ParseWeekday(s)
	if err != nil {
		return err
	}
	*d = wd
	return nil
}

// NormalizeDays returns the set sorted by ordinal with duplicates and
// invalid values removed.
func NormalizeDays(days []Weekday) []Weekday {
	if len(days) == 0 {
		return nil
	}
	seen := map[Weekday]bool{}
	out := make([]Weekday, 0, len(days))
	for _, d := range days {
		if !d.Valid() || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if len(out) == 0 {
		return nil
	}
	return out
}
