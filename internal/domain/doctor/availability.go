package doctor

import (
	"fmt"
	"sort"
	"time"
)

// Window is a recurring weekly working interval in the doctor's timezone.
// Start and End use the 24h "HH:MM" format.
type Window struct {
	Weekday time.Weekday `json:"weekday"`
	Start   string       `json:"start"`
	End     string       `json:"end"`
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidAvailability, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (w Window) minutes() (int, int, error) {
	if w.Weekday < time.Sunday || w.Weekday > time.Saturday {
		return 0, 0, fmt.Errorf("%w: weekday %d", ErrInvalidAvailability, w.Weekday)
	}
	start, err := parseClock(w.Start)
	if err != nil {
		return 0, 0, err
	}
	end, err := parseClock(w.End)
	if err != nil {
		return 0, 0, err
	}
	if start >= end {
		return 0, 0, fmt.Errorf("%w: %s-%s ends before it starts", ErrInvalidAvailability, w.Start, w.End)
	}
	return start, end, nil
}

// ValidateWindows checks every window and rejects overlaps on the same weekday.
func ValidateWindows(windows []Window) error {
	type span struct{ start, end int }
	byDay := make(map[time.Weekday][]span)

	for _, w := range windows {
		start, end, err := w.minutes()
		if err != nil {
			return err
		}
		byDay[w.Weekday] = append(byDay[w.Weekday], span{start, end})
	}

	for _, spans := range byDay {
		sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
		for i := 1; i < len(spans); i++ {
			if spans[i].start < spans[i-1].end {
				return ErrOverlappingWindows
			}
		}
	}
	return nil
}

// TimeLocation resolves the doctor's timezone, falling back to UTC.
func (d *Doctor) TimeLocation() *time.Location {
	if d.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// windowsOn returns the concrete intervals of the doctor's availability on
// the calendar day containing day (interpreted in the doctor's timezone).
func (d *Doctor) windowsOn(day time.Time) []Interval {
	loc := d.TimeLocation()
	local := day.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	var out []Interval
	for _, w := range d.Availability {
		if w.Weekday != midnight.Weekday() {
			continue
		}
		start, end, err := w.minutes()
		if err != nil {
			continue
		}
		out = append(out, Interval{
			Start: midnight.Add(time.Duration(start) * time.Minute),
			End:   midnight.Add(time.Duration(end) * time.Minute),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// IsAvailable reports whether [start, start+duration) fits entirely inside
// one availability window. A doctor without any windows accepts any time.
func (d *Doctor) IsAvailable(start time.Time, duration time.Duration) bool {
	if len(d.Availability) == 0 {
		return true
	}
	want := Interval{Start: start, End: start.Add(duration)}
	for _, w := range d.windowsOn(start) {
		if !want.Start.Before(w.Start) && !want.End.After(w.End) {
			return true
		}
	}
	return false
}

// AvailableSlots splits the windows of the given day into slots of the
// doctor's slot length and drops those that are in the past or overlap busy.
func (d *Doctor) AvailableSlots(day time.Time, busy []Interval, now time.Time) []Interval {
	length := d.SlotLength()
	slots := make([]Interval, 0)

	for _, w := range d.windowsOn(day) {
		for start := w.Start; !start.Add(length).After(w.End); start = start.Add(length) {
			slot := Interval{Start: start, End: start.Add(length)}
			if !slot.Start.After(now) {
				continue
			}
			taken := false
			for _, b := range busy {
				if slot.Overlaps(b) {
					taken = true
					break
				}
			}
			if !taken {
				slots = append(slots, slot)
			}
		}
	}
	return slots
}
