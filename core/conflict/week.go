package conflict

import "time"

// WeekBounds returns the ISO week containing at, from Monday 00:00 to the
// next Monday 00:00 in loc. A nil loc uses at's own location.
func WeekBounds(at time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc != nil {
		at = at.In(loc)
	}
	offset := (int(at.Weekday()) + 6) % 7 // Monday = 0
	y, m, d := at.Date()
	start := time.Date(y, m, d-offset, 0, 0, 0, 0, at.Location())
	return start, start.AddDate(0, 0, 7)
}

// WeekBoundsAt is WeekBounds in the detector's time zone.
func (d *Detector) WeekBoundsAt(at time.Time) (time.Time, time.Time) {
	return WeekBounds(at, d.loc)
}
