package gcs

import "time"

// localTime converts a provider timestamp, always a UTC instant, to the
// representation the configured timezone settings ask for.
//
// With useTZ the instant is returned in zone, still a real instant. Without
// it the result is "naive": the zone's wall-clock reading rebuilt in
// time.UTC, since Go has no zone-less time. That keeps equality against
// time.Date literals deterministic regardless of the host timezone.
// The conversion is pure; it holds no state beyond its arguments.
func localTime(t time.Time, useTZ bool, zone *time.Location) time.Time {
	if useTZ {
		return t.In(zone)
	}

	lt := t.In(zone)

	return time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), lt.Minute(), lt.Second(), lt.Nanosecond(), time.UTC)
}
