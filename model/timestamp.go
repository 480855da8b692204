package model

import "time"

// Timestamp is a signed count of milliseconds since the Unix epoch, as
// carried inside a signed Item and copied into the `item` table's
// unix_utc_ms column for chronological indexing.
type Timestamp struct {
	UnixUTCMillis int64
}

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return Timestamp{UnixUTCMillis: time.Now().UnixMilli()}
}

// Before reports whether t is strictly earlier than o.
func (t Timestamp) Before(o Timestamp) bool {
	return t.UnixUTCMillis < o.UnixUTCMillis
}

// After reports whether t is strictly later than o.
func (t Timestamp) After(o Timestamp) bool {
	return t.UnixUTCMillis > o.UnixUTCMillis
}

// Time converts the Timestamp to a time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.UnixMilli(t.UnixUTCMillis).UTC()
}
