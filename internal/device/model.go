package device

import "time"

// Device is an anonymous client-side scan-credit counter. It is not owned
// by any identity; claims only record the last granting identity on the
// identity side.
type Device struct {
	DeviceID       string
	Stars          int64
	LastActiveDate string // calendar day in the service timezone, "2006-01-02"
	CreatedAt      time.Time
}

// ScanEntry is an immutable audit record appended for every successful scan.
type ScanEntry struct {
	ID        string
	DeviceID  string
	TargetID  string
	Score     int64
	CreatedAt time.Time
}
