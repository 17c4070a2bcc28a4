package model

import "time"

// UnitStatus is the reported status of a detection unit.
type UnitStatus string

const (
	UnitOnline  UnitStatus = "online"
	UnitOffline UnitStatus = "offline"
	UnitPending UnitStatus = "pending"
	UnitUnknown UnitStatus = "unknown"
)

// Streamable returns true if the unit can serve a live stream.
// Any status other than online short-circuits to a static display.
func (s UnitStatus) Streamable() bool {
	return s == UnitOnline
}

// Unit represents an APIS detection unit registered with the server.
type Unit struct {
	ID              string     `json:"id"`
	Serial          string     `json:"serial"`
	Name            string     `json:"name,omitempty"`
	SiteName        string     `json:"site_name,omitempty"`
	Status          UnitStatus `json:"status"`
	IPAddress       string     `json:"ip_address,omitempty"`
	FirmwareVersion string     `json:"firmware_version,omitempty"`
	LastSeen        *time.Time `json:"last_seen,omitempty"`
}

// DisplayName returns the unit's name, falling back to its serial.
func (u Unit) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Serial
}
