// Package model defines shared data types for the APIS viewer.
//
// Types mirror the APIS server's units API: unit IDs are opaque strings,
// statuses are the server's status vocabulary, timestamps are time.Time.
package model
