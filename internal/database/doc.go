// Package database provides the PostgreSQL connection pool for the
// stream event recorder.
//
// The pool is optional: a viewer with recording disabled never connects.
package database
