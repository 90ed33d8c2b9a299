// Package history persists completed call records. The log is capped at the
// most recent records; older rows are pruned on save so the store never grows
// unbounded. Backends: PostgreSQL, SQLite, and an in-memory store for tests
// and zero-config runs.
package history

import (
	"context"
	"errors"
	"time"
)

// MaxRecords caps the call history. Saving record number MaxRecords+1 prunes
// the oldest.
const MaxRecords = 50

// defaultHourlyRate is the loaded hourly cost used to annualize wasted hours
// when the record does not carry its own rate.
const defaultHourlyRate = 50.0

// ErrNotFound is returned when a record ID does not exist.
var ErrNotFound = errors.New("history: record not found")

// CostBreakdown quantifies what the prospect's current process costs them.
// AnnualCost is derived, not entered; see Compute.
type CostBreakdown struct {
	MonthlySpend    float64 `json:"monthlySpend"`
	HoursWastedWeek float64 `json:"hoursWastedPerWeek"`
	HourlyRate      float64 `json:"hourlyRate,omitempty"`
	AnnualCost      float64 `json:"annualCost"`

	// LegacyToolCost carries the old per-seat figure from records imported
	// from earlier exports. Zero on new records.
	LegacyToolCost float64 `json:"legacyToolCost,omitempty"`
}

// Compute fills AnnualCost from the entered figures: twelve months of spend
// plus a year of wasted hours at the hourly rate.
func (c *CostBreakdown) Compute() {
	rate := c.HourlyRate
	if rate <= 0 {
		rate = defaultHourlyRate
	}
	c.AnnualCost = c.MonthlySpend*12 + c.HoursWastedWeek*52*rate
}

// Record is one completed (or abandoned) call.
type Record struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"createdAt"`
	Prospect  string            `json:"prospect"`
	Company   string            `json:"company,omitempty"`
	Outcome   string            `json:"outcome"`
	FinalStep string            `json:"finalStep"`
	Answers   map[string]string `json:"answers"`
	Cost      *CostBreakdown    `json:"cost,omitempty"`
}

// Store persists call records. Implementations must be safe for concurrent
// use.
type Store interface {
	// Save persists a record, assigning ID and CreatedAt when unset, and
	// prunes rows beyond MaxRecords, oldest first.
	Save(ctx context.Context, rec *Record) error

	// List returns all records, newest first.
	List(ctx context.Context) ([]Record, error)

	// Delete removes a record by ID. Returns ErrNotFound when absent.
	Delete(ctx context.Context, id string) error

	// Ping verifies the backend is reachable, for readiness checks.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
