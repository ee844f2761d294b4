// Package backend picks the data source the dashboard reads from.
package backend

import (
	"context"
	"time"

	"studydash/internal/sources"
)

// Backend is the set of ports one data source provides. Optional ports are
// nil when the source cannot serve them.
type Backend struct {
	Payments sources.PaymentLister
	Students sources.StudentLister

	// Periods is the backend's own month roll-up (api only).
	Periods sources.PeriodReader

	// Writers accept CSV imports (sqlite and memory).
	PaymentWriter sources.PaymentWriter
	StudentWriter sources.StudentWriter

	// Snapshots stores computed dashboards (sqlite only).
	Snapshots sources.SnapshotStore
}

// Writable reports whether imports can be stored.
func (b Backend) Writable() bool {
	return b.PaymentWriter != nil && b.StudentWriter != nil
}

// CleanupFunc releases backend resources
type CleanupFunc func() error

type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds what backend creation needs
type Config struct {
	Type BackendType

	// api
	APIBaseURL  string
	APIToken    string
	APIPageSize int
	APITimeout  time.Duration

	// sqlite
	SQLiteDBPath string

	// memory
	DataDirectory string
}

type BackendType string

const (
	APIBackend    BackendType = "api"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case APIBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Shared reports whether other processes see what this backend stores. The
// memory backend keeps imports inside the process that received them.
func (bt BackendType) Shared() bool {
	return bt == APIBackend || bt == SQLiteBackend
}
