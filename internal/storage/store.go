package storage

import (
	"context"
	"time"
)

// Reading is a single timestamped access point observation, enriched with
// the reporting host tags. Written once, never mutated or deleted.
type Reading struct {
	Timestamp time.Time // Observation time, UTC
	Iface     string    // Interface the scan ran on
	Node      string    // Optional reporting host tag
	Location  string    // Optional location tag
	BSSID     string    // Access point hardware address, lowercase
	SSID      string    // Network name, empty for hidden networks
	SignalDBM float64   // Signal strength in dBm
	FreqMHz   int       // Center frequency in MHz
	Channel   int       // Channel number, 0 when unknown
}

// Store provides an interface for appending scan readings to durable
// storage. Implementations are append-only and expect a single writer.
type Store interface {
	// Append writes a batch of readings. The batch is staged as a unit
	// before it is written, so a failed append does not leave a partial
	// batch behind.
	Append(ctx context.Context, readings []Reading) error

	// Flush pushes buffered rows to durable storage. The sampler calls
	// this on its configured flush cadence.
	Flush() error

	// Close flushes and releases the underlying resources. It is safe
	// to call Close multiple times.
	Close() error
}
