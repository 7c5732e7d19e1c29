package wifi

import (
	"context"
	"errors"
	"time"
)

// ErrScanTimeout is returned when a scan exceeded its deadline and the
// underlying command had to be killed.
var ErrScanTimeout = errors.New("scan timed out")

// Record represents a single access point reading from one scan
type Record struct {
	BSSID     string  // Hardware (MAC) address, lowercase
	SSID      string  // Network name, empty for hidden networks
	SignalDBM float64 // Signal strength in dBm
	FreqMHz   int     // Center frequency in MHz
	Channel   int     // Wi-Fi channel number, 0 when the frequency has no mapping
}

// ScanResult represents the outcome of one scan invocation
type ScanResult struct {
	Timestamp time.Time     // When the scan started, UTC
	Duration  time.Duration // How long the scan took
	Iface     string        // Wireless interface the scan ran on
	Records   []Record      // Zero or more access point readings
}

// Scanner interface defines the methods required for acquiring readings.
// Implementations shell out to the platform scanning tool; tests use a fake.
type Scanner interface {
	// Scan performs a full discovery scan across all channels
	Scan(ctx context.Context) (*ScanResult, error)

	// ScanFrequencies performs a narrow scan limited to the given
	// frequencies in MHz
	ScanFrequencies(ctx context.Context, freqsMHz []int) (*ScanResult, error)
}

// ChannelFromFreq maps a center frequency in MHz to a Wi-Fi channel number.
// 2.4 GHz channels follow 2412 + 5*(ch-1) for channels 1..14, 5 GHz channels
// follow 5000 + 5*ch. Returns 0 for frequencies outside both mappings.
func ChannelFromFreq(freqMHz int) int {
	if freqMHz >= 2400 && freqMHz < 2500 {
		if ch := divRound(freqMHz-2412, 5) + 1; ch >= 1 && ch <= 14 {
			return ch
		}
		return 0
	}
	if freqMHz >= 4900 && freqMHz <= 5900 {
		if ch := divRound(freqMHz-5000, 5); ch > 0 && ch < 200 {
			return ch
		}
		return 0
	}
	return 0
}

// divRound divides a by b rounding to the nearest integer. Plain integer
// division truncates toward zero and mis-rounds negative offsets.
func divRound(a, b int) int {
	if a < 0 {
		return (a - b/2) / b
	}
	return (a + b/2) / b
}
