package sampler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/wifi-surveillance/internal/storage"
	"github.com/roman-kulish/wifi-surveillance/internal/wifi"
)

const (
	// initialBackoff and maxBackoff bound the sleep after a failed scan.
	// Backoff resets on the first successful scan.
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second

	// fullScanMinTimeout is the floor for full discovery scans, which need
	// more airtime than a narrow scan on cached frequencies
	fullScanMinTimeout = 4500 * time.Millisecond
)

// WithLogger sets the logger for the sampler
func WithLogger(logger *slog.Logger) func(*Sampler) {
	return func(s *Sampler) {
		s.logger = logger.With(slog.String("iface", s.iface))
	}
}

// WithTargets limits written readings to the given SSIDs or BSSIDs.
// SSID matching is case-sensitive exact; BSSID targets must be lowercase
// colon-separated MAC addresses. An empty list disables filtering.
func WithTargets(targets []string) func(*Sampler) {
	return func(s *Sampler) {
		for _, t := range targets {
			if t != "" {
				s.targets[t] = struct{}{}
			}
		}
	}
}

// WithTags sets the node and location tags stamped onto every reading
func WithTags(node, location string) func(*Sampler) {
	return func(s *Sampler) {
		s.node = node
		s.location = location
	}
}

// WithFullScanInterval sets the cadence of unfiltered full discovery scans.
// Zero disables the periodic full scan.
func WithFullScanInterval(d time.Duration) func(*Sampler) {
	return func(s *Sampler) {
		s.fullScanEvery = d
	}
}

// WithFlushEvery forces readings to durable storage only every n iterations.
// Rows may sit in the store buffer for up to n intervals and are lost on
// power failure; the default of 1 flushes every iteration.
func WithFlushEvery(n int) func(*Sampler) {
	return func(s *Sampler) {
		if n > 0 {
			s.flushEvery = n
		}
	}
}

// Sampler drives periodic acquisition and persistence of scan readings.
// One scan runs at a time; the loop never terminates on scan or write
// failures, only on context cancellation.
type Sampler struct {
	scanner wifi.Scanner
	store   storage.Store
	logger  *slog.Logger

	iface    string
	interval time.Duration
	timeout  time.Duration

	targets       map[string]struct{}
	node          string
	location      string
	fullScanEvery time.Duration
	flushEvery    int

	// Target frequency caches, rebuilt on every full discovery and
	// refreshed opportunistically from narrow scan results
	ssidFreqs map[string]map[int]struct{}
	bssidFreq map[string]int
	lastFull  time.Time

	iterations  int
	rowsWritten int64
	backoff     time.Duration
}

// New creates a new Sampler with a discard logger
func New(scanner wifi.Scanner, store storage.Store, iface string, interval, timeout time.Duration, options ...func(*Sampler)) *Sampler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	s := Sampler{
		scanner:    scanner,
		store:      store,
		logger:     logger,
		iface:      iface,
		interval:   interval,
		timeout:    timeout,
		targets:    make(map[string]struct{}),
		flushEvery: 1,
		ssidFreqs:  make(map[string]map[int]struct{}),
		bssidFreq:  make(map[string]int),
		backoff:    initialBackoff,
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Run loops until ctx is cancelled: scan, filter, stamp, append, sleep the
// remainder of the interval. A failed scan logs a warning and delays the
// next attempt by an exponential backoff; it never terminates the loop.
func (s *Sampler) Run(ctx context.Context) error {
	s.logger.Info("starting sampling loop",
		slog.Duration("interval", s.interval),
		slog.Duration("timeout", s.timeout),
		slog.Int("targets", len(s.targets)))

	next := time.Now()
	for {
		if ctx.Err() != nil {
			break
		}

		next = next.Add(s.interval)

		if err := s.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break // in-flight scan abandoned on shutdown
			}

			s.logger.Warn(fmt.Sprintf("scan failed: %s", err.Error()),
				slog.Duration("backoff", s.backoff))

			if !sleepContext(ctx, s.backoff) {
				break
			}
			s.backoff = min(s.backoff*2, maxBackoff)
		} else {
			s.backoff = initialBackoff
		}

		// Sleep whatever is left of the interval. An overrun proceeds
		// immediately to the next iteration.
		if delay := time.Until(next); delay > 0 {
			if !sleepContext(ctx, delay) {
				break
			}
		}
	}

	s.logger.Info("sampling loop stopped",
		slog.String("rowsWritten", humanize.Comma(s.rowsWritten)))
	return nil
}

// runOnce performs a single scan/filter/append cycle. The returned error
// covers acquisition only; write failures are logged and swallowed here so
// they do not trigger the scan backoff.
func (s *Sampler) runOnce(ctx context.Context) error {
	result, unfiltered, err := s.scan(ctx)
	if err != nil {
		return err
	}

	records := result.Records
	if !unfiltered {
		records = s.filter(records)
	}

	readings := make([]storage.Reading, len(records))
	for i, r := range records {
		readings[i] = storage.Reading{
			Timestamp: result.Timestamp,
			Iface:     result.Iface,
			Node:      s.node,
			Location:  s.location,
			BSSID:     r.BSSID,
			SSID:      r.SSID,
			SignalDBM: r.SignalDBM,
			FreqMHz:   r.FreqMHz,
			Channel:   r.Channel,
		}
	}

	if err = s.store.Append(ctx, readings); err != nil {
		s.logger.Error(fmt.Sprintf("appending readings: %s", err.Error()),
			slog.Int("rows", len(readings)))
		return nil
	}
	s.rowsWritten += int64(len(readings))

	s.iterations++
	if s.iterations%s.flushEvery == 0 {
		if err = s.store.Flush(); err != nil {
			s.logger.Error(fmt.Sprintf("flushing store: %s", err.Error()))
		}
	}

	return nil
}

// scan picks the scan mode for this iteration. The second return value is
// true when the result is a periodic full discovery, which is written
// unfiltered regardless of the targets filter.
func (s *Sampler) scan(ctx context.Context) (*wifi.ScanResult, bool, error) {
	if s.fullScanEvery > 0 && time.Since(s.lastFull) >= s.fullScanEvery {
		result, err := s.fullDiscovery(ctx)
		return result, true, err
	}

	if len(s.targets) == 0 {
		result, err := s.fullDiscovery(ctx)
		return result, false, err
	}

	result, err := s.fastScan(ctx)
	return result, false, err
}

// fullDiscovery scans across all channels and rebuilds the target
// frequency caches from the result
func (s *Sampler) fullDiscovery(ctx context.Context) (*wifi.ScanResult, error) {
	ctx, cancel := context.WithTimeout(ctx, max(s.timeout, fullScanMinTimeout))
	defer cancel()

	result, err := s.scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}

	s.ssidFreqs = make(map[string]map[int]struct{})
	s.bssidFreq = make(map[string]int)
	s.mergeCaches(result.Records)
	s.lastFull = time.Now()

	s.logger.Debug("full discovery",
		slog.Int("visible", len(result.Records)),
		slog.Duration("took", result.Duration))
	return result, nil
}

// fastScan scans only the cached target frequencies. An empty cache, or a
// result in which no target is visible, falls back to one full discovery.
func (s *Sampler) fastScan(ctx context.Context) (*wifi.ScanResult, error) {
	freqs := s.targetFreqs()
	if len(freqs) == 0 {
		return s.fullDiscovery(ctx)
	}

	scanCtx, cancel := context.WithTimeout(ctx, s.timeout)
	result, err := s.scanner.ScanFrequencies(scanCtx, freqs)
	cancel()
	if err != nil {
		return nil, err
	}

	if !s.anyTargetVisible(result.Records) {
		return s.fullDiscovery(ctx)
	}

	s.mergeCaches(result.Records)
	return result, nil
}

func (s *Sampler) filter(records []wifi.Record) []wifi.Record {
	if len(s.targets) == 0 {
		return records
	}

	kept := records[:0]
	for _, r := range records {
		if s.wantRecord(r) {
			kept = append(kept, r)
		}
	}
	return kept
}

func (s *Sampler) wantRecord(r wifi.Record) bool {
	if _, ok := s.targets[r.SSID]; ok && r.SSID != "" {
		return true
	}
	_, ok := s.targets[r.BSSID]
	return ok
}

func (s *Sampler) anyTargetVisible(records []wifi.Record) bool {
	for _, r := range records {
		if s.wantRecord(r) {
			return true
		}
	}
	return false
}

func (s *Sampler) targetFreqs() []int {
	set := make(map[int]struct{})
	for t := range s.targets {
		for f := range s.ssidFreqs[t] {
			set[f] = struct{}{}
		}
		if f, ok := s.bssidFreq[t]; ok {
			set[f] = struct{}{}
		}
	}

	freqs := make([]int, 0, len(set))
	for f := range set {
		freqs = append(freqs, f)
	}
	slices.Sort(freqs)
	return freqs
}

func (s *Sampler) mergeCaches(records []wifi.Record) {
	for _, r := range records {
		if r.FreqMHz <= 0 {
			continue
		}
		if r.BSSID != "" {
			s.bssidFreq[r.BSSID] = r.FreqMHz
		}
		if r.SSID != "" {
			freqs, ok := s.ssidFreqs[r.SSID]
			if !ok {
				freqs = make(map[int]struct{})
				s.ssidFreqs[r.SSID] = freqs
			}
			freqs[r.FreqMHz] = struct{}{}
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
