package iw

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/roman-kulish/wifi-surveillance/internal/wifi"
)

// Scanner acquires access point readings by shelling out to `iw`.
// One scan command runs at a time; the caller bounds each invocation
// with a context deadline.
type Scanner struct {
	binPath string
	config  *Config
}

// New creates a new iw Scanner
func New(config *Config) (*Scanner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	binPath, err := FindRuntime(Runtime)
	if err != nil {
		return nil, fmt.Errorf("error finding runtime: %w", err)
	}

	return &Scanner{binPath, config}, nil
}

// Scan performs a full discovery scan across all channels
func (s *Scanner) Scan(ctx context.Context) (*wifi.ScanResult, error) {
	args, err := s.config.Args()
	if err != nil {
		return nil, err
	}
	return s.run(ctx, args)
}

// ScanFrequencies performs a narrow scan limited to the given frequencies
func (s *Scanner) ScanFrequencies(ctx context.Context, freqsMHz []int) (*wifi.ScanResult, error) {
	args, err := s.config.FreqArgs(freqsMHz)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, args)
}

func (s *Scanner) run(ctx context.Context, args []string) (*wifi.ScanResult, error) {
	started := time.Now()

	cmd := exec.CommandContext(ctx, s.binPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", wifi.ErrScanTimeout, time.Since(started).Round(time.Millisecond))
		}
		return nil, fmt.Errorf("%s exited with error: %w: %s", Runtime, err, strings.TrimSpace(stderr.String()))
	}

	records, err := Parse(&stdout)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s output: %w", Runtime, err)
	}

	return &wifi.ScanResult{
		Timestamp: started.UTC(),
		Duration:  time.Since(started),
		Iface:     s.config.Iface,
		Records:   records,
	}, nil
}
