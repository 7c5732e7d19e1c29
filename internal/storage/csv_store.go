package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// TimestampLayout is the wire format of the timestamp_utc column:
// UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// writeBufferSize is the user-space buffer in front of the file.
// A large buffer reduces write amplification on SD cards.
const writeBufferSize = 1 << 20

// Header is the CSV column schema. It is written exactly once, when the
// output file is created or empty, and is stable for the lifetime of the file.
var Header = []string{
	"timestamp_utc",
	"iface",
	"node",
	"location",
	"bssid",
	"ssid",
	"signal_dbm",
	"freq_mhz",
	"channel",
}

// CSVStore appends readings to an append-only CSV file. Rows accumulate in
// a user-space buffer; Flush drains the buffer and forces them to durable
// storage. A single writer is assumed.
type CSVStore struct {
	mu sync.Mutex
	f  *os.File
	bw *bufio.Writer

	closeOnce sync.Once
	closeErr  error
}

// NewCSVStore opens path for appending, creating it if needed, and writes
// the header row when the file is empty. The parent directory must exist.
func NewCSVStore(path string) (*CSVStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}

	s := &CSVStore{f: f, bw: bufio.NewWriterSize(f, writeBufferSize)}

	if stat.Size() == 0 {
		row, err := encodeRows([][]string{Header})
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("encoding header: %w", err)
		}
		if _, err = s.bw.Write(row); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("writing header: %w", err)
		}
		if err = s.Flush(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("flushing header: %w", err)
		}
	}

	return s, nil
}

// encodeRows renders CSV rows into memory, where writes cannot fail
func encodeRows(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Append writes one row per reading into the store buffer. The batch is
// staged in memory first, so a failed append leaves no partial batch behind.
func (s *CSVStore) Append(ctx context.Context, readings []Reading) error {
	if len(readings) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rows := make([][]string, len(readings))
	for i, r := range readings {
		rows[i] = r.Row()
	}
	batch, err := encodeRows(rows)
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err = s.bw.Write(batch); err != nil {
		return fmt.Errorf("appending batch: %w", err)
	}
	return nil
}

// Flush drains the write buffer and fsyncs the file
func (s *CSVStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.flushLocked()
}

func (s *CSVStore) flushLocked() error {
	if err := s.bw.Flush(); err != nil {
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("syncing log file: %w", err)
	}
	return nil
}

// Size returns the current size of the log file in bytes, including any
// content written by previous runs
func (s *CSVStore) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stat, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

func (s *CSVStore) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		flushErr := s.flushLocked()
		closeErr := s.f.Close()

		switch {
		case flushErr != nil && closeErr != nil:
			s.closeErr = errors.Join(flushErr, closeErr)
		case flushErr != nil:
			s.closeErr = flushErr
		case closeErr != nil:
			s.closeErr = closeErr
		}
	})

	return s.closeErr
}

// Row formats the reading as one CSV row matching Header
func (r Reading) Row() []string {
	var channel string
	if r.Channel > 0 {
		channel = strconv.Itoa(r.Channel)
	}

	var freq string
	if r.FreqMHz > 0 {
		freq = strconv.Itoa(r.FreqMHz)
	}

	return []string{
		r.Timestamp.UTC().Format(TimestampLayout),
		r.Iface,
		r.Node,
		r.Location,
		r.BSSID,
		r.SSID,
		strconv.FormatFloat(r.SignalDBM, 'f', -1, 64),
		freq,
		channel,
	}
}

// ParseTimestamp parses a timestamp_utc column value
func ParseTimestamp(v string) (time.Time, error) {
	return time.Parse(TimestampLayout, v)
}
