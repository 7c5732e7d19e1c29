package storage

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testReading(ts time.Time, ssid string, signal float64) Reading {
	return Reading{
		Timestamp: ts,
		Iface:     "wlan0",
		Node:      "node1",
		Location:  "kitchen",
		BSSID:     "12:34:56:78:9a:bc",
		SSID:      ssid,
		SignalDBM: signal,
		FreqMHz:   2412,
		Channel:   1,
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open log file: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse log file: %v", err)
	}
	return records
}

func TestCSVStore_HeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rssi.csv")
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store, err := NewCSVStore(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err = store.Append(context.Background(), []Reading{
		testReading(ts, "HomeNet", -50),
		testReading(ts, "Neighbor", -70),
	}); err != nil {
		t.Fatalf("Failed to append readings: %v", err)
	}
	if err = store.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	// Re-running against a populated file only appends, never a second header
	store, err = NewCSVStore(path)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	if err = store.Append(context.Background(), []Reading{testReading(ts.Add(time.Second), "HomeNet", -51)}); err != nil {
		t.Fatalf("Failed to append after reopen: %v", err)
	}
	if err = store.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	records := readCSV(t, path)
	if len(records) != 4 {
		t.Fatalf("Expected 1 header + 3 data rows, got %d rows", len(records))
	}

	for i, col := range Header {
		if records[0][i] != col {
			t.Errorf("Header column %d: expected %q, got %q", i, col, records[0][i])
		}
	}
	for i, row := range records[1:] {
		if row[0] == Header[0] {
			t.Errorf("Data row %d looks like a duplicated header", i+1)
		}
	}
}

func TestCSVStore_RowFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rssi.csv")
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Add(500 * time.Millisecond)

	store, err := NewCSVStore(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err = store.Append(context.Background(), []Reading{testReading(ts, "HomeNet", -50.5)}); err != nil {
		t.Fatalf("Failed to append reading: %v", err)
	}
	if err = store.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	records := readCSV(t, path)
	if len(records) != 2 {
		t.Fatalf("Expected header + 1 row, got %d rows", len(records))
	}

	want := []string{
		"2025-06-01T12:00:00.500Z",
		"wlan0",
		"node1",
		"kitchen",
		"12:34:56:78:9a:bc",
		"HomeNet",
		"-50.5",
		"2412",
		"1",
	}
	row := records[1]
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("Column %s: expected %q, got %q", Header[i], want[i], row[i])
		}
	}

	if _, err = ParseTimestamp(row[0]); err != nil {
		t.Errorf("Timestamp column does not round-trip: %v", err)
	}
}

func TestCSVStore_OptionalColumnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rssi.csv")

	r := Reading{
		Timestamp: time.Now(),
		Iface:     "wlan0",
		BSSID:     "aa:bb:cc:dd:ee:ff",
		SignalDBM: -80,
	}

	store, err := NewCSVStore(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err = store.Append(context.Background(), []Reading{r}); err != nil {
		t.Fatalf("Failed to append reading: %v", err)
	}
	if err = store.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	row := readCSV(t, path)[1]
	for _, i := range []int{2, 3, 5, 7, 8} { // node, location, ssid, freq_mhz, channel
		if row[i] != "" {
			t.Errorf("Column %s: expected empty, got %q", Header[i], row[i])
		}
	}
}

func TestCSVStore_EmptyAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rssi.csv")

	store, err := NewCSVStore(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err = store.Append(context.Background(), nil); err != nil {
		t.Errorf("Append(nil) returned error: %v", err)
	}
	if err = store.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	if records := readCSV(t, path); len(records) != 1 {
		t.Errorf("Expected header only, got %d rows", len(records))
	}
}

func TestCSVStore_FlushMakesRowsVisible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rssi.csv")

	store, err := NewCSVStore(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if err = store.Append(context.Background(), []Reading{testReading(time.Now(), "HomeNet", -50)}); err != nil {
		t.Fatalf("Failed to append reading: %v", err)
	}
	if err = store.Flush(); err != nil {
		t.Fatalf("Failed to flush store: %v", err)
	}

	if records := readCSV(t, path); len(records) != 2 {
		t.Errorf("Expected header + 1 row after flush, got %d rows", len(records))
	}
}

func TestCSVStore_AppendBuffersWholeBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rssi.csv")

	store, err := NewCSVStore(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	headerSize, err := store.Size()
	if err != nil {
		t.Fatalf("Failed to stat store: %v", err)
	}

	if err = store.Append(context.Background(), []Reading{
		testReading(time.Now(), "HomeNet", -50),
		testReading(time.Now(), "Neighbor", -70),
	}); err != nil {
		t.Fatalf("Failed to append readings: %v", err)
	}

	// The batch sits in the store buffer until Flush, nothing hits the file
	if size, _ := store.Size(); size != headerSize {
		t.Errorf("Expected no file growth before flush, got %d bytes over header", size-headerSize)
	}

	if err = store.Flush(); err != nil {
		t.Fatalf("Failed to flush store: %v", err)
	}
	if records := readCSV(t, path); len(records) != 3 {
		t.Errorf("Expected header + full batch after flush, got %d rows", len(records))
	}
}

func TestCSVStore_ParentMustExist(t *testing.T) {
	if _, err := NewCSVStore(filepath.Join(t.TempDir(), "missing", "rssi.csv")); err == nil {
		t.Error("Expected error for missing parent directory")
	}
}
