package storage

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func testSessionInfo() SessionInfo {
	return SessionInfo{
		Iface:    "wlan0",
		Node:     "node1",
		Location: "kitchen",
		Config:   `{"interval":4}`,
	}
}

func mustCloseStore(t *testing.T, s *SqliteStore) {
	t.Helper()
	if err := s.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}
}

func mustReader(t *testing.T, path string) *Reader {
	t.Helper()
	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("Failed to open reader: %v", err)
	}
	t.Cleanup(func() { reader.Close() })
	return reader
}

func collectReadings(t *testing.T, iter *ReadingIterator) []Reading {
	t.Helper()
	defer iter.Close()

	var readings []Reading
	for iter.Next() {
		readings = append(readings, iter.Current())
	}
	if err := iter.Err(); err != nil {
		t.Fatalf("Iteration failed: %v", err)
	}
	return readings
}

func TestSqliteStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rssi.db")
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store := NewSqliteStore(path, testSessionInfo())
	batch := []Reading{
		testReading(ts, "HomeNet", -50),
		testReading(ts.Add(time.Second), "HomeNet", -51),
		testReading(ts.Add(2*time.Second), "Neighbor", -70),
	}
	if err := store.Append(context.Background(), batch); err != nil {
		t.Fatalf("Failed to append readings: %v", err)
	}
	mustCloseStore(t, store)

	reader := mustReader(t, path)

	sessions, err := reader.Sessions(context.Background())
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected exactly 1 session, got %d", len(sessions))
	}

	sess, err := reader.Session(context.Background(), sessions[0].ID)
	if err != nil {
		t.Fatalf("Failed to load session: %v", err)
	}
	if sess.Iface != "wlan0" {
		t.Errorf("Expected iface wlan0, got %q", sess.Iface)
	}
	if sess.Node == nil || *sess.Node != "node1" {
		t.Errorf("Expected node tag node1, got %v", sess.Node)
	}
	if sess.Location == nil || *sess.Location != "kitchen" {
		t.Errorf("Expected location tag kitchen, got %v", sess.Location)
	}
	if sess.Config == nil || *sess.Config != `{"interval":4}` {
		t.Errorf("Expected config snapshot, got %v", sess.Config)
	}

	iter, err := reader.Readings(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Failed to read session: %v", err)
	}
	readings := collectReadings(t, iter)
	if len(readings) != len(batch) {
		t.Fatalf("Expected %d readings, got %d", len(batch), len(readings))
	}

	for i, r := range readings {
		want := batch[i]
		if !r.Timestamp.Equal(want.Timestamp) {
			t.Errorf("Reading %d: expected timestamp %s, got %s", i, want.Timestamp, r.Timestamp)
		}
		if r.SSID != want.SSID || r.BSSID != want.BSSID || r.SignalDBM != want.SignalDBM {
			t.Errorf("Reading %d: expected %s/%s/%v, got %s/%s/%v",
				i, want.SSID, want.BSSID, want.SignalDBM, r.SSID, r.BSSID, r.SignalDBM)
		}
		if r.FreqMHz != want.FreqMHz || r.Channel != want.Channel {
			t.Errorf("Reading %d: expected freq/channel %d/%d, got %d/%d",
				i, want.FreqMHz, want.Channel, r.FreqMHz, r.Channel)
		}
		// Host tags come from the session row, not the readings table
		if r.Iface != "wlan0" || r.Node != "node1" || r.Location != "kitchen" {
			t.Errorf("Reading %d: expected session tags, got %q/%q/%q", i, r.Iface, r.Node, r.Location)
		}
	}
}

func TestSqliteStore_TimeBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rssi.db")
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store := NewSqliteStore(path, testSessionInfo())
	if err := store.Append(context.Background(), []Reading{
		testReading(ts, "HomeNet", -50),
		testReading(ts.Add(time.Minute), "HomeNet", -51),
		testReading(ts.Add(2*time.Minute), "HomeNet", -52),
	}); err != nil {
		t.Fatalf("Failed to append readings: %v", err)
	}
	mustCloseStore(t, store)

	reader := mustReader(t, path)
	sessions, err := reader.Sessions(context.Background())
	if err != nil || len(sessions) != 1 {
		t.Fatalf("Expected exactly 1 session, got %d (%v)", len(sessions), err)
	}
	id := sessions[0].ID

	testCases := []struct {
		name    string
		options []func(*ReadingIterator)
		signals []float64
	}{
		{"no bounds", nil, []float64{-50, -51, -52}},
		{"range keeps the middle", []func(*ReadingIterator){
			WithTimeRange(ts.Add(30*time.Second), ts.Add(90*time.Second)),
		}, []float64{-51}},
		{"start time inclusive", []func(*ReadingIterator){
			WithStartTime(ts.Add(time.Minute)),
		}, []float64{-51, -52}},
		{"end time inclusive", []func(*ReadingIterator){
			WithEndTime(ts.Add(time.Minute)),
		}, []float64{-50, -51}},
		{"empty window", []func(*ReadingIterator){
			WithTimeRange(ts.Add(3*time.Minute), ts.Add(4*time.Minute)),
		}, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			iter, err := reader.Readings(context.Background(), id, tc.options...)
			if err != nil {
				t.Fatalf("Failed to read session: %v", err)
			}
			readings := collectReadings(t, iter)
			if len(readings) != len(tc.signals) {
				t.Fatalf("Expected %d readings, got %d", len(tc.signals), len(readings))
			}
			for i, want := range tc.signals {
				if readings[i].SignalDBM != want {
					t.Errorf("Reading %d: expected signal %v, got %v", i, want, readings[i].SignalDBM)
				}
			}
		})
	}
}

func TestSqliteStore_LazySession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rssi.db")

	store := NewSqliteStore(path, testSessionInfo())
	if err := store.Append(context.Background(), nil); err != nil {
		t.Fatalf("Append(nil) returned error: %v", err)
	}
	mustCloseStore(t, store)

	// No append means no connection, no schema, no session row
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected no database before the first reading, stat: %v", err)
	}
}

func TestSqliteStore_OptionalFieldsNull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rssi.db")

	store := NewSqliteStore(path, SessionInfo{Iface: "wlan0"})
	if err := store.Append(context.Background(), []Reading{{
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Iface:     "wlan0",
		BSSID:     "aa:bb:cc:dd:ee:ff",
		SignalDBM: -80,
	}}); err != nil {
		t.Fatalf("Failed to append reading: %v", err)
	}
	mustCloseStore(t, store)

	reader := mustReader(t, path)
	sessions, err := reader.Sessions(context.Background())
	if err != nil || len(sessions) != 1 {
		t.Fatalf("Expected exactly 1 session, got %d (%v)", len(sessions), err)
	}
	if sessions[0].Node != nil || sessions[0].Location != nil {
		t.Errorf("Expected nil session tags, got %v/%v", sessions[0].Node, sessions[0].Location)
	}

	iter, err := reader.Readings(context.Background(), sessions[0].ID)
	if err != nil {
		t.Fatalf("Failed to read session: %v", err)
	}
	readings := collectReadings(t, iter)
	if len(readings) != 1 {
		t.Fatalf("Expected 1 reading, got %d", len(readings))
	}

	r := readings[0]
	if r.SSID != "" || r.FreqMHz != 0 || r.Channel != 0 {
		t.Errorf("Expected empty optional fields, got %q/%d/%d", r.SSID, r.FreqMHz, r.Channel)
	}
	if r.Node != "" || r.Location != "" {
		t.Errorf("Expected empty host tags, got %q/%q", r.Node, r.Location)
	}
}

func TestSqliteStore_ExportRowsMatchCSVSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rssi.db")
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store := NewSqliteStore(path, testSessionInfo())
	if err := store.Append(context.Background(), []Reading{testReading(ts, "HomeNet", -50.5)}); err != nil {
		t.Fatalf("Failed to append reading: %v", err)
	}
	mustCloseStore(t, store)

	reader := mustReader(t, path)
	sessions, err := reader.Sessions(context.Background())
	if err != nil || len(sessions) != 1 {
		t.Fatalf("Expected exactly 1 session, got %d (%v)", len(sessions), err)
	}

	iter, err := reader.Readings(context.Background(), sessions[0].ID)
	if err != nil {
		t.Fatalf("Failed to read session: %v", err)
	}
	readings := collectReadings(t, iter)
	if len(readings) != 1 {
		t.Fatalf("Expected 1 reading, got %d", len(readings))
	}

	// A row read back from SQLite renders exactly like a row logged to CSV
	want := []string{
		"2025-06-01T12:00:00.000Z",
		"wlan0",
		"node1",
		"kitchen",
		"12:34:56:78:9a:bc",
		"HomeNet",
		"-50.5",
		"2412",
		"1",
	}
	row := readings[0].Row()
	if len(row) != len(Header) {
		t.Fatalf("Expected %d columns, got %d", len(Header), len(row))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("Column %s: expected %q, got %q", Header[i], want[i], row[i])
		}
	}
}

func TestSqliteStore_AppendBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rssi.db")
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store := NewSqliteStore(path, testSessionInfo())
	var want int
	for i := 0; i < 3; i++ {
		batch := make([]Reading, 50)
		for j := range batch {
			batch[j] = testReading(ts.Add(time.Duration(want)*time.Second), "HomeNet", -50-float64(i))
			batch[j].BSSID = "12:34:56:78:9a:" + strconv.Itoa(10+j)
			want++
		}
		if err := store.Append(context.Background(), batch); err != nil {
			t.Fatalf("Failed to append batch %d: %v", i, err)
		}
	}
	mustCloseStore(t, store)

	reader := mustReader(t, path)
	sessions, err := reader.Sessions(context.Background())
	if err != nil || len(sessions) != 1 {
		t.Fatalf("Expected all batches in one session, got %d sessions (%v)", len(sessions), err)
	}

	iter, err := reader.Readings(context.Background(), sessions[0].ID)
	if err != nil {
		t.Fatalf("Failed to read session: %v", err)
	}
	if readings := collectReadings(t, iter); len(readings) != want {
		t.Errorf("Expected %d readings across batches, got %d", want, len(readings))
	}
}
