package storage

import (
	"database/sql"
	"time"
)

// Session represents one logging run against the SQLite backend.
// Each session captures the interface and host tags the run was started with.
type Session struct {
	ID        int64     `json:"id"`                 // Unique identifier for the session
	StartTime time.Time `json:"startTime"`          // When the logging run began
	Iface     string    `json:"iface"`              // Wireless interface sampled
	Node      *string   `json:"node,omitempty"`     // Optional reporting host tag
	Location  *string   `json:"location,omitempty"` // Optional location tag
	Config    *string   `json:"config,omitempty"`   // Optional run configuration in JSON format
}

type sessionData struct {
	ID        int64
	StartTime time.Time
	Iface     string
	Node      sql.NullString
	Location  sql.NullString
	Config    sql.NullString
}

type readingData struct {
	SessionID int64
	Timestamp time.Time
	BSSID     string
	SSID      sql.NullString
	SignalDBM float64
	FreqMHz   sql.NullInt64
	Channel   sql.NullInt64
}

func toReadingData(sessionID int64, r Reading) readingData {
	var ssid sql.NullString
	if r.SSID != "" {
		ssid.String = r.SSID
		ssid.Valid = true
	}

	var freq sql.NullInt64
	if r.FreqMHz > 0 {
		freq.Int64 = int64(r.FreqMHz)
		freq.Valid = true
	}

	var channel sql.NullInt64
	if r.Channel > 0 {
		channel.Int64 = int64(r.Channel)
		channel.Valid = true
	}

	return readingData{
		SessionID: sessionID,
		Timestamp: r.Timestamp.UTC(),
		BSSID:     r.BSSID,
		SSID:      ssid,
		SignalDBM: r.SignalDBM,
		FreqMHz:   freq,
		Channel:   channel,
	}
}

func toSession(d sessionData) *Session {
	s := Session{
		ID:        d.ID,
		StartTime: d.StartTime,
		Iface:     d.Iface,
	}
	if d.Node.Valid {
		s.Node = &d.Node.String
	}
	if d.Location.Valid {
		s.Location = &d.Location.String
	}
	if d.Config.Valid {
		s.Config = &d.Config.String
	}
	return &s
}
