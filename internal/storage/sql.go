package storage

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions
(
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    start_time DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    iface      TEXT     NOT NULL,
    node       TEXT,
    location   TEXT,
    config     TEXT
);

CREATE TABLE IF NOT EXISTS readings
(
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER  NOT NULL REFERENCES sessions (id),
    timestamp  DATETIME NOT NULL,
    bssid      TEXT     NOT NULL,
    ssid       TEXT,
    signal_dbm REAL     NOT NULL,
    freq_mhz   INTEGER,
    channel    INTEGER
);`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_readings_session_time ON readings (session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_readings_ssid ON readings (ssid);`

	insertSessionSQL = `
INSERT INTO sessions (start_time,
                      iface,
                      node,
                      location,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    iface,
    node,
    location,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    iface,
    node,
    location,
    config
FROM sessions
ORDER BY start_time`

	insertReadingSQL = `
INSERT INTO readings (session_id,
                      timestamp,
                      bssid,
                      ssid,
                      signal_dbm,
                      freq_mhz,
                      channel)
VALUES `

	selectReadingsSQL = `
SELECT
    timestamp,
    bssid,
    ssid,
    signal_dbm,
    freq_mhz,
    channel
FROM readings
WHERE
    session_id = ?
ORDER BY timestamp, id`

	selectReadingsRangeSQL = `
SELECT
    timestamp,
    bssid,
    ssid,
    signal_dbm,
    freq_mhz,
    channel
FROM readings
WHERE
    session_id = ?
    AND timestamp BETWEEN ? AND ?
ORDER BY timestamp, id`

	selectReadingsFromSQL = `
SELECT
    timestamp,
    bssid,
    ssid,
    signal_dbm,
    freq_mhz,
    channel
FROM readings
WHERE
    session_id = ?
    AND timestamp >= ?
ORDER BY timestamp, id`

	selectReadingsToSQL = `
SELECT
    timestamp,
    bssid,
    ssid,
    signal_dbm,
    freq_mhz,
    channel
FROM readings
WHERE
    session_id = ?
    AND timestamp <= ?
ORDER BY timestamp, id`
)
