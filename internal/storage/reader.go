package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// WithStartTime limits iteration to readings at or after startTime
func WithStartTime(startTime time.Time) func(*ReadingIterator) {
	return func(i *ReadingIterator) {
		i.startTime = &startTime
	}
}

// WithEndTime limits iteration to readings at or before endTime
func WithEndTime(endTime time.Time) func(*ReadingIterator) {
	return func(i *ReadingIterator) {
		i.endTime = &endTime
	}
}

// WithTimeRange limits iteration to readings within [startTime, endTime]
func WithTimeRange(startTime, endTime time.Time) func(*ReadingIterator) {
	return func(i *ReadingIterator) {
		i.startTime = &startTime
		i.endTime = &endTime
	}
}

// Reader provides read-only access to a SQLite readings database
type Reader struct {
	db *sql.DB
}

// NewReader opens the database at dbPath in read-only mode
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &Reader{db}, nil
}

// Session retrieves a specific logging session by its ID
func (r *Reader) Session(ctx context.Context, id int64) (session *Session, err error) {
	stmt, err := r.db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var data sessionData
	if err = stmt.QueryRowContext(ctx, id).Scan(&data.ID, &data.StartTime, &data.Iface, &data.Node, &data.Location, &data.Config); err != nil {
		err = fmt.Errorf("scanning session: %w", err)
		return
	}

	return toSession(data), nil
}

// Sessions returns all logging sessions ordered by start time
func (r *Reader) Sessions(ctx context.Context) (sessions []*Session, err error) {
	rows, err := r.db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var data sessionData
		if err = rows.Scan(&data.ID, &data.StartTime, &data.Iface, &data.Node, &data.Location, &data.Config); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		sessions = append(sessions, toSession(data))
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating sessions: %w", err)
	}
	return
}

// Readings retrieves an iterator over the readings of the given session,
// ordered by timestamp, using optional configuration functions. The
// returned iterator must be closed after use.
func (r *Reader) Readings(ctx context.Context, sessionID int64, options ...func(*ReadingIterator)) (*ReadingIterator, error) {
	iter := &ReadingIterator{
		db:        r.db,
		sessionID: sessionID,
	}
	for _, option := range options {
		option(iter)
	}

	return iter, iter.init(ctx)
}

// Close releases the underlying database connection
func (r *Reader) Close() error {
	return r.db.Close()
}

// ReadingIterator provides sequential access to the readings of one session.
// It is not safe for concurrent use.
type ReadingIterator struct {
	db        *sql.DB
	sessionID int64
	session   *Session
	startTime *time.Time
	endTime   *time.Time

	rows    *sql.Rows
	current Reading
	err     error
}

func (it *ReadingIterator) init(ctx context.Context) error {
	if err := it.initSession(ctx); err != nil {
		return fmt.Errorf("loading session data: %w", err)
	}
	if err := it.initQuery(ctx); err != nil {
		return fmt.Errorf("setting up query: %w", err)
	}
	return nil
}

func (it *ReadingIterator) initSession(ctx context.Context) (err error) {
	stmt, err := it.db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return err
	}
	defer closeWithError(stmt, &err)

	var data sessionData
	if err = stmt.QueryRowContext(ctx, it.sessionID).Scan(&data.ID, &data.StartTime, &data.Iface, &data.Node, &data.Location, &data.Config); err != nil {
		return err
	}

	it.session = toSession(data)
	return nil
}

func (it *ReadingIterator) initQuery(ctx context.Context) (err error) {
	// Timestamps are stored in UTC; bounds are normalized to UTC so the
	// comparison works on the stored representation
	query := selectReadingsSQL
	args := []any{it.sessionID}
	if it.startTime != nil && it.endTime != nil {
		query = selectReadingsRangeSQL
		args = append(args, it.startTime.UTC(), it.endTime.UTC())
	} else if it.startTime != nil {
		query = selectReadingsFromSQL
		args = append(args, it.startTime.UTC())
	} else if it.endTime != nil {
		query = selectReadingsToSQL
		args = append(args, it.endTime.UTC())
	}

	stmt, err := it.db.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer closeWithError(stmt, &err)

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return err
	}

	it.rows = rows
	return nil
}

// Session returns the session metadata the iterator was initialized with
func (it *ReadingIterator) Session() *Session {
	return it.session
}

// Next advances to the next reading
func (it *ReadingIterator) Next() bool {
	if it.err != nil || !it.rows.Next() {
		return false
	}

	var timestamp time.Time
	var bssid string
	var ssid sql.NullString
	var signal float64
	var freq, channel sql.NullInt64

	if err := it.rows.Scan(&timestamp, &bssid, &ssid, &signal, &freq, &channel); err != nil {
		it.err = err
		return false
	}

	r := Reading{
		Timestamp: timestamp.UTC(),
		Iface:     it.session.Iface,
		BSSID:     bssid,
		SSID:      ssid.String,
		SignalDBM: signal,
		FreqMHz:   int(freq.Int64),
		Channel:   int(channel.Int64),
	}
	if it.session.Node != nil {
		r.Node = *it.session.Node
	}
	if it.session.Location != nil {
		r.Location = *it.session.Location
	}

	it.current = r
	return true
}

// Current returns the reading the iterator is positioned at
func (it *ReadingIterator) Current() Reading {
	return it.current
}

// Err returns any error that occurred during iteration
func (it *ReadingIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.rows.Err()
}

// Close releases the database resources
func (it *ReadingIterator) Close() error {
	return it.rows.Close()
}
