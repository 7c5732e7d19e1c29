package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SessionInfo describes the logging run a SqliteStore belongs to.
// The session row is created lazily on first append.
type SessionInfo struct {
	Iface    string
	Node     string
	Location string
	Config   any // Optional run configuration. Can be string, []byte, or JSON-serializable object
}

// SqliteStore appends readings to a SQLite database, one session row per
// logging run and one readings row per observation. Batches are inserted
// within a single transaction, so Flush is a no-op.
type SqliteStore struct {
	dbPath string
	info   SessionInfo

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	sessionID   int64
	sessionOnce sync.Once
	sessionErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a new store writing to the database at dbPath.
// The schema is initialized on first use.
func NewSqliteStore(dbPath string, info SessionInfo) *SqliteStore {
	return &SqliteStore{dbPath: dbPath, info: info}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getSession(ctx context.Context) (int64, error) {
	s.sessionOnce.Do(func() {
		s.sessionID, s.sessionErr = s.createSession(ctx)
	})

	return s.sessionID, s.sessionErr
}

func (s *SqliteStore) createSession(ctx context.Context) (sessionID int64, err error) {
	var configData sql.NullString

	if s.info.Config != nil {
		switch v := s.info.Config.(type) {
		case string:
			configData.Valid = true
			configData.String = v

		case []byte:
			configData.Valid = true
			configData.String = string(v)

		default:
			var p []byte
			if p, err = json.Marshal(v); err != nil {
				err = fmt.Errorf("marshaling config: %w", err)
				return
			}

			configData.Valid = true
			configData.String = string(p)
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	node := sql.NullString{String: s.info.Node, Valid: s.info.Node != ""}
	location := sql.NullString{String: s.info.Location, Valid: s.info.Location != ""}

	result, err := stmt.ExecContext(ctx, s.info.Iface, node, location, configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

// Append stores a batch of readings in a single transaction
func (s *SqliteStore) Append(ctx context.Context, readings []Reading) (err error) {
	if len(readings) == 0 {
		return
	}

	sessionID, err := s.getSession(ctx)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	values := make([]any, 0, len(readings)*7)

	var sb strings.Builder
	sb.WriteString(insertReadingSQL)

	for i, r := range readings {
		data := toReadingData(sessionID, r)
		values = append(values,
			data.SessionID,
			data.Timestamp,
			data.BSSID,
			data.SSID,
			data.SignalDBM,
			data.FreqMHz,
			data.Channel,
		)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?)")
	}

	// Single batch insert
	if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting readings: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Flush is a no-op: every Append commits its own transaction
func (s *SqliteStore) Flush() error {
	return nil
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			s.closeErr = s.writeDB.Close()
			s.writeDB = nil
		}
	})

	return s.closeErr
}
