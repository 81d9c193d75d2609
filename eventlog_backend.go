// eventlog_backend.go: Persistence backends for the Aegis event logger
//
// Backend selection is driven by the configured log path: SQLite for
// database extensions, plain files otherwise. The file backend writes
// either traditional line records or JSONL depending on the log format.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package aegis

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/agilira/go-errors"
	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

// eventBackend is the storage contract for persisted events. Backends are
// driven from the event logger under its lock and need no locking of
// their own.
type eventBackend interface {
	Write(events []Event) error
	Close() error
}

// newEventBackend selects a backend from the log path extension.
func newEventBackend(path string, format LogFormat, renderLine func(Event) string) (eventBackend, error) {
	switch filepath.Ext(path) {
	case ".db", ".sqlite", ".sqlite3":
		return newSQLiteEventBackend(path)
	default:
		return newFileEventBackend(path, format, renderLine)
	}
}

// fileEventBackend appends events to a log file, one record per line.
type fileEventBackend struct {
	file       *os.File
	format     LogFormat
	renderLine func(Event) string
}

func newFileEventBackend(path string, format LogFormat, renderLine func(Event) string) (*fileEventBackend, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, errors.Wrap(err, ErrCodeIOError, "failed to create log directory").
				WithContext("path", path)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 -- log path is operator-configured
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to open log file").
			WithContext("path", path)
	}
	return &fileEventBackend{file: file, format: format, renderLine: renderLine}, nil
}

func (b *fileEventBackend) Write(events []Event) error {
	for _, ev := range events {
		var line []byte
		if b.format == FormatJSON {
			data, err := json.Marshal(ev)
			if err != nil {
				return errors.Wrap(err, ErrCodeIOError, "failed to encode event")
			}
			line = data
		} else {
			line = []byte(b.renderLine(ev))
		}
		line = append(line, '\n')
		if _, err := b.file.Write(line); err != nil {
			return errors.Wrap(err, ErrCodeIOError, "failed to write event").
				WithContext("path", b.file.Name())
		}
	}
	return b.file.Sync()
}

func (b *fileEventBackend) Close() error {
	return b.file.Close()
}

// sqliteEventBackend stores events in a SQLite database for queryable
// audit trails without external infrastructure.
type sqliteEventBackend struct {
	db   *sql.DB
	path string
}

const sqliteEventSchema = `
CREATE TABLE IF NOT EXISTS events (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	priority  INTEGER NOT NULL,
	code      TEXT,
	message   TEXT NOT NULL,
	host      TEXT,
	source    TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_priority ON events(priority);
`

func newSQLiteEventBackend(path string) (*sqliteEventBackend, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, errors.Wrap(err, ErrCodeIOError, "failed to create log directory").
				WithContext("path", path)
		}
	}

	// WAL keeps readers (audit queries) from blocking the writer.
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to open event database").
			WithContext("path", path)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteEventSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to initialize event schema").
			WithContext("path", path)
	}

	return &sqliteEventBackend{db: db, path: path}, nil
}

func (b *sqliteEventBackend) Write(events []Event) error {
	tx, err := b.db.Begin()
	if err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to begin event transaction")
	}

	stmt, err := tx.Prepare(
		"INSERT INTO events (timestamp, priority, code, message, host, source) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, ErrCodeIOError, "failed to prepare event insert")
	}
	defer func() { _ = stmt.Close() }()

	for _, ev := range events {
		if _, err := stmt.Exec(ev.Timestamp, int(ev.Priority), ev.Code, ev.Message, ev.Host, ev.Source); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, ErrCodeIOError, "failed to insert event").
				WithContext("path", b.path)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to commit events")
	}
	return nil
}

func (b *sqliteEventBackend) Close() error {
	return b.db.Close()
}
