/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package archive keeps an optional SQLite record of every relayed question
// and word, for exporting after a presentation.
package archive

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store persists questions and the words submitted while each was current.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	current sql.NullInt64
}

type Word struct {
	Text       string    `json:"text" yaml:"text"`
	ReceivedAt time.Time `json:"received_at" yaml:"received_at"`
}

// Session is one question and its responses. Words received before any
// question was asked are grouped under a session with an empty question.
type Session struct {
	Question string    `json:"question" yaml:"question"`
	AskedAt  time.Time `json:"asked_at,omitzero" yaml:"asked_at,omitempty"`
	Words    []Word    `json:"words" yaml:"words"`
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Open opens (creating if needed) the archive at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("archive path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	dsn := "file:" + cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return err
	}

	// m.Close would close db as well, so only the source is released here.
	defer src.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordQuestion stores a question; later words are attached to it.
func (s *Store) RecordQuestion(ctx context.Context, text string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO questions (text, asked_at) VALUES (?, ?)`, text, toMillis(at))
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}

	s.current = sql.NullInt64{Int64: id, Valid: true}

	return nil
}

// RecordWord stores a word against the most recently recorded question.
func (s *Store) RecordWord(ctx context.Context, text string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO words (question_id, text, received_at) VALUES (?, ?, ?)`,
		s.current, text, toMillis(at)); err != nil {
		return fmt.Errorf("insert word: %w", err)
	}

	return nil
}

// Sessions returns every archived question, oldest first, with its words.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	orphans, err := s.orphanWords(ctx)
	if err != nil {
		return nil, err
	}

	var sessions []Session
	if len(orphans) > 0 {
		sessions = append(sessions, Session{Words: orphans})
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT q.id, q.text, q.asked_at, w.text, w.received_at
FROM questions q
LEFT JOIN words w ON w.question_id = q.id
ORDER BY q.id, w.id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var lastID int64 = -1

	for rows.Next() {
		var (
			id       int64
			question string
			askedAt  int64
			word     sql.NullString
			received sql.NullInt64
		)
		if err := rows.Scan(&id, &question, &askedAt, &word, &received); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}

		if id != lastID {
			sessions = append(sessions, Session{
				Question: question,
				AskedAt:  fromMillis(askedAt),
				Words:    []Word{},
			})
			lastID = id
		}

		if word.Valid {
			cur := &sessions[len(sessions)-1]
			cur.Words = append(cur.Words, Word{Text: word.String, ReceivedAt: fromMillis(received.Int64)})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}

	return sessions, nil
}

func (s *Store) orphanWords(ctx context.Context) ([]Word, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT text, received_at FROM words WHERE question_id IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query words: %w", err)
	}
	defer rows.Close()

	var words []Word
	for rows.Next() {
		var (
			text     string
			received int64
		)
		if err := rows.Scan(&text, &received); err != nil {
			return nil, fmt.Errorf("scan word: %w", err)
		}
		words = append(words, Word{Text: text, ReceivedAt: fromMillis(received)})
	}

	return words, rows.Err()
}
