/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package questions

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Store persists a List to a JSON file.
type Store struct {
	path string
	log  zerolog.Logger
}

func NewStore(path string, log zerolog.Logger) *Store {
	return &Store{path: path, log: log}
}

// DefaultPath is the questions file inside the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}

	return filepath.Join(dir, "blindboard", StorageKey+".json"), nil
}

// Load reads the saved list. A missing file is an empty list; so is an
// unreadable or corrupt one, which is logged rather than returned.
func (s *Store) Load() *List {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &List{}
	}
	if err != nil {
		s.log.Error().Err(err).Str("path", s.path).Msg("Error loading saved questions")
		return &List{}
	}

	var items []Question
	if err := json.Unmarshal(data, &items); err != nil {
		s.log.Error().Err(err).Str("path", s.path).Msg("Error loading saved questions")
		return &List{}
	}

	return NewList(items)
}

// Save writes the list, replacing the previous file atomically.
func (s *Store) Save(l *List) error {
	items := l.Items()
	if items == nil {
		items = []Question{}
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".questions-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write questions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write questions: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}

	return nil
}

// Remove deletes the saved file, as clearing all questions does.
func (s *Store) Remove() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", s.path, err)
	}

	return nil
}
