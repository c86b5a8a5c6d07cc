/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package certwatch serves a TLS key pair and reloads it when the files change,
// so renewed certificates are picked up without a restart.
package certwatch

import (
	"crypto/tls"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const DefaultDebounce = 500 * time.Millisecond

type Reloader struct {
	certPath string
	keyPath  string
	debounce time.Duration
	log      zerolog.Logger

	mu   sync.RWMutex
	cert *tls.Certificate

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// New loads the key pair once; the files must be valid at startup.
func New(certPath, keyPath string, debounce time.Duration, log zerolog.Logger) (*Reloader, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	r := &Reloader{
		certPath: filepath.Clean(certPath),
		keyPath:  filepath.Clean(keyPath),
		debounce: debounce,
		log:      log,
		done:     make(chan struct{}),
	}

	if err := r.Reload(); err != nil {
		return nil, err
	}

	return r, nil
}

// Reload reads the key pair from disk. On failure the previous pair is kept.
func (r *Reloader) Reload() error {
	cert, err := tls.LoadX509KeyPair(r.certPath, r.keyPath)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}

	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()

	return nil
}

// GetCertificate satisfies tls.Config.GetCertificate.
func (r *Reloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.cert, nil
}

// TLSConfig returns a server config backed by the reloader.
func (r *Reloader) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: r.GetCertificate,
	}
}

// Start watches the directories holding the key pair. Directories rather than
// files are watched so that atomic replacements (rename over) are seen.
func (r *Reloader) Start() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	dirs := map[string]struct{}{
		filepath.Dir(r.certPath): {},
		filepath.Dir(r.keyPath):  {},
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return fmt.Errorf("watching directory %s: %w", dir, err)
		}
	}

	r.watcher = w

	go r.loop()

	return nil
}

func (r *Reloader) Stop() error {
	var err error

	r.stopOnce.Do(func() {
		close(r.done)
		if r.watcher != nil {
			err = r.watcher.Close()
		}
	})

	return err
}

func (r *Reloader) loop() {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if !r.isRelevant(event) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(r.debounce)
			} else {
				timer.Reset(r.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := r.Reload(); err != nil {
				r.log.Error().Err(err).Msg("SERVE: Keeping previous TLS certificate")
				continue
			}
			r.log.Info().Str("cert", r.certPath).Msg("SERVE: Reloaded TLS certificate")

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.log.Error().Err(err).Msg("SERVE: Certificate watcher error")

		case <-r.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (r *Reloader) isRelevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Clean(event.Name)

	return name == r.certPath || name == r.keyPath
}
