// reload.go: Policy file reload watcher for Aegis
//
// Polling-based watcher for the policy-settings file: portable across
// operating systems, with stat caching to keep the idle cost down. On a
// detected change a fresh evaluation context is built and the policy
// re-applied; the swap is handed to the embedder's callback so exactly
// one execution context ever applies settings (single-writer discipline).
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package aegis

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/agilira/go-errors"
)

// ReloadCallback receives the freshly built context after a successful
// re-application of the policy file. The receiver owns the context and
// is responsible for closing it once retired.
type ReloadCallback func(ctx *EvalContext)

// ReloadConfig configures the policy reload watcher.
type ReloadConfig struct {
	// PollInterval is how often the policy file is checked for changes.
	// Default: 5 seconds.
	PollInterval time.Duration

	// Options seed each rebuilt evaluation context.
	Options Options

	// ErrorHandler is called when a reload fails; the previous context
	// stays in service. If nil, failures are reported on stderr.
	ErrorHandler func(err error, path string)
}

// ReloadWatcher re-applies a policy file whenever it changes.
type ReloadWatcher struct {
	config   ReloadConfig
	path     string
	callback ReloadCallback

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}

	lastModTime time.Time
	lastSize    int64
}

// NewReloadWatcher creates a watcher for the given policy file.
func NewReloadWatcher(path string, config ReloadConfig, callback ReloadCallback) (*ReloadWatcher, error) {
	if callback == nil {
		return nil, errors.New(ErrCodeInvalidConfig, "callback cannot be nil")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	return &ReloadWatcher{
		config:   config,
		path:     path,
		callback: callback,
	}, nil
}

// Start begins polling. The current file state is loaded immediately so
// the first poll does not trigger a spurious reload.
func (w *ReloadWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New(ErrCodeInvalidConfig, "reload watcher is already running")
	}

	if fi, err := os.Stat(w.path); err == nil {
		w.lastModTime = fi.ModTime()
		w.lastSize = fi.Size()
	}

	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	w.running = true
	go w.pollLoop(w.stopCh, w.done)
	return nil
}

// Stop halts polling and waits for the poll goroutine to exit.
func (w *ReloadWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return errors.New(ErrCodeInvalidConfig, "reload watcher is not running")
	}
	w.running = false
	close(w.stopCh)
	done := w.done
	w.mu.Unlock()

	<-done
	return nil
}

func (w *ReloadWatcher) pollLoop(stopCh, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.poll()
		case <-stopCh:
			return
		}
	}
}

// poll stats the policy file and reloads on any visible change.
func (w *ReloadWatcher) poll() {
	fi, err := os.Stat(w.path)
	if err != nil {
		// Deleted or unreadable; keep the current context in service.
		return
	}
	if fi.ModTime().Equal(w.lastModTime) && fi.Size() == w.lastSize {
		return
	}
	w.lastModTime = fi.ModTime()
	w.lastSize = fi.Size()
	w.reload()
}

// reload builds a fresh context and applies the policy file to it. The
// old context is untouched on failure.
func (w *ReloadWatcher) reload() {
	ctx := NewEvalContext(w.config.Options)
	if err := ctx.ApplyFile(w.path); err != nil {
		_ = ctx.Close()
		if w.config.ErrorHandler != nil {
			w.config.ErrorHandler(err, w.path)
		} else {
			fmt.Fprintf(os.Stderr, "aegis: policy reload failed for %s: %v\n", w.path, err)
		}
		return
	}
	w.callback(ctx)
}
