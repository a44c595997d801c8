package dispatch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/ShayCichocki/armtask/internal/logging"
)

// HaltFileName is the signal file that stops all executions while present.
const HaltFileName = "halt"

// HaltSwitch is an operator stop backed by a file in the signals directory.
// Any process sharing the directory can engage or release it.
type HaltSwitch struct {
	path string
	log  logrus.FieldLogger

	mu      sync.RWMutex
	engaged bool

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// NewHaltSwitch watches signalsDir, creating it if needed.
// If the watcher cannot start, Engaged checks the file on every call instead.
func NewHaltSwitch(signalsDir string, log logrus.FieldLogger) (*HaltSwitch, error) {
	if err := os.MkdirAll(signalsDir, 0755); err != nil {
		return nil, fmt.Errorf("create signals directory: %w", err)
	}

	h := &HaltSwitch{
		path: filepath.Join(signalsDir, HaltFileName),
		log:  logging.OrNop(log),
		done: make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		h.log.WithError(err).Warn("halt watcher unavailable, polling signal file")
		h.statSignal()
		return h, nil
	}
	if err := watcher.Add(signalsDir); err != nil {
		watcher.Close()
		h.log.WithError(err).Warn("halt watcher unavailable, polling signal file")
		h.statSignal()
		return h, nil
	}
	h.watcher = watcher
	// Read the initial state only once the watch is in place so no change is lost.
	h.statSignal()

	go h.watch()

	return h, nil
}

func (h *HaltSwitch) watch() {
	for {
		select {
		case <-h.done:
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != HaltFileName {
				continue
			}
			// Events can trail an Engage or Release from this process,
			// so each one re-reads the file instead of trusting its op.
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				h.statSignal()
			}
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			// Events may have been dropped; resync from the file.
			h.log.WithError(err).Debug("halt watcher error")
			h.statSignal()
		}
	}
}

func (h *HaltSwitch) set(engaged bool) {
	h.mu.Lock()
	changed := h.engaged != engaged
	h.engaged = engaged
	h.mu.Unlock()

	if changed {
		h.log.WithField("engaged", engaged).Warn("halt switch changed")
	}
}

// Engaged reports whether executions are currently halted.
// A nil switch is never engaged.
func (h *HaltSwitch) Engaged() bool {
	if h == nil {
		return false
	}
	if h.watcher == nil {
		h.statSignal()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.engaged
}

// statSignal reads the switch state from the signal file itself.
func (h *HaltSwitch) statSignal() {
	_, err := os.Stat(h.path)
	switch {
	case err == nil:
		h.set(true)
	case errors.Is(err, os.ErrNotExist):
		h.set(false)
	}
}

// Engage writes the signal file with the reason and time.
func (h *HaltSwitch) Engage(reason string) error {
	content := fmt.Sprintf("%s %s\n", time.Now().UTC().Format(time.RFC3339), reason)
	if err := os.WriteFile(h.path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write halt signal: %w", err)
	}
	h.set(true)
	return nil
}

// Release removes the signal file. Releasing an idle switch is not an error.
func (h *HaltSwitch) Release() error {
	if err := os.Remove(h.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove halt signal: %w", err)
	}
	h.set(false)
	return nil
}

// Path returns the signal file location.
func (h *HaltSwitch) Path() string {
	return h.path
}

// Close stops the watcher.
func (h *HaltSwitch) Close() error {
	var err error
	h.closeOnce.Do(func() {
		close(h.done)
		if h.watcher != nil {
			err = h.watcher.Close()
		}
	})
	return err
}
