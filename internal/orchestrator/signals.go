package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Signal file names understood by the watcher. Goal-scoped signals
// append "-<goal id>", where the id may be shortened to any unique
// prefix of an owned goal's id.
const (
	signalKill   = "kill"
	signalPause  = "pause"
	signalResume = "resume"
	signalCancel = "cancel"
)

// SignalWatcher applies file-based control signals to an orchestrator,
// so a second process can pause, resume, or cancel goals owned by a
// running one. Signals are plain files under <dataDir>/signals.
type SignalWatcher struct {
	signalsDir string
	orch       *Orchestrator

	mu         sync.RWMutex
	stopSignal bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewSignalWatcher creates the signals directory and starts watching
// it. When the platform watcher is unavailable signals still work
// through Poll and the stat fallback in ShouldStop.
func NewSignalWatcher(dataDir string, orch *Orchestrator) (*SignalWatcher, error) {
	signalsDir := filepath.Join(dataDir, "signals")
	if err := os.MkdirAll(signalsDir, 0755); err != nil {
		return nil, err
	}

	sw := &SignalWatcher{
		signalsDir: signalsDir,
		orch:       orch,
		done:       make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Continue without watcher - callers use the polling fallback
		return sw, nil
	}
	if err := watcher.Add(signalsDir); err != nil {
		watcher.Close()
		return sw, nil
	}
	sw.watcher = watcher

	go sw.watchSignals()
	return sw, nil
}

// watchSignals applies signal files as they appear.
func (sw *SignalWatcher) watchSignals() {
	for {
		select {
		case <-sw.done:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0 {
				sw.apply(filepath.Base(event.Name))
			}
		case <-sw.watcher.Errors:
			// Ignore errors, keep watching
		}
	}
}

// Poll applies any signal files already on disk, covering platforms
// without a watcher and signals written before startup.
func (sw *SignalWatcher) Poll() {
	entries, err := os.ReadDir(sw.signalsDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			sw.apply(entry.Name())
		}
	}
}

// apply interprets one signal file name. Goal signals that applied
// cleanly are consumed; the kill file stays until ClearSignals so
// every checker observes it.
func (sw *SignalWatcher) apply(name string) {
	if name == signalKill {
		sw.mu.Lock()
		sw.stopSignal = true
		sw.mu.Unlock()
		return
	}

	verb, id, ok := strings.Cut(name, "-")
	if !ok || id == "" {
		return
	}
	goalID, err := sw.orch.ResolveGoalID(id)
	if err != nil {
		return
	}

	switch verb {
	case signalPause:
		err = sw.orch.PauseGoal(goalID)
	case signalResume:
		err = sw.orch.ResumeGoal(goalID)
	case signalCancel:
		err = sw.orch.CancelGoal(goalID)
	default:
		return
	}
	if err == nil {
		os.Remove(filepath.Join(sw.signalsDir, name))
	}
}

// ShouldStop returns true once a kill signal has been received.
func (sw *SignalWatcher) ShouldStop() bool {
	// Also check the file directly in case the watcher missed it
	killPath := filepath.Join(sw.signalsDir, signalKill)
	if _, err := os.Stat(killPath); err == nil {
		sw.mu.Lock()
		sw.stopSignal = true
		sw.mu.Unlock()
	}

	sw.mu.RLock()
	defer sw.mu.RUnlock()
	return sw.stopSignal
}

// SendKill asks the owning process to shut down.
func (sw *SignalWatcher) SendKill() error {
	return sw.write(signalKill)
}

// SendPause asks the owning process to pause a goal.
func (sw *SignalWatcher) SendPause(goalID string) error {
	return sw.write(signalPause + "-" + goalID)
}

// SendResume asks the owning process to resume a paused goal.
func (sw *SignalWatcher) SendResume(goalID string) error {
	return sw.write(signalResume + "-" + goalID)
}

// SendCancel asks the owning process to cancel a goal.
func (sw *SignalWatcher) SendCancel(goalID string) error {
	return sw.write(signalCancel + "-" + goalID)
}

func (sw *SignalWatcher) write(name string) error {
	path := filepath.Join(sw.signalsDir, name)
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// ClearSignals removes all signal files and resets signal state.
func (sw *SignalWatcher) ClearSignals() {
	sw.mu.Lock()
	sw.stopSignal = false
	sw.mu.Unlock()

	entries, err := os.ReadDir(sw.signalsDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		os.Remove(filepath.Join(sw.signalsDir, entry.Name()))
	}
}

// Close shuts down the watcher.
func (sw *SignalWatcher) Close() {
	close(sw.done)
	if sw.watcher != nil {
		sw.watcher.Close()
	}
}
