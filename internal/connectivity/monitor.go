// Package connectivity turns host network state into the binary
// online/offline signal the sync runner consumes.
//
// Two inputs feed the signal:
//
//   - A periodic HTTP probe against a configured endpoint. No probe URL
//     means the monitor assumes it is online.
//   - An offline-override marker file. While the file exists the monitor
//     reports offline regardless of the probe - a manual "flight mode" used
//     by operators and tests. The file is watched with fsnotify so removing
//     it produces an immediate reconnect edge instead of waiting out the
//     probe interval.
package connectivity

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config holds monitor configuration.
type Config struct {
	// ProbeURL is the endpoint checked to decide online state. Empty means
	// assume online (minus the override file).
	ProbeURL string

	// ProbeInterval is how often to re-check. Defaults to 15s.
	ProbeInterval time.Duration

	// OverridePath is the offline marker file. Empty disables the override.
	OverridePath string

	// Logger for monitor activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ProbeInterval: 15 * time.Second,
		Logger:        log.New(os.Stderr, "[connectivity] ", log.LstdFlags),
	}
}

// Monitor implements syncer.Signal.
type Monitor struct {
	config  *Config
	client  *http.Client
	watcher *fsnotify.Watcher

	online  atomic.Bool
	started atomic.Bool
	changes chan bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Monitor. The initial state is computed synchronously so
// Online() is meaningful before Start.
func New(config *Config) (*Monitor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.ProbeInterval <= 0 {
		config.ProbeInterval = 15 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[connectivity] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Monitor{
		config:  config,
		client:  &http.Client{Timeout: 5 * time.Second},
		changes: make(chan bool, 16),
		ctx:     ctx,
		cancel:  cancel,
	}
	m.online.Store(m.probe())
	return m, nil
}

// Online implements syncer.Signal.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Changes implements syncer.Signal. Transitions are edge-triggered: one
// value per state change, true on reconnect.
func (m *Monitor) Changes() <-chan bool {
	return m.changes
}

// Start launches the probe loop and, when an override path is configured,
// the file watcher.
func (m *Monitor) Start() error {
	if !m.started.CompareAndSwap(false, true) {
		return nil
	}

	if m.config.OverridePath != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		m.watcher = watcher

		// Watch the parent directory: the marker file itself may not exist yet.
		dir := filepath.Dir(m.config.OverridePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		if err := watcher.Add(dir); err != nil {
			return err
		}

		m.wg.Add(1)
		go m.watchOverride()
	}

	m.wg.Add(1)
	go m.probeLoop()
	return nil
}

// Stop shuts the monitor down.
func (m *Monitor) Stop() {
	m.cancel()
	if m.watcher != nil {
		_ = m.watcher.Close()
	}
	m.wg.Wait()
}

func (m *Monitor) probeLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.set(m.probe())
		}
	}
}

func (m *Monitor) watchOverride() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if event.Name != m.config.OverridePath {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			m.set(m.probe())

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// probe computes the current state: override file wins, then the HTTP check.
func (m *Monitor) probe() bool {
	if m.config.OverridePath != "" {
		if _, err := os.Stat(m.config.OverridePath); err == nil {
			return false
		}
	}

	if m.config.ProbeURL == "" {
		return true
	}

	req, err := http.NewRequestWithContext(m.ctx, http.MethodHead, m.config.ProbeURL, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < 500
}

// set records a state and emits an edge event on transitions.
func (m *Monitor) set(online bool) {
	if m.online.Swap(online) == online {
		return
	}

	if online {
		m.config.Logger.Println("Connectivity restored")
	} else {
		m.config.Logger.Println("Connectivity lost")
	}

	select {
	case m.changes <- online:
	default:
		m.config.Logger.Println("Warning: change channel full, dropping transition")
	}
}
