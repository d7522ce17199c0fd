package connectivity

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// TestNew_NoProbeURL assumes online when nothing is configured.
func TestNew_NoProbeURL(t *testing.T) {
	m, err := New(&Config{Logger: testLogger()})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if !m.Online() {
		t.Error("Online() = false with no probe URL, want true")
	}
}

// TestNew_OverrideFileForcesOffline checks the marker file wins before Start.
func TestNew_OverrideFileForcesOffline(t *testing.T) {
	override := filepath.Join(t.TempDir(), "offline")
	if err := os.WriteFile(override, nil, 0644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	m, err := New(&Config{OverridePath: override, Logger: testLogger()})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if m.Online() {
		t.Error("Online() = true with override file present, want false")
	}
}

// TestOverrideRemoval_EmitsReconnectEdge removes the marker file and expects
// a prompt true transition from the watcher, well inside the probe interval.
func TestOverrideRemoval_EmitsReconnectEdge(t *testing.T) {
	override := filepath.Join(t.TempDir(), "offline")
	if err := os.WriteFile(override, nil, 0644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	m, err := New(&Config{
		OverridePath:  override,
		ProbeInterval: time.Hour, // watcher must deliver the edge, not the ticker
		Logger:        testLogger(),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer m.Stop()

	if err := os.Remove(override); err != nil {
		t.Fatalf("remove override: %v", err)
	}

	select {
	case online := <-m.Changes():
		if !online {
			t.Error("transition = offline, want reconnect edge")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no transition after removing the override file")
	}
	if !m.Online() {
		t.Error("Online() = false after override removed")
	}
}

// TestOverrideCreation_EmitsOfflineEdge creates the marker file while online.
func TestOverrideCreation_EmitsOfflineEdge(t *testing.T) {
	override := filepath.Join(t.TempDir(), "offline")

	m, err := New(&Config{
		OverridePath:  override,
		ProbeInterval: time.Hour,
		Logger:        testLogger(),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if !m.Online() {
		t.Fatal("expected online start with no override file")
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer m.Stop()

	if err := os.WriteFile(override, nil, 0644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	select {
	case online := <-m.Changes():
		if online {
			t.Error("transition = online, want offline edge")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no transition after creating the override file")
	}
}

// TestProbe_ServerStatus maps HTTP results onto the binary signal.
func TestProbe_ServerStatus(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer healthy.Close()

	m, err := New(&Config{ProbeURL: healthy.URL, Logger: testLogger()})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if !m.Online() {
		t.Error("Online() = false against a healthy endpoint")
	}

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	m, err = New(&Config{ProbeURL: broken.URL, Logger: testLogger()})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if m.Online() {
		t.Error("Online() = true against a 500 endpoint")
	}

	// An unreachable endpoint also reads as offline.
	unreachable := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := unreachable.URL
	unreachable.Close()

	m, err = New(&Config{ProbeURL: url, Logger: testLogger()})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if m.Online() {
		t.Error("Online() = true against a closed endpoint")
	}
}

// TestProbeLoop_DetectsRecovery flips the endpoint from failing to healthy
// and waits for the ticker-driven edge.
func TestProbeLoop_DetectsRecovery(t *testing.T) {
	var healthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	m, err := New(&Config{
		ProbeURL:      server.URL,
		ProbeInterval: 20 * time.Millisecond,
		Logger:        testLogger(),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if m.Online() {
		t.Fatal("expected offline start against a failing endpoint")
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer m.Stop()

	healthy.Store(true)

	select {
	case online := <-m.Changes():
		if !online {
			t.Error("transition = offline, want recovery edge")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no recovery edge from the probe loop")
	}
}

// TestStart_Idempotent checks a double Start does not spawn twin loops.
func TestStart_Idempotent(t *testing.T) {
	m, err := New(&Config{ProbeInterval: time.Hour, Logger: testLogger()})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("second Start() failed: %v", err)
	}
	m.Stop()
}
