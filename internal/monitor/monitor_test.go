package monitor

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSnapshot_IncludesHubStats(t *testing.T) {
	s := NewService(Dependencies{
		Logger: slog.Default(),
		HubStats: func() (int, int) {
			return 3, 2
		},
	})

	st := s.Snapshot()
	if st.Clients != 3 || st.Videos != 2 {
		t.Errorf("expected clients=3 videos=2, got %d/%d", st.Clients, st.Videos)
	}
	if st.Goroutines <= 0 {
		t.Error("goroutine count should be positive")
	}
}

func TestStartStop_WritesStatusFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	s := NewService(Dependencies{
		Logger:     slog.Default(),
		StatusPath: path,
		Interval:   10 * time.Millisecond,
	})

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.IsRunning() {
		t.Error("service should report running")
	}

	deadline := time.Now().Add(time.Second)
	var data []byte
	for time.Now().Before(deadline) {
		data, _ = os.ReadFile(path)
		if len(data) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(data) == 0 {
		t.Fatal("status file was never written")
	}

	s.Stop()
	deadline = time.Now().Add(time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.IsRunning() {
		t.Error("service should stop")
	}

	// Read after the writer has stopped so the file is whole.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading status file: %v", err)
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("status file is not valid JSON: %v", err)
	}
}

func TestStart_Idempotent(t *testing.T) {
	s := NewService(Dependencies{
		Logger:     slog.Default(),
		StatusPath: filepath.Join(t.TempDir(), "status.json"),
		Interval:   time.Hour,
	})

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("second start should be a no-op, got %v", err)
	}
	s.Stop()
}
