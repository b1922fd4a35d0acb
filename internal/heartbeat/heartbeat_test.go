package heartbeat

import (
	"os"
	"testing"
	"time"
)

func TestStartAndRead(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "worker-1", 50*time.Millisecond)

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	st, found, err := Read(dir, "worker-1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !found {
		t.Fatal("record not found after Start")
	}
	if st.AgentID != "worker-1" || st.Status != StatusRunning {
		t.Errorf("state = %+v", st)
	}
	if st.PID != os.Getpid() {
		t.Errorf("pid = %d, want %d", st.PID, os.Getpid())
	}
	if st.LastHeartbeat.IsZero() {
		t.Error("lastHeartbeat not stamped")
	}
}

func TestReadMissing(t *testing.T) {
	_, found, err := Read(t.TempDir(), "ghost")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if found {
		t.Error("found = true for agent that never wrote")
	}
}

func TestRefreshHonorsInterval(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "worker-1", time.Hour)

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	wrote, err := w.Refresh()
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if wrote {
		t.Error("Refresh wrote inside the interval")
	}

	w.interval = 0
	wrote, err = w.Refresh()
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !wrote {
		t.Error("Refresh skipped a due write")
	}
}

func TestSetRunningAndIdle(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "worker-1", time.Minute)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	if err := w.SetRunning("task-9"); err != nil {
		t.Fatalf("SetRunning: %v", err)
	}
	st, _, err := Read(dir, "worker-1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Status != StatusRunning || st.CurrentTask != "task-9" {
		t.Errorf("state = %+v", st)
	}

	if err := w.SetIdle(); err != nil {
		t.Fatalf("SetIdle: %v", err)
	}
	st, _, err = Read(dir, "worker-1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Status != StatusIdle || st.CurrentTask != "" {
		t.Errorf("state after SetIdle = %+v", st)
	}
}

func TestStaleBoundary(t *testing.T) {
	now := time.Now()
	timeout := 10 * time.Second

	fresh := State{Status: StatusRunning, LastHeartbeat: now.Add(-timeout)}
	if fresh.Stale(now, timeout) {
		t.Error("record exactly at the timeout reads as stale; staleness requires strictly exceeding it")
	}

	stale := State{Status: StatusRunning, LastHeartbeat: now.Add(-timeout - time.Millisecond)}
	if !stale.Stale(now, timeout) {
		t.Error("record past the timeout not stale")
	}
}

func TestStaleOnlyWhileRunning(t *testing.T) {
	now := time.Now()
	old := now.Add(-time.Hour)

	for _, tc := range []struct {
		status Status
		want   bool
	}{
		{StatusRunning, true},
		{StatusIdle, false},
		{StatusStopped, false},
	} {
		st := State{Status: tc.status, LastHeartbeat: old}
		if got := st.Stale(now, time.Second); got != tc.want {
			t.Errorf("Stale(%s) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestStopIsFinalRecord(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "worker-1", time.Minute)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.SetRunning("task-1"); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	st, _, err := Read(dir, "worker-1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Status != StatusStopped || st.CurrentTask != "" {
		t.Errorf("state after Stop = %+v", st)
	}
	if st.Stale(time.Now().Add(time.Hour), time.Second) {
		t.Error("stopped record reads as stale")
	}
}
