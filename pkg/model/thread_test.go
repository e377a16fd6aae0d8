package model

import "testing"

func TestThreadStatus_String(t *testing.T) {
	tests := []struct {
		status ThreadStatus
		want   string
	}{
		{StatusRunning, "RUNNING"},
		{StatusReady, "READY"},
		{StatusBlocked, "BLOCKED"},
		{ThreadStatus(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestNewThread(t *testing.T) {
	th := NewThread("worker", 3, 7)
	if th.Name != "worker" {
		t.Errorf("Name = %q, want %q", th.Name, "worker")
	}
	if th.Status != StatusBlocked {
		t.Errorf("Status = %v, want BLOCKED before first dispatch", th.Status)
	}
	if th.Priority != 3 || th.Burst != 7 {
		t.Errorf("Priority/Burst = %d/%d, want 3/7", th.Priority, th.Burst)
	}
	if th.Space != nil {
		t.Error("new kernel thread should have no address space")
	}
}

func TestNewPageTable(t *testing.T) {
	pt := NewPageTable(4)
	if pt.NumPages() != 4 {
		t.Fatalf("NumPages = %d, want 4", pt.NumPages())
	}
	for i, e := range pt.Entries {
		if e.Valid {
			t.Errorf("entry %d valid on a fresh table", i)
		}
	}
}
