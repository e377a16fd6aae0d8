package kernel

import (
	"time"

	"github.com/me/gokern/internal/memory"
	"github.com/me/gokern/pkg/model"
)

// ThreadInfo describes one thread for diagnostics.
type ThreadInfo struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Priority int    `json:"priority"`
	Burst    int    `json:"burst"`
	WakeTick int64  `json:"wake_tick,omitempty"`
}

// Snapshot is a consistent view of the kernel for the diagnostic monitor.
type Snapshot struct {
	Policy      string       `json:"policy"`
	Tick        int64        `json:"tick"`
	Current     string       `json:"current"`
	LiveThreads int          `json:"live_threads"`
	Ready       []ThreadInfo `json:"ready"`
	Sleeping    []ThreadInfo `json:"sleeping"`

	NumFrames    int               `json:"num_frames"`
	PageSize     int               `json:"page_size"`
	NumSwapSlots int               `json:"num_swap_slots"`
	Frames       []memory.DirEntry `json:"frames"`
	SwapSlots    []memory.DirEntry `json:"swap_slots"`
}

func threadInfo(t *model.Thread) ThreadInfo {
	return ThreadInfo{
		Name:     t.Name,
		Status:   t.Status.String(),
		Priority: t.Priority,
		Burst:    t.Burst,
	}
}

// Snapshot captures the scheduler and memory state atomically with respect to
// the running threads. Safe to call from any goroutine, such as the monitor's
// HTTP handlers.
func (k *Kernel) Snapshot() Snapshot {
	var snap Snapshot
	k.intr.Exclude(func() {
		snap = Snapshot{
			Policy:       k.sched.Policy().String(),
			Tick:         k.sched.Tick(),
			LiveThreads:  k.live,
			NumFrames:    k.mm.NumFrames(),
			PageSize:     k.mm.PageSize(),
			NumSwapSlots: k.mm.NumSwapSlots(),
			Frames:       k.mm.FrameSnapshot(),
			SwapSlots:    k.mm.SwapSnapshot(),
		}
		if cur := k.sched.Current(); cur != nil {
			snap.Current = cur.Name
		}
		for _, t := range k.sched.ReadySnapshot() {
			snap.Ready = append(snap.Ready, threadInfo(t))
		}
		for _, s := range k.sched.SleepersSnapshot() {
			info := threadInfo(s.Thread)
			info.WakeTick = s.WakeTick
			snap.Sleeping = append(snap.Sleeping, info)
		}
	})
	return snap
}

// StartTime returns when the kernel was built.
func (k *Kernel) StartTime() time.Time { return k.startTime }
