package kernel

import (
	"fmt"
	"io"

	"github.com/me/gokern/internal/config"
	"github.com/me/gokern/internal/machine"
	"github.com/me/gokern/internal/memory"
	"github.com/me/gokern/pkg/model"
)

// SpawnWorkload forks one thread per declared spec. A spec with Pages > 0
// gets its own address space and touches one of its pages on every tick of
// the burst; a spec with Sleep > 0 sleeps that long before its burst starts.
func (k *Kernel) SpawnWorkload(specs []config.WorkloadThread, out io.Writer) error {
	for _, spec := range specs {
		spec := spec
		t := model.NewThread(spec.Name, spec.Priority, spec.Burst)

		var as *memory.AddrSpace
		if spec.Pages > 0 {
			as = memory.NewAddrSpace(k.mm, spec.Pages, k.logger)
			t.Space = as
		}

		k.Fork(t, func() {
			if spec.Sleep > 0 {
				k.Sleep(spec.Sleep)
			}
			for t.Burst > 0 {
				t.Burst--
				if as != nil {
					if err := k.touchPage(as, t.Burst%spec.Pages, byte(t.Burst)); err != nil {
						k.logger.Error("workload page access failed, thread stopping",
							"thread", t.Name, "error", err)
						return
					}
				}
				fmt.Fprintf(out, "%s: remaining %d\n", t.Name, t.Burst)
				k.OneTick()
			}
		})
	}
	return nil
}

// RunWorkload spawns the workload and drives the machine until every thread
// has finished.
func (k *Kernel) RunWorkload(specs []config.WorkloadThread, out io.Writer) error {
	if err := k.SpawnWorkload(specs, out); err != nil {
		return err
	}
	k.WaitQuiescent()
	return nil
}

// touchPage writes one byte into vpn of the space, faulting the page in if
// needed.
func (k *Kernel) touchPage(as *memory.AddrSpace, vpn int, b byte) error {
	old := k.intr.SetLevel(machine.IntOff)
	err := k.mm.WritePage(as.PageTable(), vpn, []byte{b})
	k.intr.SetLevel(old)
	return err
}
