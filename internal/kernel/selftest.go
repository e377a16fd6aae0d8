package kernel

import (
	"fmt"
	"io"

	"github.com/me/gokern/internal/machine"
	"github.com/me/gokern/pkg/model"
)

// selfTestCase is a fixed workload of four threads A-D.
type selfTestCase struct {
	priorities [4]int
	bursts     [4]int
}

var selfTestNames = [4]string{"A", "B", "C", "D"}

var selfTestCases = []selfTestCase{
	{priorities: [4]int{5, 1, 3, 2}, bursts: [4]int{3, 9, 7, 3}},
	{priorities: [4]int{5, 1, 3, 2}, bursts: [4]int{1, 9, 2, 3}},
	{priorities: [4]int{10, 1, 2, 3}, bursts: [4]int{50, 10, 5, 10}},
}

// SelfTest runs one of the scripted scheduler workloads to completion and
// returns the order in which the threads finished. The per-tick trace on out
// is a behavioral reference, not a stable format.
func (k *Kernel) SelfTest(testcase int, out io.Writer) ([]string, error) {
	if testcase < 0 || testcase >= len(selfTestCases) {
		return nil, fmt.Errorf("no such testcase %d (have 0..%d)", testcase, len(selfTestCases)-1)
	}
	tc := selfTestCases[testcase]

	fmt.Fprintf(out, "Using testcase %d under %s scheduling\n", testcase, k.sched.Policy())

	var completed []string
	for i := range selfTestNames {
		t := model.NewThread(selfTestNames[i], tc.priorities[i], tc.bursts[i])
		k.Fork(t, func() {
			for t.Burst > 0 {
				t.Burst--
				fmt.Fprintf(out, "%s: remaining %d\n", t.Name, t.Burst)
				k.OneTick()
			}
			// Record completion under mutual exclusion; siblings
			// append to the same slice.
			old := k.intr.SetLevel(machine.IntOff)
			completed = append(completed, t.Name)
			k.intr.SetLevel(old)
		})
	}

	k.WaitQuiescent()
	return completed, nil
}
