//go:build linux

package isolate

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// priorityBoost is the nice value requested for prioritized contexts.
// Anything below zero needs CAP_SYS_NICE.
const priorityBoost = -10

// raisePriority renices the calling thread; on Linux the priority of a
// thread id is per thread.
func raisePriority() error {
	return unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), priorityBoost)
}

func pinCPU(n int) error {
	var allowed unix.CPUSet
	if err := unix.SchedGetaffinity(0, &allowed); err != nil {
		return fmt.Errorf("read affinity: %w", err)
	}
	count := allowed.Count()
	if count == 0 {
		return fmt.Errorf("empty affinity set")
	}

	want := n % count
	if want < 0 {
		want += count
	}
	for cpu, seen := 0, 0; cpu < len(allowed)*64; cpu++ {
		if !allowed.IsSet(cpu) {
			continue
		}
		if seen == want {
			var set unix.CPUSet
			set.Set(cpu)
			return unix.SchedSetaffinity(0, &set)
		}
		seen++
	}
	return fmt.Errorf("cpu %d not found in affinity set", n)
}
