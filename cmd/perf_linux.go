//go:build linux
// +build linux

package cmd

import (
	"fmt"

	perf "github.com/hodgesds/perf-utils"
)

// reportCounters runs f twice more under the kernel hardware counters, once
// counting retired instructions and once counting cycles. Every process of
// the pool must call it, since f is collective; only the root prints.
// Counter access is probed first, so when the kernel refuses it
// (kernel.perf_event_paranoid) no process reruns f and the pool stays in
// step.
func reportCounters(f func(), root bool) {
	if _, err := perf.CPUInstructions(func() {}); err != nil {
		if root {
			fmt.Printf("hardware counters unavailable: %s\n", err.Error())
		}
		return
	}
	instr, ierr := perf.CPUInstructions(f)
	cycles, cerr := perf.CPUCycles(f)
	if !root {
		return
	}
	if ierr != nil || cerr != nil {
		fmt.Printf("hardware counter read failed: %v %v\n", ierr, cerr)
		return
	}
	fmt.Printf("%d\t\t= Instructions Retired\n", instr.Value)
	fmt.Printf("%d\t\t= CPU Cycles\n", cycles.Value)
}
