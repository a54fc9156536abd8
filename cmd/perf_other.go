//go:build !linux
// +build !linux

package cmd

import "fmt"

// reportCounters is a no-op outside linux: hardware counter access needs the
// perf_event_open syscall. f is skipped uniformly on every process, keeping
// the pool in step.
func reportCounters(f func(), root bool) {
	if root {
		fmt.Println("hardware counters are only available on linux")
	}
}
