// Package cgroup manages the per-run cgroup v2 leaf: limits before the
// run, counters after it. All functions operate on a leaf path created
// under a delegated subtree with +cpu +memory +pids enabled.
package cgroup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// cpuMax grants one full CPU per 100ms scheduling window.
const cpuMax = "100000 100000"

// Create makes the leaf directory. The controller files appear
// immediately on cgroup v2.
func Create(path string) error {
	if err := os.Mkdir(path, 0755); err != nil {
		return fmt.Errorf("create cgroup leaf: %w", err)
	}
	return nil
}

// ApplyLimits writes the CPU, PID, memory and swap caps. Swap is
// forbidden outright so that overcommit surfaces as an OOM kill the
// harvester can observe.
func ApplyLimits(path string, pidsLimit int32, memoryLimitMB int64) error {
	if err := writeValue(path, "cpu.max", cpuMax); err != nil {
		return err
	}
	if err := writeValue(path, "pids.max", strconv.FormatInt(int64(pidsLimit), 10)); err != nil {
		return err
	}
	if err := writeValue(path, "memory.max", strconv.FormatInt(memoryLimitMB*1024*1024, 10)); err != nil {
		return err
	}
	// Absent on kernels without swap accounting, where there is no swap
	// to forbid.
	if _, err := os.Stat(filepath.Join(path, "memory.swap.max")); err != nil {
		return nil
	}
	return writeValue(path, "memory.swap.max", "0")
}

// AddProcess moves pid into the leaf. The process must be enrolled
// before the judged program starts or its usage goes unaccounted.
func AddProcess(path string, pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	return writeValue(path, "cgroup.procs", strconv.Itoa(pid))
}

// Remove deletes the leaf. The kernel refuses while exit accounting is
// still flushing, so EBUSY is retried briefly.
func Remove(path string) error {
	var err error
	for i := 0; i < 10; i++ {
		err = os.Remove(path)
		if err == nil || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if !errors.Is(err, syscall.EBUSY) {
			return fmt.Errorf("remove cgroup leaf: %w", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("remove cgroup leaf: %w", err)
}

// UserTimeMs returns the accumulated user CPU time from cpu.stat.
func UserTimeMs(path string) int64 {
	data, err := os.ReadFile(filepath.Join(path, "cpu.stat"))
	if err != nil {
		return 0
	}
	return statValue(string(data), "user_usec") / 1000
}

// PeakMemoryBytes returns memory.peak, falling back to a memory.current
// snapshot on kernels that do not expose the peak file.
func PeakMemoryBytes(path string) int64 {
	if v, err := readInt(path, "memory.peak"); err == nil {
		return v
	}
	if v, err := readInt(path, "memory.current"); err == nil {
		return v
	}
	return 0
}

// OOMKilled reports whether the kernel OOM killer fired inside the leaf.
func OOMKilled(path string) bool {
	data, err := os.ReadFile(filepath.Join(path, "memory.events"))
	if err != nil {
		return false
	}
	return statValue(string(data), "oom_kill") > 0
}

// statValue scans a flat "key value" cgroup stat file.
func statValue(data, key string) int64 {
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 || fields[0] != key {
			continue
		}
		v, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return v
	}
	return 0
}

func readInt(path, name string) (int64, error) {
	data, err := os.ReadFile(filepath.Join(path, name))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}

func writeValue(path, name, value string) error {
	if err := os.WriteFile(filepath.Join(path, name), []byte(value), 0640); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
