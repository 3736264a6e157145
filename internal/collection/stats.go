// stats.go — Process statistics source. The default implementation reads the
// procfs files of the measured application; tests substitute fakes.
package collection

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// CPUInfo is one process CPU sample. Load is utilization against a single
// core, Usage against all cores, both as fractions (1.0 = fully busy);
// CPUCollection scales them to percent.
type CPUInfo struct {
	Load  float64
	Usage float64
}

// MemoryInfo is one process memory sample in kilobytes.
type MemoryInfo struct {
	RSS float64
	PSS float64
}

// StatsProvider resolves the measured process and samples its CPU and
// memory counters.
type StatsProvider interface {
	PidOf(bundleName string) (int, error)
	ProcessExists(pid int) bool
	ProcessCPU(pid int) (CPUInfo, error)
	ProcessMemory(pid int) (MemoryInfo, error)
}

// ProcStats reads procfs. CPU figures are derived from the jiffy delta
// between consecutive samples of the same ProcStats instance.
type ProcStats struct {
	lastJiffies map[int]uint64
	lastUptime  map[int]float64
	clockTick   float64
}

// NewProcStats builds a procfs-backed provider.
func NewProcStats() *ProcStats {
	return &ProcStats{
		lastJiffies: make(map[int]uint64),
		lastUptime:  make(map[int]float64),
		clockTick:   100, // USER_HZ on every supported kernel
	}
}

// PidOf scans /proc for a process whose first command-line argument equals
// bundleName, either as a whole or by its base name.
func (p *ProcStats) PidOf(bundleName string) (int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return -1, err
	}
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/proc", entry.Name(), "cmdline"))
		if err != nil || len(data) == 0 {
			continue
		}
		name := strings.SplitN(string(data), "\x00", 2)[0]
		if name == bundleName || filepath.Base(name) == bundleName {
			return pid, nil
		}
	}
	return -1, fmt.Errorf("process %s not found", bundleName)
}

// ProcessExists reports whether the pid still has a procfs entry.
func (p *ProcStats) ProcessExists(pid int) bool {
	_, err := os.Stat(filepath.Join("/proc", strconv.Itoa(pid)))
	return err == nil
}

// ProcessCPU samples utime+stime of the pid. The first sample of a pid only
// opens the measurement window and reports zero.
func (p *ProcStats) ProcessCPU(pid int) (CPUInfo, error) {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return CPUInfo{}, err
	}
	// field layout: pid (comm) state ... utime=14 stime=15, comm may hold spaces
	raw := string(data)
	closeParen := strings.LastIndexByte(raw, ')')
	if closeParen < 0 {
		return CPUInfo{}, fmt.Errorf("malformed stat for pid %d", pid)
	}
	fields := strings.Fields(raw[closeParen+1:])
	if len(fields) < 13 {
		return CPUInfo{}, fmt.Errorf("malformed stat for pid %d", pid)
	}
	utime, err1 := strconv.ParseUint(fields[11], 10, 64)
	stime, err2 := strconv.ParseUint(fields[12], 10, 64)
	if err1 != nil || err2 != nil {
		return CPUInfo{}, fmt.Errorf("malformed stat for pid %d", pid)
	}
	jiffies := utime + stime

	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return CPUInfo{}, err
	}
	uptime := float64(info.Uptime)

	prevJiffies, sampled := p.lastJiffies[pid]
	prevUptime := p.lastUptime[pid]
	p.lastJiffies[pid] = jiffies
	p.lastUptime[pid] = uptime
	if !sampled || uptime <= prevUptime {
		return CPUInfo{}, nil
	}
	busy := float64(jiffies-prevJiffies) / p.clockTick
	elapsed := uptime - prevUptime
	load := busy / elapsed
	cores := cpuCoreCount()
	return CPUInfo{Load: load, Usage: load / cores}, nil
}

// ProcessMemory reads VmRSS from status and Pss from smaps_rollup, both in kB.
func (p *ProcStats) ProcessMemory(pid int) (MemoryInfo, error) {
	status, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "status"))
	if err != nil {
		return MemoryInfo{}, err
	}
	info := MemoryInfo{}
	for _, line := range strings.Split(string(status), "\n") {
		if strings.HasPrefix(line, "VmRSS:") {
			info.RSS = parseKBLine(line)
		}
	}
	rollup, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "smaps_rollup"))
	if err == nil {
		for _, line := range strings.Split(string(rollup), "\n") {
			if strings.HasPrefix(line, "Pss:") {
				info.PSS = parseKBLine(line)
			}
		}
	} else {
		// smaps_rollup needs wider permissions; fall back to RSS
		info.PSS = info.RSS
	}
	return info, nil
}

func parseKBLine(line string) float64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0
	}
	return v
}

func cpuCoreCount() float64 {
	n, err := strconv.Atoi(os.Getenv("PERFTEST_CPU_CORES"))
	if err == nil && n > 0 {
		return float64(n)
	}
	entries, err := os.ReadDir("/sys/devices/system/cpu")
	if err != nil {
		return 1
	}
	count := 0
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "cpu") {
			if _, err := strconv.Atoi(name[3:]); err == nil {
				count++
			}
		}
	}
	if count == 0 {
		return 1
	}
	return float64(count)
}
