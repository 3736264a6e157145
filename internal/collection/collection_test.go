// collection_test.go — Tests for the collectors over fake stat, event and
// trace sources.
package collection

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeStats scripts the StatsProvider surface.
type fakeStats struct {
	pid    int
	pidErr error
	exists bool
	cpu    []CPUInfo
	cpuIdx int
	cpuErr error
	memory []MemoryInfo
	memIdx int
	memErr error
}

func (f *fakeStats) PidOf(string) (int, error) { return f.pid, f.pidErr }
func (f *fakeStats) ProcessExists(int) bool    { return f.exists }

func (f *fakeStats) ProcessCPU(int) (CPUInfo, error) {
	if f.cpuErr != nil {
		return CPUInfo{}, f.cpuErr
	}
	if f.cpuIdx >= len(f.cpu) {
		return CPUInfo{}, nil
	}
	info := f.cpu[f.cpuIdx]
	f.cpuIdx++
	return info, nil
}

func (f *fakeStats) ProcessMemory(int) (MemoryInfo, error) {
	if f.memErr != nil {
		return MemoryInfo{}, f.memErr
	}
	if f.memIdx >= len(f.memory) {
		return MemoryInfo{}, nil
	}
	info := f.memory[f.memIdx]
	f.memIdx++
	return info, nil
}

func TestPerfMetricValid(t *testing.T) {
	t.Parallel()
	if !Duration.Valid() || !ListSwipeFPS.Valid() {
		t.Error("in-range metrics must be valid")
	}
	if MetricCount.Valid() || PerfMetric(-1).Valid() {
		t.Error("out-of-range metrics must be invalid")
	}
}

func TestDurationCollection(t *testing.T) {
	t.Parallel()
	c := NewDurationCollection(Duration)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	got, err := c.StopAndGetResult()
	if err != nil {
		t.Fatal(err)
	}
	if got < 15 {
		t.Errorf("expected at least ~20ms, got %.2f", got)
	}
}

func TestCPUCollection(t *testing.T) {
	t.Parallel()
	stats := &fakeStats{pid: 1234, exists: true, cpu: []CPUInfo{{}, {Load: 0.5, Usage: 0.125}}}
	c := NewCPUCollection(CPULoad, stats)
	c.SetBundleName("com.unittest.test")
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	got, err := c.StopAndGetResult()
	if err != nil {
		t.Fatal(err)
	}
	if got != 50.0 {
		t.Errorf("cpu load = %.2f, want 50.00", got)
	}

	usage := NewCPUCollection(CPUUsage, &fakeStats{pid: 1, exists: true, cpu: []CPUInfo{{}, {Load: 0.5, Usage: 0.125}}})
	usage.SetBundleName("com.unittest.test")
	if err := usage.Start(); err != nil {
		t.Fatal(err)
	}
	got, err = usage.StopAndGetResult()
	if err != nil {
		t.Fatal(err)
	}
	if got != 12.5 {
		t.Errorf("cpu usage = %.2f, want 12.50", got)
	}
}

func TestCPUCollectionProcessGone(t *testing.T) {
	t.Parallel()
	stats := &fakeStats{pid: 1234, exists: false, cpu: []CPUInfo{{}}}
	c := NewCPUCollection(CPULoad, stats)
	c.SetBundleName("com.unittest.test")
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	got, err := c.StopAndGetResult()
	if err == nil {
		t.Fatal("expected an error for a vanished process")
	}
	if got != InvalidValue {
		t.Errorf("expected invalid sentinel, got %.2f", got)
	}
}

func TestCPUCollectionMissingProcess(t *testing.T) {
	t.Parallel()
	c := NewCPUCollection(CPULoad, &fakeStats{pid: -1, pidErr: errors.New("absent")})
	c.SetBundleName("com.unittest.test")
	if err := c.Start(); err == nil {
		t.Fatal("expected start to fail for a missing process")
	}
}

func TestMemoryCollection(t *testing.T) {
	t.Parallel()
	stats := &fakeStats{
		pid: 1234, exists: true,
		memory: []MemoryInfo{{RSS: 1000, PSS: 900}, {RSS: 2048, PSS: 1500}},
	}
	c := NewMemoryCollection(MemoryRSS, stats)
	c.SetBundleName("com.unittest.test")
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	got, err := c.StopAndGetResult()
	if err != nil {
		t.Fatal(err)
	}
	if got != 2048 {
		t.Errorf("rss = %.2f, want 2048", got)
	}

	pss := NewMemoryCollection(MemoryPSS, &fakeStats{
		pid: 1, exists: true,
		memory: []MemoryInfo{{RSS: 1000, PSS: 900}, {RSS: 2048, PSS: 1500}},
	})
	pss.SetBundleName("com.unittest.test")
	if err := pss.Start(); err != nil {
		t.Fatal(err)
	}
	got, err = pss.StopAndGetResult()
	if err != nil {
		t.Fatal(err)
	}
	if got != 1500 {
		t.Errorf("pss = %.2f, want 1500", got)
	}
}

func TestPageSwitchCollection(t *testing.T) {
	t.Parallel()
	source := NewMemorySysEventSource()
	c := NewPageSwitchTimeCollection(PageSwitchCompleteTime, source)
	c.SetBundleName("com.unittest.test")
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	source.Publish(SysEvent{
		Domain: "PERFORMANCE", Name: "ABILITY_OR_PAGE_SWITCH",
		BundleName: "com.unittest.test",
		Params:     map[string]float64{"E2E_LATENCY": 321},
	})
	got, err := c.StopAndGetResult()
	if err != nil {
		t.Fatal(err)
	}
	if got != 321 {
		t.Errorf("page switch latency = %.2f, want 321", got)
	}
}

func TestAppStartCollectionSelectsParam(t *testing.T) {
	t.Parallel()
	source := NewMemorySysEventSource()
	event := SysEvent{
		Domain: "PERFORMANCE", Name: "APP_START",
		BundleName: "com.unittest.test",
		Params:     map[string]float64{"RESPONSE_LATENCY": 120, "E2E_LATENCY": 480},
	}

	response := NewAppStartTimeCollection(AppStartResponseTime, source)
	response.SetBundleName("com.unittest.test")
	if err := response.Start(); err != nil {
		t.Fatal(err)
	}
	source.Publish(event)
	got, err := response.StopAndGetResult()
	if err != nil || got != 120 {
		t.Errorf("response latency = %.2f, %v; want 120", got, err)
	}

	complete := NewAppStartTimeCollection(AppStartCompleteTime, source)
	complete.SetBundleName("com.unittest.test")
	if err := complete.Start(); err != nil {
		t.Fatal(err)
	}
	source.Publish(event)
	got, err = complete.StopAndGetResult()
	if err != nil || got != 480 {
		t.Errorf("complete latency = %.2f, %v; want 480", got, err)
	}
}

// fakeTrace returns scripted trace samples.
type fakeTrace struct {
	lines    []string
	beginErr error
	endErr   error
}

func (f *fakeTrace) Begin() error           { return f.beginErr }
func (f *fakeTrace) End() ([]string, error) { return f.lines, f.endErr }

func traceLine(time, marker string) string {
	return strings.Join([]string{
		"render-9", "(", "9)", "[001]", "....", time, "tracing_mark_write:", marker,
	}, " ")
}

func TestListSwipeFPSParse(t *testing.T) {
	t.Parallel()
	lines := []string{
		traceLine("100.000:", "S|9|H:APP_LIST_FLING"),
		traceLine("100.100:", "H:RSMainThread::DoComposition"),
		traceLine("100.200:", "H:RSMainThread::DoComposition"),
		traceLine("100.300:", "H:RSMainThread::DoComposition"),
		traceLine("100.500:", "F|9|H:APP_LIST_FLING"),
	}
	c := NewListSwipeFPSCollection(ListSwipeFPS, &fakeTrace{lines: lines}, &fakeStats{pid: 9, exists: true})
	c.SetBundleName("com.unittest.test")
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	got, err := c.StopAndGetResult()
	if err != nil {
		t.Fatal(err)
	}
	// 3 frames over 0.5s
	if got < 5.9 || got > 6.1 {
		t.Errorf("fps = %.2f, want ~6", got)
	}
}

func TestListSwipeFPSNoSwipeWindow(t *testing.T) {
	t.Parallel()
	lines := []string{
		traceLine("100.100:", "H:RSMainThread::DoComposition"),
	}
	c := NewListSwipeFPSCollection(ListSwipeFPS, &fakeTrace{lines: lines}, &fakeStats{pid: 9, exists: true})
	c.SetBundleName("com.unittest.test")
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	got, err := c.StopAndGetResult()
	if err != nil {
		t.Fatal(err)
	}
	if got != InvalidValue {
		t.Errorf("expected invalid sentinel without a swipe window, got %.2f", got)
	}
}

func TestFactoryRegistry(t *testing.T) {
	if dc := Create(Duration); dc == nil {
		t.Fatal("expected default duration factory")
	}
	if dc := Create(MetricCount); dc != nil {
		t.Fatal("expected nil for unregistered metric")
	}
}
