// collection.go — Metric data collection contracts. Each perf metric owns a
// DataCollection that brackets one round of the measurement loop; a negative
// result is the sentinel for a round that produced no usable sample.
package collection

import (
	"sync"

	"github.com/openharmony/perftest/internal/logging"
)

var log = logging.Named("collection")

// PerfMetric identifies one measurable quantity. The numeric values are part
// of the front-end ABI.
type PerfMetric int32

const (
	Duration PerfMetric = iota
	CPULoad
	CPUUsage
	MemoryRSS
	MemoryPSS
	AppStartResponseTime
	AppStartCompleteTime
	PageSwitchCompleteTime
	ListSwipeFPS
	MetricCount
)

// Collection result sentinels.
const (
	InitialValue = 0.00
	InvalidValue = -1.00
)

// Valid reports whether the metric is inside [0, MetricCount).
func (m PerfMetric) Valid() bool {
	return m >= 0 && m < MetricCount
}

// DataCollection brackets one measurement round for a single metric.
// Start begins collection before the action callback runs; StopAndGetResult
// ends it and returns the round value, InvalidValue marking a round that
// must be excluded from aggregation.
type DataCollection interface {
	SetBundleName(bundleName string)
	Start() error
	StopAndGetResult() (float64, error)
}

// Factory builds the DataCollection serving one metric.
type Factory func(metric PerfMetric) DataCollection

var (
	factoryMu sync.Mutex
	factories = map[PerfMetric]Factory{}
)

func init() {
	stats := NewProcStats()
	RegisterFactory(Duration, func(m PerfMetric) DataCollection { return NewDurationCollection(m) })
	RegisterFactory(CPULoad, func(m PerfMetric) DataCollection { return NewCPUCollection(m, stats) })
	RegisterFactory(CPUUsage, func(m PerfMetric) DataCollection { return NewCPUCollection(m, stats) })
	RegisterFactory(MemoryRSS, func(m PerfMetric) DataCollection { return NewMemoryCollection(m, stats) })
	RegisterFactory(MemoryPSS, func(m PerfMetric) DataCollection { return NewMemoryCollection(m, stats) })
	RegisterFactory(AppStartResponseTime, func(m PerfMetric) DataCollection {
		return NewAppStartTimeCollection(m, defaultSysEventSource)
	})
	RegisterFactory(AppStartCompleteTime, func(m PerfMetric) DataCollection {
		return NewAppStartTimeCollection(m, defaultSysEventSource)
	})
	RegisterFactory(PageSwitchCompleteTime, func(m PerfMetric) DataCollection {
		return NewPageSwitchTimeCollection(m, defaultSysEventSource)
	})
	RegisterFactory(ListSwipeFPS, func(m PerfMetric) DataCollection {
		return NewListSwipeFPSCollection(m, defaultTraceSource, NewProcStats())
	})
}

// RegisterFactory installs the factory serving a metric, replacing any
// previous registration. Tests install fakes this way; the daemon registers
// no factories of its own, so the defaults from init stay in place.
func RegisterFactory(metric PerfMetric, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[metric] = f
}

// Create builds the DataCollection for the metric, or nil when no factory is
// registered.
func Create(metric PerfMetric) DataCollection {
	factoryMu.Lock()
	f, ok := factories[metric]
	factoryMu.Unlock()
	if !ok {
		log.Warnw("no data collection registered for metric", "metric", metric)
		return nil
	}
	return f(metric)
}

// baseCollection carries the per-round state shared by all collectors.
type baseCollection struct {
	metric     PerfMetric
	bundleName string
	pid        int
}

func (b *baseCollection) SetBundleName(bundleName string) {
	b.bundleName = bundleName
}
