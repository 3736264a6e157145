// cpu.go — Process CPU load/usage over one action round.
package collection

import "fmt"

// CPUCollection serves both CPULoad and CPUUsage. Start opens the sampling
// window on the measured process; StopAndGetResult closes it and reports the
// percentage selected by the metric.
type CPUCollection struct {
	baseCollection
	stats        StatsProvider
	isCollecting bool
	cpuLoad      float64
	cpuUsage     float64
}

// NewCPUCollection builds the CPU collector over the given stats source.
func NewCPUCollection(metric PerfMetric, stats StatsProvider) *CPUCollection {
	return &CPUCollection{baseCollection: baseCollection{metric: metric}, stats: stats}
}

// Start resolves the measured pid and opens the sampling window.
func (c *CPUCollection) Start() error {
	if c.isCollecting {
		log.Debugw("cpu collection has started")
		return nil
	}
	pid, err := c.stats.PidOf(c.bundleName)
	if err != nil || pid == -1 {
		return fmt.Errorf("the process does not exist during cpu collection")
	}
	c.pid = pid
	if _, err := c.stats.ProcessCPU(c.pid); err != nil {
		return fmt.Errorf("start cpu collection failed: %w", err)
	}
	c.isCollecting = true
	return nil
}

// StopAndGetResult samples again and reports the metric percentage.
func (c *CPUCollection) StopAndGetResult() (float64, error) {
	if c.isCollecting {
		c.isCollecting = false
		if !c.stats.ProcessExists(c.pid) {
			return InvalidValue, fmt.Errorf("the process does not exist during cpu collection")
		}
		info, err := c.stats.ProcessCPU(c.pid)
		if err != nil {
			return InvalidValue, fmt.Errorf("stop cpu collection failed: %w", err)
		}
		c.cpuLoad = info.Load * 100
		c.cpuUsage = info.Usage * 100
		log.Debugw("end collect cpu", "cpuLoad", c.cpuLoad, "cpuUsage", c.cpuUsage)
	}
	switch c.metric {
	case CPULoad:
		return c.cpuLoad, nil
	case CPUUsage:
		return c.cpuUsage, nil
	default:
		return InvalidValue, nil
	}
}
