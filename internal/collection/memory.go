// memory.go — Process memory footprint at the end of one action round.
package collection

import "fmt"

// MemoryCollection serves both MemoryRSS and MemoryPSS, in kilobytes.
type MemoryCollection struct {
	baseCollection
	stats        StatsProvider
	isCollecting bool
	memoryRSS    float64
	memoryPSS    float64
}

// NewMemoryCollection builds the memory collector over the given stats source.
func NewMemoryCollection(metric PerfMetric, stats StatsProvider) *MemoryCollection {
	return &MemoryCollection{baseCollection: baseCollection{metric: metric}, stats: stats}
}

// Start resolves the measured pid and samples the baseline.
func (c *MemoryCollection) Start() error {
	if c.isCollecting {
		log.Debugw("memory collection has started")
		return nil
	}
	pid, err := c.stats.PidOf(c.bundleName)
	if err != nil || pid == -1 {
		return fmt.Errorf("the process does not exist during memory collection")
	}
	c.pid = pid
	if _, err := c.stats.ProcessMemory(c.pid); err != nil {
		return fmt.Errorf("start memory collection failed: %w", err)
	}
	c.isCollecting = true
	return nil
}

// StopAndGetResult samples the final footprint and reports the metric value.
func (c *MemoryCollection) StopAndGetResult() (float64, error) {
	if c.isCollecting {
		c.isCollecting = false
		if !c.stats.ProcessExists(c.pid) {
			return InvalidValue, fmt.Errorf("the process does not exist during memory collection")
		}
		info, err := c.stats.ProcessMemory(c.pid)
		if err != nil {
			return InvalidValue, fmt.Errorf("stop memory collection failed: %w", err)
		}
		c.memoryRSS = info.RSS
		c.memoryPSS = info.PSS
		log.Debugw("end collect memory", "rss", c.memoryRSS, "pss", c.memoryPSS)
	}
	switch c.metric {
	case MemoryRSS:
		return c.memoryRSS, nil
	case MemoryPSS:
		return c.memoryPSS, nil
	default:
		return InvalidValue, nil
	}
}
