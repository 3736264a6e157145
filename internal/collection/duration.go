// duration.go — Wall-clock duration of one action round.
package collection

import "time"

// DurationCollection measures the elapsed milliseconds between Start and
// StopAndGetResult on the monotonic clock.
type DurationCollection struct {
	baseCollection
	start time.Time
}

// NewDurationCollection builds the duration collector.
func NewDurationCollection(metric PerfMetric) *DurationCollection {
	return &DurationCollection{baseCollection: baseCollection{metric: metric}}
}

// Start records the round start instant.
func (c *DurationCollection) Start() error {
	c.start = time.Now()
	log.Debugw("start collect duration")
	return nil
}

// StopAndGetResult returns the elapsed milliseconds.
func (c *DurationCollection) StopAndGetResult() (float64, error) {
	elapsed := time.Since(c.start)
	ms := float64(elapsed) / float64(time.Millisecond)
	log.Debugw("end collect duration", "ms", ms)
	return ms, nil
}
