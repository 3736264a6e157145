// pageswitch.go — Page/ability switch latency from system events.
package collection

import "fmt"

// PageSwitchTimeCollection reports the end-to-end latency of the page or
// ability switch triggered by the action round.
type PageSwitchTimeCollection struct {
	baseCollection
	source SysEventSource
	sub    SysEventSubscription
}

// NewPageSwitchTimeCollection builds the page-switch collector.
func NewPageSwitchTimeCollection(metric PerfMetric, source SysEventSource) *PageSwitchTimeCollection {
	return &PageSwitchTimeCollection{baseCollection: baseCollection{metric: metric}, source: source}
}

// Start subscribes to the switch event before the action runs.
func (c *PageSwitchTimeCollection) Start() error {
	sub, err := c.source.Subscribe(eventDomainPerformance, eventPageSwitch)
	if err != nil {
		return fmt.Errorf("start page switch measure failed: %w", err)
	}
	c.sub = sub
	return nil
}

// StopAndGetResult waits for the switch record of the measured bundle and
// reports its E2E latency in milliseconds.
func (c *PageSwitchTimeCollection) StopAndGetResult() (float64, error) {
	if c.sub == nil {
		return InvalidValue, fmt.Errorf("page switch collection was not started")
	}
	defer func() {
		c.sub.Close()
		c.sub = nil
	}()
	event, ok := waitForEvent(c.sub, c.bundleName)
	if !ok {
		log.Errorw("get event of page switch failed", "bundleName", c.bundleName)
		return InvalidValue, nil
	}
	value, ok := event.Params[paramE2ELatency]
	if !ok {
		log.Errorw("page switch event lacks E2E_LATENCY")
		return InvalidValue, nil
	}
	return value, nil
}
