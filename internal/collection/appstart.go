// appstart.go — Application cold-start latency from system events.
package collection

import (
	"fmt"
	"time"
)

const (
	listenTimeout     = 10 * time.Second
	listenTimeoutUnit = 500 * time.Millisecond
)

// AppStartTimeCollection serves AppStartResponseTime and
// AppStartCompleteTime from the APP_START performance event.
type AppStartTimeCollection struct {
	baseCollection
	source SysEventSource
	sub    SysEventSubscription
}

// NewAppStartTimeCollection builds the app-start collector.
func NewAppStartTimeCollection(metric PerfMetric, source SysEventSource) *AppStartTimeCollection {
	return &AppStartTimeCollection{baseCollection: baseCollection{metric: metric}, source: source}
}

// Start subscribes to the APP_START event before the action launches the app.
func (c *AppStartTimeCollection) Start() error {
	sub, err := c.source.Subscribe(eventDomainPerformance, eventAppStart)
	if err != nil {
		return fmt.Errorf("start app start measure failed: %w", err)
	}
	c.sub = sub
	return nil
}

// StopAndGetResult waits for the start record of the measured bundle and
// reports the selected latency in milliseconds.
func (c *AppStartTimeCollection) StopAndGetResult() (float64, error) {
	if c.sub == nil {
		return InvalidValue, fmt.Errorf("app start collection was not started")
	}
	defer func() {
		c.sub.Close()
		c.sub = nil
	}()
	event, ok := waitForEvent(c.sub, c.bundleName)
	if !ok {
		log.Errorw("get event of app start failed", "bundleName", c.bundleName)
		return InvalidValue, nil
	}
	param := paramResponseLatency
	if c.metric == AppStartCompleteTime {
		param = paramE2ELatency
	}
	value, ok := event.Params[param]
	if !ok {
		log.Errorw("app start event lacks latency param", "param", param)
		return InvalidValue, nil
	}
	return value, nil
}

// waitForEvent polls the subscription until a record of the bundle arrives
// or the listen timeout elapses.
func waitForEvent(sub SysEventSubscription, bundleName string) (SysEvent, bool) {
	waited := time.Duration(0)
	for {
		if event, ok := sub.Latest(bundleName); ok {
			return event, true
		}
		if waited >= listenTimeout {
			return SysEvent{}, false
		}
		time.Sleep(listenTimeoutUnit)
		waited += listenTimeoutUnit
	}
}
