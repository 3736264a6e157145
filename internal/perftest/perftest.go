// perftest.go — The PerfTest backend object: iteration loop, result
// aggregation and the destroy protocol.
package perftest

import (
	"github.com/openharmony/perftest/internal/api"
	"github.com/openharmony/perftest/internal/collection"
)

// Callback drives the client-side code handles bound to a perf test.
type Callback interface {
	// OnCall asks the client to run the code handle and waits for its
	// completion under timeoutMs. An empty codeRef is a no-op.
	OnCall(codeRef string, timeoutMs int32) *api.CallError
	// OnDestroy asks the client to release the given code handles.
	OnDestroy(codeRefs []string) *api.CallError
}

// PerfTest measures the configured metrics across repeated invocations of
// the client action callback. One run at a time per object; the run loop
// executes on its caller's transaction goroutine.
type PerfTest struct {
	strategy          *Strategy
	callback          Callback
	measureResult     map[collection.PerfMetric][]float64
	isMeasureComplete bool
	isMeasureRunning  bool
}

// NewPerfTest binds a validated strategy to the callback channel.
func NewPerfTest(strategy *Strategy, callback Callback) *PerfTest {
	return &PerfTest{strategy: strategy, callback: callback}
}

// FrontendClassDef implements api.BackendObject.
func (p *PerfTest) FrontendClassDef() *api.ClassDef {
	return &api.PerfTestDef
}

// IsMeasureRunning reports whether a run is in flight.
func (p *PerfTest) IsMeasureRunning() bool {
	return p.isMeasureRunning
}

// Run executes the measurement loop: per iteration, start every collection,
// invoke the action callback, stop every collection recording the round
// values, then invoke the reset callback. Any failure aborts the run and
// clears the running flag.
func (p *PerfTest) Run() *api.CallError {
	if p.isMeasureRunning {
		return callErrPtr(api.NewErrorMsg(api.ErrInternal, "Measure is already running"))
	}
	log.Infow("run perf test", "bundleName", p.strategy.BundleName(),
		"iterations", p.strategy.Iterations())
	collections := p.strategy.DataCollections()
	for _, dc := range collections {
		dc.SetBundleName(p.strategy.BundleName())
	}
	p.isMeasureRunning = true
	p.isMeasureComplete = false
	p.measureResult = make(map[collection.PerfMetric][]float64, len(collections))
	for iteration := int32(0); iteration < p.strategy.Iterations(); iteration++ {
		for _, metric := range p.strategy.Metrics() {
			dc, ok := collections[metric]
			if !ok {
				continue
			}
			if err := dc.Start(); err != nil {
				p.isMeasureRunning = false
				return callErrPtr(api.NewErrorMsg(api.ErrDataCollectionFailed, err.Error()))
			}
		}
		if err := p.callback.OnCall(p.strategy.ActionCodeRef(), p.strategy.TimeoutMs()); err != nil {
			log.Errorw("actionCode call error", "iteration", iteration, "err", err.Message)
			p.isMeasureRunning = false
			return err
		}
		for _, metric := range p.strategy.Metrics() {
			dc, ok := collections[metric]
			if !ok {
				continue
			}
			value, err := dc.StopAndGetResult()
			if err != nil {
				p.isMeasureRunning = false
				return callErrPtr(api.NewErrorMsg(api.ErrDataCollectionFailed, err.Error()))
			}
			p.measureResult[metric] = append(p.measureResult[metric], value)
		}
		if err := p.callback.OnCall(p.strategy.ResetCodeRef(), p.strategy.TimeoutMs()); err != nil {
			log.Errorw("resetCode call error", "iteration", iteration, "err", err.Message)
			p.isMeasureRunning = false
			return err
		}
	}
	p.isMeasureRunning = false
	p.isMeasureComplete = true
	return nil
}

// GetMeasureResult aggregates the rounds of one metric. Rounds at or below
// the invalid sentinel are excluded from the aggregates; when every round is
// invalid the aggregates are all zero.
func (p *PerfTest) GetMeasureResult(metric collection.PerfMetric) (map[string]any, *api.CallError) {
	if !p.strategy.HasMetric(metric) {
		return nil, callErrPtr(api.Errorf(api.ErrInvalidInput,
			"PerfMetric: %d is not set to measure", metric))
	}
	rounds := p.measureResult[metric]
	if !p.isMeasureComplete || int32(len(rounds)) != p.strategy.Iterations() {
		return nil, callErrPtr(api.Errorf(api.ErrGetResultFailed,
			"PerfMetric: %d has not been measured yet", metric))
	}
	var valid []float64
	for _, v := range rounds {
		if v > collection.InvalidValue {
			valid = append(valid, v)
		}
	}
	result := map[string]any{
		"metric":      int32(metric),
		"roundValues": rounds,
	}
	if len(valid) == 0 {
		result["maximum"] = collection.InitialValue
		result["minimum"] = collection.InitialValue
		result["average"] = collection.InitialValue
		return result, nil
	}
	maxV, minV, sum := valid[0], valid[0], 0.0
	for _, v := range valid {
		if v > maxV {
			maxV = v
		}
		if v < minV {
			minV = v
		}
		sum += v
	}
	result["maximum"] = maxV
	result["minimum"] = minV
	result["average"] = sum / float64(len(valid))
	return result, nil
}

// Destroy asks the client to release the code handles bound to this test.
func (p *PerfTest) Destroy() *api.CallError {
	codeRefs := []string{p.strategy.ActionCodeRef()}
	if p.strategy.ResetCodeRef() != "" {
		codeRefs = append(codeRefs, p.strategy.ResetCodeRef())
	}
	return p.callback.OnDestroy(codeRefs)
}

func callErrPtr(err api.CallError) *api.CallError {
	return &err
}
