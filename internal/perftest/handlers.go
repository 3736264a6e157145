// handlers.go — Registration of the PerfTest.* api handlers on the
// process-wide api server.
package perftest

import (
	"encoding/json"

	"github.com/openharmony/perftest/internal/api"
	"github.com/openharmony/perftest/internal/collection"
)

// collectionMetric converts a wire number to a PerfMetric.
func collectionMetric(v float64) collection.PerfMetric {
	return collection.PerfMetric(int32(v))
}

func init() {
	RegisterAPIHandlers(api.Get())
}

// callbackForwarder routes perf-test callbacks through the api server's
// callback channel back to the client endpoint.
type callbackForwarder struct {
	server *api.Server
}

func (f *callbackForwarder) OnCall(codeRef string, timeoutMs int32) *api.CallError {
	log.Infow("perf test callback", "codeRef", codeRef, "timeout", timeoutMs)
	if codeRef == "" {
		log.Warnw("callback have not been defined")
		return nil
	}
	in := api.CallInfo{
		ApiID:     "PerfTest.run",
		ParamList: []any{codeRef, float64(timeoutMs)},
	}
	out := api.NewReply()
	f.server.Callback(&in, &out)
	if out.Exception.Code != api.NoError {
		err := out.Exception
		return &err
	}
	return nil
}

func (f *callbackForwarder) OnDestroy(codeRefs []string) *api.CallError {
	params := make([]any, 0, 1)
	refs := make([]any, 0, len(codeRefs))
	for _, ref := range codeRefs {
		refs = append(refs, ref)
	}
	params = append(params, refs)
	in := api.CallInfo{ApiID: "PerfTest.destroy", ParamList: params}
	out := api.NewReply()
	f.server.Callback(&in, &out)
	if out.Exception.Code != api.NoError {
		err := out.Exception
		return &err
	}
	return nil
}

// RegisterAPIHandlers installs the PerfTest.* handlers.
func RegisterAPIHandlers(server *api.Server) {
	registerCreate(server)
	registerRun(server)
	registerGetMeasureResult(server)
	registerDestroy(server)
}

// decodeStrategySpec converts the generic json object of the first call
// argument into the strategy spec.
func decodeStrategySpec(raw any) (strategySpec, bool) {
	object, ok := raw.(map[string]any)
	if !ok {
		return strategySpec{}, false
	}
	data, err := json.Marshal(object)
	if err != nil {
		return strategySpec{}, false
	}
	var spec strategySpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return strategySpec{}, false
	}
	return spec, true
}

func registerCreate(server *api.Server) {
	server.AddHandler("PerfTest.create", func(in *api.CallInfo, out *api.ReplyInfo) {
		if len(in.ParamList) < 1 {
			out.Exception = api.NewErrorMsg(api.ErrInvalidInput, "PerfTestStrategy cannot be empty")
			return
		}
		object, isObject := in.ParamList[0].(map[string]any)
		if !isObject || len(object) == 0 {
			out.Exception = api.NewErrorMsg(api.ErrInvalidInput, "PerfTestStrategy cannot be empty")
			return
		}
		metrics, hasMetrics := object["metrics"].([]any)
		if !hasMetrics || len(metrics) == 0 {
			out.Exception = api.NewErrorMsg(api.ErrInvalidInput, "Metrics cannot be empty")
			return
		}
		spec, ok := decodeStrategySpec(in.ParamList[0])
		if !ok {
			out.Exception = api.NewErrorMsg(api.ErrInvalidInput, "Illegal PerfTestStrategy")
			return
		}
		strategy, callErr := NewStrategy(spec, in.CallingPid)
		if callErr != nil {
			out.Exception = *callErr
			return
		}
		perfTest := NewPerfTest(strategy, &callbackForwarder{server: server})
		out.ResultValue = api.StoreBackendObject(perfTest, "")
	})
}

func registerRun(server *api.Server) {
	server.AddHandler("PerfTest.run", func(in *api.CallInfo, out *api.ReplyInfo) {
		obj := api.GetBackendObject(in.CallerObjRef, out)
		if out.Exception.Code != api.NoError {
			return
		}
		perfTest, ok := obj.(*PerfTest)
		if !ok {
			out.Exception = api.NewErrorMsg(api.ErrInternal, "Object does not exist")
			return
		}
		if err := perfTest.Run(); err != nil {
			out.Exception = *err
		}
	})
}

func registerGetMeasureResult(server *api.Server) {
	server.AddHandler("PerfTest.getMeasureResult", func(in *api.CallInfo, out *api.ReplyInfo) {
		obj := api.GetBackendObject(in.CallerObjRef, out)
		if out.Exception.Code != api.NoError {
			return
		}
		perfTest, ok := obj.(*PerfTest)
		if !ok {
			out.Exception = api.NewErrorMsg(api.ErrInternal, "Object does not exist")
			return
		}
		if len(in.ParamList) < 1 {
			out.Exception = api.NewErrorMsg(api.ErrInvalidInput, "Illegal perfMetric")
			return
		}
		number, isNumber := in.ParamList[0].(float64)
		metric := collectionMetric(number)
		if !isNumber || !metric.Valid() {
			out.Exception = api.NewErrorMsg(api.ErrInvalidInput, "Illegal perfMetric")
			return
		}
		if perfTest.IsMeasureRunning() {
			out.Exception = api.NewErrorMsg(api.ErrInternal,
				"Measure is running, can not get measure result now")
			return
		}
		result, callErr := perfTest.GetMeasureResult(metric)
		if callErr != nil {
			out.Exception = *callErr
			return
		}
		out.ResultValue = result
	})
}

func registerDestroy(server *api.Server) {
	server.AddHandler("PerfTest.destroy", func(in *api.CallInfo, out *api.ReplyInfo) {
		obj := api.GetBackendObject(in.CallerObjRef, out)
		if out.Exception.Code != api.NoError {
			return
		}
		perfTest, ok := obj.(*PerfTest)
		if !ok {
			out.Exception = api.NewErrorMsg(api.ErrInternal, "Object does not exist")
			return
		}
		if perfTest.IsMeasureRunning() {
			out.Exception = api.NewErrorMsg(api.ErrInternal,
				"Measure is running, can not destroy now")
			return
		}
		if err := perfTest.Destroy(); err != nil {
			out.Exception = *err
			return
		}
		gcCall := api.CallInfo{ApiID: "BackendObjectsCleaner", ParamList: []any{in.CallerObjRef}}
		gcReply := api.NewReply()
		api.BackendObjectsCleaner(&gcCall, &gcReply)
	})
}
