// handlers_test.go — End-to-end tests of the PerfTest.* api handlers
// through the dispatcher.
package perftest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openharmony/perftest/internal/api"
)

func createCall(strategy map[string]any) (*api.CallInfo, *api.ReplyInfo) {
	call := &api.CallInfo{ApiID: "PerfTest.create", ParamList: []any{strategy}}
	reply := api.NewReply()
	return call, &reply
}

func mustCreate(t *testing.T) string {
	t.Helper()
	call, reply := createCall(map[string]any{
		"metrics":    []any{float64(0)},
		"actionCode": "js_callback#1",
		"bundleName": "com.unittest.test",
	})
	api.Get().Call(call, reply)
	require.Equal(t, api.NoError, reply.Exception.Code)
	ref, ok := reply.ResultValue.(string)
	require.True(t, ok, "create must return an object ref")
	require.Regexp(t, `^PerfTest#\d+$`, ref)
	return ref
}

func TestCreateWithEmptyMetrics(t *testing.T) {
	call, reply := createCall(map[string]any{
		"metrics":    []any{},
		"actionCode": "js_callback#1",
	})
	api.Get().Call(call, reply)
	require.Equal(t, api.ErrInvalidInput, reply.Exception.Code)
	require.Contains(t, reply.Exception.Message, "Metrics cannot be empty")
}

func TestCreateWithEmptyStrategy(t *testing.T) {
	call, reply := createCall(map[string]any{})
	api.Get().Call(call, reply)
	require.Equal(t, api.ErrInvalidInput, reply.Exception.Code)
}

func TestCreateWithIllegalMetric(t *testing.T) {
	call, reply := createCall(map[string]any{
		"metrics":    []any{float64(1000)},
		"actionCode": "js_callback#1",
	})
	api.Get().Call(call, reply)
	require.Equal(t, api.ErrInvalidInput, reply.Exception.Code)
}

func TestGetMeasureResultBeforeRun(t *testing.T) {
	ref := mustCreate(t)
	call := &api.CallInfo{
		ApiID:        "PerfTest.getMeasureResult",
		CallerObjRef: ref,
		ParamList:    []any{float64(0)},
	}
	reply := api.NewReply()
	api.Get().Call(call, &reply)
	require.Equal(t, api.ErrGetResultFailed, reply.Exception.Code)
}

func TestGetMeasureResultIllegalMetric(t *testing.T) {
	ref := mustCreate(t)
	call := &api.CallInfo{
		ApiID:        "PerfTest.getMeasureResult",
		CallerObjRef: ref,
		ParamList:    []any{float64(1000)},
	}
	reply := api.NewReply()
	api.Get().Call(call, &reply)
	require.Equal(t, api.ErrInvalidInput, reply.Exception.Code)
}

func TestRunWithoutCallbackChannel(t *testing.T) {
	// no callback handler installed: the action callback cannot reach the
	// client, the run aborts
	api.Get().SetCallbackHandler(nil)
	ref := mustCreate(t)
	call := &api.CallInfo{ApiID: "PerfTest.run", CallerObjRef: ref}
	reply := api.NewReply()
	api.Get().Call(call, &reply)
	require.Equal(t, api.ErrInternal, reply.Exception.Code)
}

func TestDestroyCascadesAndEmitsCallback(t *testing.T) {
	var callbackAPIs []string
	var callbackParams [][]any
	api.Get().SetCallbackHandler(func(in *api.CallInfo, out *api.ReplyInfo) {
		callbackAPIs = append(callbackAPIs, in.ApiID)
		callbackParams = append(callbackParams, in.ParamList)
	})
	defer api.Get().SetCallbackHandler(nil)

	ref := mustCreate(t)
	call := &api.CallInfo{ApiID: "PerfTest.destroy", CallerObjRef: ref}
	reply := api.NewReply()
	api.Get().Call(call, &reply)
	require.Equal(t, api.NoError, reply.Exception.Code)

	// the client was asked to release the live code refs
	require.Equal(t, []string{"PerfTest.destroy"}, callbackAPIs)
	require.Len(t, callbackParams, 1)
	refs, ok := callbackParams[0][0].([]any)
	require.True(t, ok)
	require.Contains(t, refs, "js_callback#1")

	// the ref is gone: subsequent calls see a missing object
	call = &api.CallInfo{ApiID: "PerfTest.run", CallerObjRef: ref}
	reply = api.NewReply()
	api.Get().Call(call, &reply)
	require.Equal(t, api.ErrInternal, reply.Exception.Code)
	require.Equal(t, "Object does not exist", reply.Exception.Message)
}

func TestDestroyWithUnknownRef(t *testing.T) {
	call := &api.CallInfo{ApiID: "PerfTest.destroy", CallerObjRef: "PerfTest#424242"}
	reply := api.NewReply()
	api.Get().Call(call, &reply)
	require.Equal(t, api.ErrInternal, reply.Exception.Code)
	require.Equal(t, "Object does not exist", reply.Exception.Message)
}
