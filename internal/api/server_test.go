// server_test.go — Tests for the dispatcher, the argument checker and the
// backend object registry.
package api

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddRemoveHandler(t *testing.T) {
	server := Get()
	apiID := "testApi"
	require.False(t, server.HasHandlerFor(apiID))
	server.AddHandler(apiID, func(in *CallInfo, out *ReplyInfo) {})
	require.True(t, server.HasHandlerFor(apiID))
	server.RemoveHandler(apiID)
	require.False(t, server.HasHandlerFor(apiID))
}

func TestCallWithoutHandler(t *testing.T) {
	server := Get()
	call := CallInfo{ApiID: "testApi.missing"}
	reply := NewReply()
	server.Call(&call, &reply)
	require.Equal(t, ErrInternal, reply.Exception.Code)
	require.Contains(t, reply.Exception.Message, "No handler found")
}

func TestCallDispatchesToHandler(t *testing.T) {
	server := Get()
	apiID := "testApi.echo"
	server.AddHandler(apiID, func(in *CallInfo, out *ReplyInfo) {
		out.ResultValue = in.ParamList[0]
	})
	defer server.RemoveHandler(apiID)
	call := CallInfo{ApiID: apiID, ParamList: []any{"hello"}}
	reply := NewReply()
	server.Call(&call, &reply)
	require.Equal(t, NoError, reply.Exception.Code)
	require.Equal(t, "hello", reply.ResultValue)
}

func TestPreprocessorFailureAbortsDispatch(t *testing.T) {
	server := Get()
	apiID := "testApi.preproc"
	invoked := false
	server.AddHandler(apiID, func(in *CallInfo, out *ReplyInfo) { invoked = true })
	defer server.RemoveHandler(apiID)
	server.AddCommonPreprocessor("Rejector", func(in *CallInfo, out *ReplyInfo) {
		if in.ApiID == apiID {
			out.Exception = NewErrorMsg(ErrInvalidInput, "rejected")
		}
	})
	defer server.RemoveCommonPreprocessor("Rejector")

	call := CallInfo{ApiID: apiID}
	reply := NewReply()
	server.Call(&call, &reply)
	require.Equal(t, ErrInvalidInput, reply.Exception.Code)
	require.Equal(t, "(PreProcessing: Rejector)rejected", reply.Exception.Message)
	require.False(t, invoked, "handler must not run after pre-processor failure")
}

func TestHandlerPanicBecomesInternal(t *testing.T) {
	server := Get()
	apiID := "testApi.panics"
	server.AddHandler(apiID, func(in *CallInfo, out *ReplyInfo) {
		panic("boom")
	})
	defer server.RemoveHandler(apiID)
	call := CallInfo{ApiID: apiID}
	reply := NewReply()
	server.Call(&call, &reply)
	require.Equal(t, ErrInternal, reply.Exception.Code)
	require.Contains(t, reply.Exception.Message, "Handler failed")
	require.Contains(t, reply.Exception.Message, "boom")
}

func TestCallbackRequiresHandler(t *testing.T) {
	server := Get()
	server.SetCallbackHandler(nil)
	call := CallInfo{ApiID: "PerfTest.run"}
	reply := NewReply()
	server.Callback(&call, &reply)
	require.Equal(t, ErrInternal, reply.Exception.Code)
	require.Equal(t, "No callback handler set", reply.Exception.Message)

	server.SetCallbackHandler(func(in *CallInfo, out *ReplyInfo) {
		out.ResultValue = "handled"
	})
	defer server.SetCallbackHandler(nil)
	reply = NewReply()
	server.Callback(&call, &reply)
	require.Equal(t, NoError, reply.Exception.Code)
	require.Equal(t, "handled", reply.ResultValue)
}

func TestCheckerRejectsBadArgs(t *testing.T) {
	server := Get()
	// the checker knows PerfTest.create from the static signature table;
	// install a recording handler so no perftest machinery is involved
	invoked := false
	server.AddHandler("PerfTest.create", func(in *CallInfo, out *ReplyInfo) { invoked = true })
	defer server.RemoveHandler("PerfTest.create")

	t.Run("wrong arg count", func(t *testing.T) {
		invoked = false
		call := CallInfo{ApiID: "PerfTest.create", ParamList: []any{}}
		reply := NewReply()
		server.Call(&call, &reply)
		require.Equal(t, ErrInvalidInput, reply.Exception.Code)
		require.Contains(t, reply.Exception.Message, "Illegal argument count")
		require.False(t, invoked)
	})

	t.Run("wrong arg type", func(t *testing.T) {
		invoked = false
		call := CallInfo{ApiID: "PerfTest.create", ParamList: []any{"not an object"}}
		reply := NewReply()
		server.Call(&call, &reply)
		require.Equal(t, ErrInvalidInput, reply.Exception.Code)
		require.Contains(t, reply.Exception.Message, "Check arg0 failed")
		require.False(t, invoked)
	})

	t.Run("unknown strategy property", func(t *testing.T) {
		invoked = false
		call := CallInfo{ApiID: "PerfTest.create", ParamList: []any{map[string]any{
			"metrics":    []any{float64(0)},
			"actionCode": "js_callback#1",
			"bogus":      true,
		}}}
		reply := NewReply()
		server.Call(&call, &reply)
		require.Equal(t, ErrInvalidInput, reply.Exception.Code)
		require.Contains(t, reply.Exception.Message, "Illegal property of PerfTestStrategy")
		require.False(t, invoked)
	})

	t.Run("negative int rejected", func(t *testing.T) {
		invoked = false
		call := CallInfo{ApiID: "PerfTest.create", ParamList: []any{map[string]any{
			"metrics":    []any{float64(-1)},
			"actionCode": "js_callback#1",
		}}}
		reply := NewReply()
		server.Call(&call, &reply)
		require.Equal(t, ErrInvalidInput, reply.Exception.Code)
		require.False(t, invoked)
	})

	t.Run("valid args reach handler", func(t *testing.T) {
		invoked = false
		call := CallInfo{ApiID: "PerfTest.create", ParamList: []any{map[string]any{
			"metrics":    []any{float64(0)},
			"actionCode": "js_callback#1",
		}}}
		reply := NewReply()
		server.Call(&call, &reply)
		require.Equal(t, NoError, reply.Exception.Code)
		require.True(t, invoked)
	})
}

type fakeBackendObject struct{}

func (fakeBackendObject) FrontendClassDef() *ClassDef { return &PerfTestDef }

func TestBackendObjectRegistry(t *testing.T) {
	refPattern := regexp.MustCompile(`^PerfTest#\d+$`)

	ref1 := StoreBackendObject(fakeBackendObject{}, "")
	ref2 := StoreBackendObject(fakeBackendObject{}, "")
	require.Regexp(t, refPattern, ref1)
	require.Regexp(t, refPattern, ref2)
	require.NotEqual(t, ref1, ref2, "refs must be unique")

	reply := NewReply()
	require.NotNil(t, GetBackendObject(ref1, &reply))
	require.Equal(t, NoError, reply.Exception.Code)

	// child object owned by ref1 dies with it
	child := StoreBackendObject(fakeBackendObject{}, ref1)
	in := CallInfo{ApiID: "BackendObjectsCleaner", ParamList: []any{ref1}}
	out := NewReply()
	BackendObjectsCleaner(&in, &out)

	reply = NewReply()
	require.Nil(t, GetBackendObject(ref1, &reply))
	require.Equal(t, ErrInternal, reply.Exception.Code)
	require.Equal(t, "Object does not exist", reply.Exception.Message)

	reply = NewReply()
	require.Nil(t, GetBackendObject(child, &reply))
	require.Equal(t, ErrInternal, reply.Exception.Code)

	reply = NewReply()
	require.NotNil(t, GetBackendObject(ref2, &reply))

	// unknown refs are skipped without error
	in = CallInfo{ApiID: "BackendObjectsCleaner", ParamList: []any{"PerfTest#99999", ref2}}
	out = NewReply()
	BackendObjectsCleaner(&in, &out)
	require.Equal(t, NoError, out.Exception.Code)
}

func TestParseMethodSignature(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		signature string
		types     []string
		defaulted int
	}{
		{"create", "(PerfTestStrategy):PerfTest", []string{"PerfTestStrategy", "PerfTest"}, 0},
		{"run", "():void", []string{"void"}, 0},
		{"getMeasureResult", "(int):PerfMeasureResult", []string{"int", "PerfMeasureResult"}, 0},
		{"defaulted args", "(int,string?):void", []string{"int", "string", "void"}, 1},
		{"array arg", "([int]):void", []string{"[int]", "void"}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			sig := parseMethodSignature(tc.signature)
			require.Equal(t, tc.types, sig.types)
			require.Equal(t, tc.defaulted, sig.defaulted)
		})
	}
}

func TestReentrantDispatch(t *testing.T) {
	server := Get()
	outer := "testApi.outer"
	inner := "testApi.inner"
	server.AddHandler(inner, func(in *CallInfo, out *ReplyInfo) {
		out.ResultValue = "inner done"
	})
	defer server.RemoveHandler(inner)
	server.AddHandler(outer, func(in *CallInfo, out *ReplyInfo) {
		nested := CallInfo{ApiID: inner}
		nestedReply := NewReply()
		server.Call(&nested, &nestedReply)
		out.ResultValue = nestedReply.ResultValue
	})
	defer server.RemoveHandler(outer)

	call := CallInfo{ApiID: outer}
	reply := NewReply()
	server.Call(&call, &reply)
	require.Equal(t, NoError, reply.Exception.Code)
	require.Equal(t, "inner done", reply.ResultValue)
}
