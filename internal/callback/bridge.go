// bridge.go — Client-side bridge for server-originated callbacks. The
// language binding registers code handles here; when the server asks for
// "PerfTest.run" the bridge invokes the handle on a worker goroutine and
// blocks the dispatching goroutine on a completion signal under the
// requested timeout. Timing out leaks the in-flight invocation on purpose —
// the handle is released on the next destroy.
package callback

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openharmony/perftest/internal/api"
	"github.com/openharmony/perftest/internal/logging"
)

var log = logging.Named("callback")

// CodeHandle is one registered piece of client code. The handle reports
// completion by invoking finish; returning a non-nil error marks the
// invocation as failed by exception.
type CodeHandle func(finish func(res bool)) error

var (
	refMu     sync.Mutex
	codeRefs  = map[string]CodeHandle{}
	refNumber uint64
)

// RegisterCodeHandle stores the handle and returns its callback ref.
func RegisterCodeHandle(handle CodeHandle) string {
	refMu.Lock()
	defer refMu.Unlock()
	refNumber++
	ref := "js_callback#" + strconv.FormatUint(refNumber, 10)
	codeRefs[ref] = handle
	log.Infow("registered code handle", "ref", ref)
	return ref
}

// ReleaseCodeHandle drops the handle; unknown refs are ignored.
func ReleaseCodeHandle(ref string) {
	refMu.Lock()
	defer refMu.Unlock()
	delete(codeRefs, ref)
}

// RegisteredCount reports the number of live handles.
func RegisteredCount() int {
	refMu.Lock()
	defer refMu.Unlock()
	return len(codeRefs)
}

func lookupCodeHandle(ref string) (CodeHandle, bool) {
	refMu.Lock()
	defer refMu.Unlock()
	handle, ok := codeRefs[ref]
	return handle, ok
}

// completionSignal is shared by the dispatching goroutine and the worker
// invoking the code handle.
type completionSignal struct {
	once   sync.Once
	done   chan struct{}
	res    bool
	errMsg string
}

func newCompletionSignal() *completionSignal {
	return &completionSignal{done: make(chan struct{})}
}

// release resolves the signal exactly once.
func (s *completionSignal) release(res bool, errMsg string) {
	s.once.Do(func() {
		s.res = res
		s.errMsg = errMsg
		close(s.done)
	})
}

// HandleCallbackEvent dispatches one callback request from the server end.
func HandleCallbackEvent(in *api.CallInfo, out *api.ReplyInfo) {
	switch in.ApiID {
	case "PerfTest.run":
		executeCallback(in, out)
	case "PerfTest.destroy":
		destroyCallbacks(in, out)
	default:
		out.Exception = api.NewErrorMsg(api.ErrInternal, "Api does not support callback: "+in.ApiID)
		log.Errorw("unsupported callback api", "api", in.ApiID)
	}
}

// executeCallback runs the referenced handle and waits for completion.
// Params: [callbackId, timeoutMs].
func executeCallback(in *api.CallInfo, out *api.ReplyInfo) {
	if len(in.ParamList) < 2 {
		out.Exception = api.NewErrorMsg(api.ErrCallbackFailed, "Illegal callback parameters")
		return
	}
	callbackID, okID := in.ParamList[0].(string)
	timeoutMs, okTimeout := in.ParamList[1].(float64)
	if !okID || !okTimeout {
		out.Exception = api.NewErrorMsg(api.ErrCallbackFailed, "Illegal callback parameters")
		return
	}
	handle, found := lookupCodeHandle(callbackID)
	if !found {
		out.Exception = api.NewErrorMsg(api.ErrCallbackFailed,
			"JsCallbackFunction is not referenced: "+callbackID)
		log.Errorw("callback ref missing", "callbackId", callbackID)
		return
	}
	invocation := uuid.NewString()
	log.Infow("begin to callback function", "callbackId", callbackID, "invocation", invocation)
	signal := newCompletionSignal()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				signal.release(false, fmt.Sprintf("Exception raised during call js_cb_function: %v", r))
			}
		}()
		if err := handle(func(res bool) { signal.release(res, "") }); err != nil {
			signal.release(false, "Exception raised during call js_cb_function: "+err.Error())
		}
	}()
	waitForCallbackFinish(signal, time.Duration(timeoutMs)*time.Millisecond, invocation, out)
}

// waitForCallbackFinish blocks until the signal resolves or the timeout
// elapses.
func waitForCallbackFinish(signal *completionSignal, timeout time.Duration, invocation string, out *api.ReplyInfo) {
	select {
	case <-signal.done:
	case <-time.After(timeout):
		log.Errorw("callback timed out", "invocation", invocation, "timeout", timeout)
		out.Exception = api.NewErrorMsg(api.ErrCallbackFailed, "Code execution has been timeout.")
		return
	}
	if signal.errMsg != "" {
		out.Exception = api.NewErrorMsg(api.ErrCallbackFailed, signal.errMsg)
		log.Errorw("callback raised", "invocation", invocation, "err", signal.errMsg)
		return
	}
	if !signal.res {
		out.Exception = api.NewErrorMsg(api.ErrCallbackFailed, "Callback execution return false")
	}
	log.Infow("callback finished", "invocation", invocation, "res", signal.res)
}

// destroyCallbacks releases every handle named in the first parameter.
// Params: [[callbackId, ...]].
func destroyCallbacks(in *api.CallInfo, out *api.ReplyInfo) {
	if len(in.ParamList) < 1 {
		return
	}
	ids, ok := in.ParamList[0].([]any)
	if !ok {
		return
	}
	for _, raw := range ids {
		if id, isString := raw.(string); isString {
			ReleaseCodeHandle(id)
		}
	}
}
