// defines.go — Front-end API data types: the closed error-code set, the
// call/reply envelopes, and the static definitions of every front-end class,
// enum and json object. The numeric error codes and the method signature
// table are part of the ABI.
package api

import "fmt"

// ConnectionStat is the lifecycle state of one IPC endpoint.
type ConnectionStat uint8

const (
	Uninit ConnectionStat = iota
	Connected
	Disconnected
)

// Discovery and execution constants.
const (
	PublishEventPrefix = "perftest.api.caller.publish#"
	WaitConnTimeoutMs  = 5000
	PublishMaxRetries  = 10
	TestIterations     = 5
	ExecutionTimeoutMs = 10000
)

// ErrCode numbers the front-end error set. Values are ABI-fixed.
type ErrCode uint32

const (
	NoError                 ErrCode = 0
	ErrInitializeFailed     ErrCode = 32400001
	ErrInternal             ErrCode = 32400002
	ErrInvalidInput         ErrCode = 32400003
	ErrCallbackFailed       ErrCode = 32400004
	ErrDataCollectionFailed ErrCode = 32400005
	ErrGetResultFailed      ErrCode = 32400006
	ErrAPIUsage             ErrCode = 32400007
)

// errDesc maps error codes to their default descriptions.
var errDesc = map[ErrCode]string{
	NoError:             "No Error",
	ErrInitializeFailed: "Initialization failed.",
	ErrInternal:         "Internal error.",
	ErrInvalidInput:     "Invalid input parameter.",
}

// CallError is the exception half of a reply.
type CallError struct {
	Code    ErrCode `json:"code"`
	Message string  `json:"message"`
}

// Error implements the error interface.
func (e CallError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// OK returns the no-error value.
func OK() CallError {
	return CallError{Code: NoError, Message: errDesc[NoError]}
}

// NewError builds a CallError with the default description of the code.
func NewError(code ErrCode) CallError {
	return CallError{Code: code, Message: errDesc[code]}
}

// NewErrorMsg builds a CallError with an explicit message.
func NewErrorMsg(code ErrCode, message string) CallError {
	return CallError{Code: code, Message: message}
}

// Errorf builds a CallError with a formatted message.
func Errorf(code ErrCode, format string, args ...any) CallError {
	return CallError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CallInfo wraps one api invocation request. ParamList values follow
// encoding/json conventions (float64 numbers, map[string]any objects).
// CallingPid identifies the remote caller when the transport knows it; zero
// means the local process.
type CallInfo struct {
	ApiID        string `json:"api"`
	CallerObjRef string `json:"this,omitempty"`
	ParamList    []any  `json:"args"`
	CallingPid   int    `json:"-"`
}

// ReplyInfo wraps one api invocation reply.
type ReplyInfo struct {
	ResultValue any       `json:"result"`
	Exception   CallError `json:"exception"`
}

// NewReply returns a reply preset to null result and no error.
func NewReply() ReplyInfo {
	return ReplyInfo{ResultValue: nil, Exception: OK()}
}

// EnumValueDef specifies one front-end enumerator value.
type EnumValueDef struct {
	Name      string
	ValueJSON string
}

// EnumeratorDef specifies a front-end enumerator.
type EnumeratorDef struct {
	Name   string
	Values []EnumValueDef
}

// JSONPropDef specifies one property of a front-end json object.
type JSONPropDef struct {
	Name     string
	Type     string
	Required bool
}

// JSONDef specifies a front-end json object.
type JSONDef struct {
	Name  string
	Props []JSONPropDef
}

// MethodDef specifies a front-end class method. The signature grammar is
// "(type,type?):returnType"; a '?' suffix marks a defaulted argument.
type MethodDef struct {
	Name      string
	Signature string
	Static    bool
	Fast      bool
}

// ClassDef specifies a front-end class.
type ClassDef struct {
	Name    string
	Methods []MethodDef
}

// PerfMetricDef is the PerfMetric enumerator definition.
var PerfMetricDef = EnumeratorDef{
	Name: "PerfMetric",
	Values: []EnumValueDef{
		{"DURATION", "0"},
		{"CPU_LOAD", "1"},
		{"CPU_USAGE", "2"},
		{"MEMORY_RSS", "3"},
		{"MEMORY_PSS", "4"},
		{"APP_START_RESPONSE_TIME", "5"},
		{"APP_START_COMPLETE_TIME", "6"},
		{"PAGE_SWITCH_COMPLETE_TIME", "7"},
		{"LIST_SWIPE_FPS", "8"},
	},
}

// PerfTestStrategyDef is the PerfTestStrategy json object definition.
// actionCode/resetCode travel as callback refs registered by the client
// binding.
var PerfTestStrategyDef = JSONDef{
	Name: "PerfTestStrategy",
	Props: []JSONPropDef{
		{"metrics", "[int]", true},
		{"actionCode", "string", true},
		{"resetCode", "string", false},
		{"bundleName", "string", false},
		{"iterations", "int", false},
		{"timeout", "int", false},
	},
}

// PerfMeasureResultDef is the PerfMeasureResult json object definition.
var PerfMeasureResultDef = JSONDef{
	Name: "PerfMeasureResult",
	Props: []JSONPropDef{
		{"metric", "int", true},
		{"roundValues", "[float]", true},
		{"maximum", "float", true},
		{"minimum", "float", true},
		{"average", "float", true},
	},
}

// PerfTestDef is the PerfTest class definition.
var PerfTestDef = ClassDef{
	Name: "PerfTest",
	Methods: []MethodDef{
		{"PerfTest.create", "(PerfTestStrategy):PerfTest", true, true},
		{"PerfTest.run", "():void", false, false},
		{"PerfTest.getMeasureResult", "(int):PerfMeasureResult", false, true},
		{"PerfTest.destroy", "():void", false, true},
	},
}

// Definition tables consumed by the signature parser and the arg checker.
var (
	FrontendClassDefs = []*ClassDef{&PerfTestDef}
	FrontendEnumDefs  = []*EnumeratorDef{&PerfMetricDef}
	FrontendJSONDefs  = []*JSONDef{&PerfTestStrategyDef, &PerfMeasureResultDef}
	// DataTypeScope is the allowed in/out type vocabulary of front-end apis.
	DataTypeScope = []string{
		"int", "float", "bool", "string",
		PerfTestDef.Name, PerfMetricDef.Name, PerfTestStrategyDef.Name,
	}
)
