// server.go — The front-end api dispatcher. A single process-wide registry
// resolves apiIds to handlers, runs the common pre-processors, and forwards
// server-originated callbacks through the installed callback handler.
//
// Call is re-entrant: a handler may drive a callback whose reply path issues
// a nested Call on the same goroutine, so no lock is held across handler
// invocation.
package api

import (
	"fmt"
	"sync"

	"github.com/openharmony/perftest/internal/logging"
)

var log = logging.Named("api")

// InvokeHandler handles one api invocation request.
type InvokeHandler func(in *CallInfo, out *ReplyInfo)

// Server accepts and dispatches api invocation requests.
type Server struct {
	mu              sync.RWMutex
	handlers        map[string]InvokeHandler
	preprocessors   []namedProcessor
	callbackHandler InvokeHandler
}

type namedProcessor struct {
	name      string
	processor InvokeHandler
}

var (
	serverOnce sync.Once
	server     *Server
)

// Get returns the singleton server with the standing pre-processor and the
// backend-objects cleaner installed.
func Get() *Server {
	serverOnce.Do(func() {
		server = &Server{handlers: map[string]InvokeHandler{}}
		server.AddCommonPreprocessor("ApiCallInfoChecker", CheckCallInfo)
		server.AddHandler("BackendObjectsCleaner", BackendObjectsCleaner)
	})
	return server
}

// AddHandler registers an api invocation handler. Nil handlers are ignored.
func (s *Server) AddHandler(apiID string, handler InvokeHandler) {
	if handler == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[apiID] = handler
}

// HasHandlerFor reports whether a handler is registered for the api.
func (s *Server) HasHandlerFor(apiID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.handlers[apiID]
	return ok
}

// RemoveHandler removes the api invocation handler.
func (s *Server) RemoveHandler(apiID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, apiID)
}

// AddCommonPreprocessor appends a pre-processor running before every
// dispatch, in insertion order. Nil processors are ignored.
func (s *Server) AddCommonPreprocessor(name string, processor InvokeHandler) {
	if processor == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.preprocessors {
		if p.name == name {
			return
		}
	}
	s.preprocessors = append(s.preprocessors, namedProcessor{name: name, processor: processor})
}

// RemoveCommonPreprocessor removes the named pre-processor.
func (s *Server) RemoveCommonPreprocessor(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.preprocessors {
		if p.name == name {
			s.preprocessors = append(s.preprocessors[:i], s.preprocessors[i+1:]...)
			return
		}
	}
}

// SetCallbackHandler installs the handler forwarding server-originated
// callbacks to the client; at most one is active.
func (s *Server) SetCallbackHandler(handler InvokeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbackHandler = handler
}

// Callback forwards a server→client callback request synchronously on the
// calling goroutine. The server imposes no timeout of its own.
func (s *Server) Callback(in *CallInfo, out *ReplyInfo) {
	s.mu.RLock()
	handler := s.callbackHandler
	s.mu.RUnlock()
	if handler == nil {
		out.Exception = NewErrorMsg(ErrInternal, "No callback handler set")
		return
	}
	log.Infow("forward callback", "api", in.ApiID)
	handler(in, out)
}

// Call dispatches one api invocation: handler lookup, pre-processing, then
// handler invocation. Pre-processor failures abort dispatch with the
// "(PreProcessing: <name>)" prefix; handler panics surface as Internal.
func (s *Server) Call(in *CallInfo, out *ReplyInfo) {
	log.Infow("begin to invoke api", "api", in.ApiID, "paramCount", len(in.ParamList))
	dispatchCounter.WithLabelValues(in.ApiID).Inc()
	s.mu.RLock()
	handler, found := s.handlers[in.ApiID]
	processors := make([]namedProcessor, len(s.preprocessors))
	copy(processors, s.preprocessors)
	s.mu.RUnlock()
	if !found {
		out.Exception = NewErrorMsg(ErrInternal, "No handler found for api '"+in.ApiID+"'")
		return
	}
	for _, p := range processors {
		if !invokeGuarded(p.processor, in, out) {
			out.Exception = NewErrorMsg(ErrInternal, "Preprocessor failed: "+out.Exception.Message)
			return
		}
		if out.Exception.Code != NoError {
			out.Exception.Message = "(PreProcessing: " + p.name + ")" + out.Exception.Message
			return
		}
	}
	if !invokeGuarded(handler, in, out) {
		out.Exception = NewErrorMsg(ErrInternal, "Handler failed: "+out.Exception.Message)
	}
}

// invokeGuarded runs the handler converting panics into a false return with
// the panic text left in the reply message.
func invokeGuarded(handler InvokeHandler, in *CallInfo, out *ReplyInfo) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			out.Exception.Message = fmt.Sprint(r)
			ok = false
		}
	}()
	handler(in, out)
	return true
}

// Transact is the dispatch entry point handed to the IPC endpoint.
func Transact(in *CallInfo, out *ReplyInfo) {
	Get().Call(in, out)
}
