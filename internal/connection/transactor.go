// transactor.go — The api-caller stub/proxy pair layered over the bus, plus
// the wire envelope codec. Both endpoints expose the same surface; only the
// discovery protocol differs (see client.go / server.go).
package connection

import (
	"encoding/json"
	"errors"

	"github.com/openharmony/perftest/internal/api"
)

// Transaction codes of the api-caller interface.
const (
	TransIDCall          uint32 = 1
	TransIDSetBackCaller uint32 = 2
)

// ApiCallHandler handles one api invocation.
type ApiCallHandler func(in *api.CallInfo, out *api.ReplyInfo)

// wireRequest is the request envelope: {api, this?, args}.
type wireRequest struct {
	Api  string `json:"api"`
	This string `json:"this,omitempty"`
	Args []any  `json:"args"`
}

// wireReply is the reply envelope: {result} or {exception:{code,message}}.
type wireReply struct {
	Result    any            `json:"result,omitempty"`
	Exception *api.CallError `json:"exception,omitempty"`
}

// MarshalCall encodes a call into the request envelope.
func MarshalCall(call *api.CallInfo) ([]byte, error) {
	return json.Marshal(wireRequest{Api: call.ApiID, This: call.CallerObjRef, Args: call.ParamList})
}

// UnmarshalCall decodes the request envelope.
func UnmarshalCall(data []byte, call *api.CallInfo) error {
	var req wireRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	call.ApiID = req.Api
	call.CallerObjRef = req.This
	call.ParamList = req.Args
	return nil
}

// MarshalReply encodes a reply into the reply envelope.
func MarshalReply(reply *api.ReplyInfo) ([]byte, error) {
	if reply.Exception.Code != api.NoError {
		exception := reply.Exception
		return json.Marshal(wireReply{Exception: &exception})
	}
	return json.Marshal(wireReply{Result: reply.ResultValue})
}

// UnmarshalReply decodes the reply envelope.
func UnmarshalReply(data []byte, reply *api.ReplyInfo) error {
	var wire wireReply
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Exception != nil {
		reply.Exception = *wire.Exception
		reply.ResultValue = nil
		return nil
	}
	reply.ResultValue = wire.Result
	reply.Exception = api.OK()
	return nil
}

// CallerStub is the local end of the api-caller interface. It serves Call
// transactions through the installed call handler and hands received
// back-caller objects to the back-caller handler.
type CallerStub struct {
	local             *LocalObject
	handler           ApiCallHandler
	backCallerHandler func(RemoteObject)
}

// NewCallerStub builds a stub with no handlers installed.
func NewCallerStub() *CallerStub {
	s := &CallerStub{}
	s.local = NewLocalObject(s.onRemoteRequest)
	return s
}

// SetCallHandler installs the api invocation handler.
func (s *CallerStub) SetCallHandler(handler ApiCallHandler) {
	s.handler = handler
}

// SetBackCallerHandler installs the receiver of back-caller registrations.
func (s *CallerStub) SetBackCallerHandler(handler func(RemoteObject)) {
	s.backCallerHandler = handler
}

// AsObject exposes the stub as a bus object.
func (s *CallerStub) AsObject() *LocalObject {
	return s.local
}

func (s *CallerStub) onRemoteRequest(code uint32, data *Parcel, reply *Parcel) error {
	switch code {
	case TransIDCall:
		call := api.CallInfo{}
		out := api.NewReply()
		if err := UnmarshalCall(data.Data, &call); err != nil {
			out.Exception = api.NewErrorMsg(api.ErrInternal, "Failed to parse raw api call: "+err.Error())
		} else if s.handler == nil {
			out.Exception = api.NewErrorMsg(api.ErrInternal, "No call handler set")
		} else {
			s.handler(&call, &out)
		}
		encoded, err := MarshalReply(&out)
		if err != nil {
			return err
		}
		reply.Data = encoded
		return nil
	case TransIDSetBackCaller:
		if data.Object == nil {
			return errors.New("back caller object missing")
		}
		if s.backCallerHandler != nil {
			s.backCallerHandler(data.Object)
		}
		return nil
	default:
		return errors.New("unknown transaction code")
	}
}

// CallerProxy drives the remote end of the api-caller interface.
type CallerProxy struct {
	remote RemoteObject
}

// NewCallerProxy wraps a remote object obtained through discovery.
func NewCallerProxy(remote RemoteObject) *CallerProxy {
	return &CallerProxy{remote: remote}
}

// Call invokes the api on the peer and decodes the reply. Transport
// failures surface as Internal.
func (p *CallerProxy) Call(call *api.CallInfo, reply *api.ReplyInfo) {
	encoded, err := MarshalCall(call)
	if err != nil {
		reply.Exception = api.NewErrorMsg(api.ErrInternal, "Failed to encode api call: "+err.Error())
		return
	}
	var out Parcel
	if err := p.remote.SendRequest(TransIDCall, &Parcel{Data: encoded}, &out); err != nil {
		reply.Exception = api.NewErrorMsg(api.ErrInternal, "ipc transaction failed: "+err.Error())
		return
	}
	if err := UnmarshalReply(out.Data, reply); err != nil {
		reply.Exception = api.NewErrorMsg(api.ErrInternal, "Failed to parse api reply: "+err.Error())
	}
}

// SetBackCaller registers the local stub with the peer for callbacks.
func (p *CallerProxy) SetBackCaller(caller RemoteObject) bool {
	var out Parcel
	if err := p.remote.SendRequest(TransIDSetBackCaller, &Parcel{Object: caller}, &out); err != nil {
		log.Errorw("set back caller failed", "err", err)
		return false
	}
	return true
}

// SetRemoteDeathCallback installs a death recipient on the peer object.
func (p *CallerProxy) SetRemoteDeathCallback(recipient DeathRecipient) bool {
	return p.remote.AddDeathRecipient(recipient)
}

// UnsetRemoteDeathCallback removes a death recipient from the peer object.
func (p *CallerProxy) UnsetRemoteDeathCallback(recipient DeathRecipient) bool {
	return p.remote.RemoveDeathRecipient(recipient)
}

// DeathRecipientForwarder adapts a plain function to DeathRecipient. The
// owning endpoint keeps the recipient; the recipient holds only this
// non-owning closure back into the endpoint, which breaks the
// endpoint→proxy→recipient ownership cycle.
type DeathRecipientForwarder struct {
	handler func()
}

// NewDeathRecipientForwarder wraps the handler.
func NewDeathRecipientForwarder(handler func()) *DeathRecipientForwarder {
	return &DeathRecipientForwarder{handler: handler}
}

// OnRemoteDied implements DeathRecipient.
func (f *DeathRecipientForwarder) OnRemoteDied() {
	if f.handler != nil {
		f.handler()
	}
}
