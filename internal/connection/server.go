// server.go — Server endpoint of the api-caller connection. Publishes the
// local stub on the broadcast channel with retries until the client
// registers its back-caller, then installs death notification.
package connection

import (
	"sync"
	"time"

	"github.com/openharmony/perftest/internal/api"
)

// ApiCallerServer connects the perftest daemon to a test-author process.
type ApiCallerServer struct {
	hub *EventHub

	mu           sync.Mutex
	connectState api.ConnectionStat
	caller       *CallerStub
	remoteCaller *CallerProxy
	peerDeath    *DeathRecipientForwarder
	onDeath      func()
}

// NewApiCallerServer builds a server endpoint over the given event hub.
func NewApiCallerServer(hub *EventHub) *ApiCallerServer {
	return &ApiCallerServer{hub: hub, connectState: api.Uninit}
}

// InitAndConnectPeer publishes the local caller object and waits for the
// client's back-caller registration. The handler serves api invocations
// arriving from the client.
func (s *ApiCallerServer) InitAndConnectPeer(token string, handler ApiCallHandler) bool {
	log.Infow("server InitAndConnectPeer begin", "token", token)
	s.mu.Lock()
	s.connectState = api.Disconnected
	s.caller = NewCallerStub()
	s.caller.SetCallHandler(handler)
	s.mu.Unlock()

	remoteObject := s.publishCallerAndWaitForBackcaller(s.caller, token)
	if remoteObject == nil {
		log.Errorw("failed to get apiCaller object from peer")
		return false
	}
	remoteCaller := NewCallerProxy(remoteObject)
	peerDeath := NewDeathRecipientForwarder(s.onPeerDeath)
	if !remoteCaller.SetRemoteDeathCallback(peerDeath) {
		log.Errorw("failed to register remote caller death recipient")
		return false
	}
	s.mu.Lock()
	s.remoteCaller = remoteCaller
	s.peerDeath = peerDeath
	s.connectState = api.Connected
	s.mu.Unlock()
	log.Infow("server InitAndConnectPeer done")
	return true
}

// Transact forwards one server-originated callback to the client. The
// server side has no cross-call serialization; handlers stay re-entrant.
func (s *ApiCallerServer) Transact(call *api.CallInfo, reply *api.ReplyInfo) {
	s.mu.Lock()
	if s.connectState == api.Disconnected {
		s.mu.Unlock()
		reply.Exception = api.NewErrorMsg(api.ErrInternal, "ipc connection is dead")
		return
	}
	remoteCaller := s.remoteCaller
	s.mu.Unlock()
	remoteCaller.Call(call, reply)
}

// SetDeathCallback installs the user death callback.
func (s *ApiCallerServer) SetDeathCallback(callback func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDeath = callback
}

// GetConnectionStat returns the connection state.
func (s *ApiCallerServer) GetConnectionStat() api.ConnectionStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectState
}

// Finalize releases endpoint resources on daemon shutdown.
func (s *ApiCallerServer) Finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.caller != nil {
		s.caller.AsObject().Kill()
	}
}

// publishCallerAndWaitForBackcaller publishes the caller object on the
// broadcast channel, retrying until the back-caller registration arrives or
// the retry budget runs out.
func (s *ApiCallerServer) publishCallerAndWaitForBackcaller(caller *CallerStub, token string) RemoteObject {
	received := make(chan RemoteObject, 1)
	caller.SetBackCallerHandler(func(remote RemoteObject) {
		select {
		case received <- remote:
		default:
		}
	})
	defer caller.SetBackCallerHandler(nil)
	event := EventData{
		Name:    api.PublishEventPrefix + token,
		Objects: map[string]RemoteObject{token: caller.AsObject()},
	}
	period := time.Duration(api.WaitConnTimeoutMs/api.PublishMaxRetries) * time.Millisecond
	for tries := 0; tries < api.PublishMaxRetries; tries++ {
		if !s.hub.Publish(event) {
			log.Errorw("publish commonEvent failed")
		}
		select {
		case remote := <-received:
			return remote
		case <-time.After(period):
		}
	}
	return nil
}

func (s *ApiCallerServer) onPeerDeath() {
	log.Warnw("connection with peer died")
	s.mu.Lock()
	s.connectState = api.Disconnected
	callback := s.onDeath
	s.mu.Unlock()
	if callback != nil {
		callback()
	}
}
