// client.go — Client endpoint of the api-caller connection. Discovers the
// server stub through the published broadcast, registers the back-caller,
// and serializes outbound transactions one at a time.
package connection

import (
	"sync"
	"time"

	"github.com/openharmony/perftest/internal/api"
)

// ApiCallerClient connects a test-author process to the perftest daemon.
type ApiCallerClient struct {
	hub *EventHub

	mu            sync.Mutex
	connectState  api.ConnectionStat
	caller        *CallerStub
	remoteCaller  *CallerProxy
	peerDeath     *DeathRecipientForwarder
	onDeath       func()
	processingApi string
}

// NewApiCallerClient builds a client endpoint over the given event hub.
func NewApiCallerClient(hub *EventHub) *ApiCallerClient {
	return &ApiCallerClient{hub: hub, connectState: api.Uninit}
}

// InitAndConnectPeer waits for the server's published caller object,
// registers the local stub as back-caller and installs death notification.
// The handler serves callbacks arriving from the server.
func (c *ApiCallerClient) InitAndConnectPeer(token string, handler ApiCallHandler) bool {
	log.Infow("client InitAndConnectPeer begin", "token", token)
	c.mu.Lock()
	if c.connectState == api.Connected {
		c.mu.Unlock()
		log.Infow("client has connected with server")
		return true
	}
	c.connectState = api.Disconnected
	c.caller = NewCallerStub()
	c.caller.SetCallHandler(handler)
	c.mu.Unlock()

	remoteObject := c.waitForPublishedCaller(token)
	if remoteObject == nil {
		log.Errorw("failed to get apiCaller object from peer")
		return false
	}
	remoteCaller := NewCallerProxy(remoteObject)
	if !remoteCaller.SetBackCaller(c.caller.AsObject()) {
		log.Errorw("failed to set backcaller to server")
		return false
	}
	peerDeath := NewDeathRecipientForwarder(c.onPeerDeath)
	if !remoteCaller.SetRemoteDeathCallback(peerDeath) {
		log.Errorw("failed to register remote caller death recipient")
		return false
	}
	c.mu.Lock()
	c.remoteCaller = remoteCaller
	c.peerDeath = peerDeath
	c.connectState = api.Connected
	c.mu.Unlock()
	log.Infow("client InitAndConnectPeer done")
	return true
}

// Transact forwards one call to the server. Calls are strictly serialized:
// a call arriving while another is in flight fails with ApiUsage.
func (c *ApiCallerClient) Transact(call *api.CallInfo, reply *api.ReplyInfo) {
	c.mu.Lock()
	if c.connectState == api.Disconnected {
		c.mu.Unlock()
		reply.Exception = api.NewErrorMsg(api.ErrInternal, "ipc connection is dead")
		return
	}
	if c.processingApi != "" {
		processing := c.processingApi
		c.mu.Unlock()
		reply.Exception = api.Errorf(api.ErrAPIUsage,
			"perftest-api does not allow calling concurrently, current processing: %s, incoming: %s",
			processing, call.ApiID)
		return
	}
	c.processingApi = call.ApiID
	remoteCaller := c.remoteCaller
	c.mu.Unlock()

	remoteCaller.Call(call, reply)

	c.mu.Lock()
	c.processingApi = ""
	c.mu.Unlock()
}

// SetDeathCallback installs the user death callback.
func (c *ApiCallerClient) SetDeathCallback(callback func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDeath = callback
}

// GetConnectionStat returns the connection state.
func (c *ApiCallerClient) GetConnectionStat() api.ConnectionStat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectState
}

// Finalize releases endpoint resources; the peer observes the stub death.
func (c *ApiCallerClient) Finalize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.caller != nil {
		c.caller.AsObject().Kill()
	}
}

// waitForPublishedCaller subscribes to the publish broadcast and waits up to
// the connection timeout for the server stub.
func (c *ApiCallerClient) waitForPublishedCaller(token string) RemoteObject {
	received := make(chan RemoteObject, 1)
	sub := c.hub.Subscribe(api.PublishEventPrefix+token, func(data EventData) {
		remote, ok := data.Objects[token]
		if !ok || remote == nil {
			log.Warnw("published event carries no caller object")
			return
		}
		select {
		case received <- remote:
		default:
		}
	})
	defer sub.Close()
	select {
	case remote := <-received:
		return remote
	case <-time.After(api.WaitConnTimeoutMs * time.Millisecond):
		log.Errorw("wait for apiCaller publish by server timeout")
		return nil
	}
}

func (c *ApiCallerClient) onPeerDeath() {
	log.Warnw("connection with peer died")
	c.mu.Lock()
	c.connectState = api.Disconnected
	callback := c.onDeath
	c.mu.Unlock()
	if callback != nil {
		callback()
	}
}
