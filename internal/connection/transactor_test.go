// transactor_test.go — Tests for the wire codec, discovery handshake,
// transact serialization and peer-death handling over the in-process bus.
package connection

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openharmony/perftest/internal/api"
)

func TestWireEnvelopeRoundtrip(t *testing.T) {
	t.Parallel()

	call := api.CallInfo{
		ApiID:        "PerfTest.getMeasureResult",
		CallerObjRef: "PerfTest#0",
		ParamList:    []any{float64(0)},
	}
	data, err := MarshalCall(&call)
	require.NoError(t, err)
	decoded := api.CallInfo{}
	require.NoError(t, UnmarshalCall(data, &decoded))
	require.Equal(t, call.ApiID, decoded.ApiID)
	require.Equal(t, call.CallerObjRef, decoded.CallerObjRef)
	require.Equal(t, call.ParamList, decoded.ParamList)

	reply := api.NewReply()
	reply.ResultValue = "PerfTest#0"
	data, err = MarshalReply(&reply)
	require.NoError(t, err)
	require.JSONEq(t, `{"result":"PerfTest#0"}`, string(data))
	decodedReply := api.ReplyInfo{}
	require.NoError(t, UnmarshalReply(data, &decodedReply))
	require.Equal(t, "PerfTest#0", decodedReply.ResultValue)
	require.Equal(t, api.NoError, decodedReply.Exception.Code)

	reply = api.NewReply()
	reply.Exception = api.NewErrorMsg(api.ErrAPIUsage, "busy")
	data, err = MarshalReply(&reply)
	require.NoError(t, err)
	require.JSONEq(t, `{"exception":{"code":32400007,"message":"busy"}}`, string(data))
	decodedReply = api.ReplyInfo{}
	require.NoError(t, UnmarshalReply(data, &decodedReply))
	require.Equal(t, api.ErrAPIUsage, decodedReply.Exception.Code)
}

// connectPair brings up a server and client endpoint over one hub.
func connectPair(t *testing.T, serverHandler, clientHandler ApiCallHandler) (*ApiCallerServer, *ApiCallerClient) {
	t.Helper()
	hub := NewEventHub()
	server := NewApiCallerServer(hub)
	client := NewApiCallerClient(hub)

	serverDone := make(chan bool, 1)
	go func() {
		serverDone <- server.InitAndConnectPeer("token@1", serverHandler)
	}()
	require.True(t, client.InitAndConnectPeer("token@1", clientHandler))
	select {
	case ok := <-serverDone:
		require.True(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("server connect did not finish")
	}
	require.Equal(t, api.Connected, server.GetConnectionStat())
	require.Equal(t, api.Connected, client.GetConnectionStat())
	return server, client
}

func TestConnectAndTransact(t *testing.T) {
	t.Parallel()

	_, client := connectPair(t, func(in *api.CallInfo, out *api.ReplyInfo) {
		out.ResultValue = "echo:" + in.ApiID
	}, nil)

	call := api.CallInfo{ApiID: "PerfTest.run"}
	reply := api.NewReply()
	client.Transact(&call, &reply)
	require.Equal(t, api.NoError, reply.Exception.Code)
	require.Equal(t, "echo:PerfTest.run", reply.ResultValue)
}

func TestServerCallbackReachesClient(t *testing.T) {
	t.Parallel()

	server, _ := connectPair(t, nil, func(in *api.CallInfo, out *api.ReplyInfo) {
		out.ResultValue = "client saw " + in.ApiID
	})

	call := api.CallInfo{ApiID: "PerfTest.destroy"}
	reply := api.NewReply()
	server.Transact(&call, &reply)
	require.Equal(t, api.NoError, reply.Exception.Code)
	require.Equal(t, "client saw PerfTest.destroy", reply.ResultValue)
}

func TestConcurrentTransactRejected(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	_, client := connectPair(t, func(in *api.CallInfo, out *api.ReplyInfo) {
		if in.ApiID == "foo" {
			close(entered)
			<-release
		}
	}, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		call := api.CallInfo{ApiID: "foo"}
		reply := api.NewReply()
		client.Transact(&call, &reply)
	}()
	<-entered

	call := api.CallInfo{ApiID: "bar"}
	reply := api.NewReply()
	client.Transact(&call, &reply)
	require.Equal(t, api.ErrAPIUsage, reply.Exception.Code)
	require.Contains(t, reply.Exception.Message, "foo")
	require.Contains(t, reply.Exception.Message, "bar")

	close(release)
	wg.Wait()

	// the outstanding call has drained; the endpoint accepts calls again
	call = api.CallInfo{ApiID: "baz"}
	reply = api.NewReply()
	client.Transact(&call, &reply)
	require.Equal(t, api.NoError, reply.Exception.Code)
}

func TestPeerDeath(t *testing.T) {
	t.Parallel()

	server, client := connectPair(t, nil, nil)

	died := make(chan struct{}, 1)
	client.SetDeathCallback(func() { died <- struct{}{} })

	// killing the server's stub fires the client's death recipient
	server.Finalize()
	select {
	case <-died:
	case <-time.After(2 * time.Second):
		t.Fatal("death callback not invoked")
	}
	require.Equal(t, api.Disconnected, client.GetConnectionStat())

	call := api.CallInfo{ApiID: "PerfTest.run"}
	reply := api.NewReply()
	client.Transact(&call, &reply)
	require.Equal(t, api.ErrInternal, reply.Exception.Code)
	require.Equal(t, "ipc connection is dead", reply.Exception.Message)
}

func TestLocalObjectDeathRecipients(t *testing.T) {
	t.Parallel()

	obj := NewLocalObject(func(code uint32, data, reply *Parcel) error { return nil })
	fired := 0
	recipient := NewDeathRecipientForwarder(func() { fired++ })
	require.True(t, obj.AddDeathRecipient(recipient))
	require.True(t, obj.RemoveDeathRecipient(recipient))
	obj.Kill()
	require.Zero(t, fired, "removed recipient must not fire")

	obj2 := NewLocalObject(nil)
	require.True(t, obj2.AddDeathRecipient(recipient))
	obj2.Kill()
	require.Equal(t, 1, fired)
	require.False(t, obj2.AddDeathRecipient(recipient), "dead object refuses recipients")
	require.ErrorIs(t, obj2.SendRequest(TransIDCall, &Parcel{}, &Parcel{}), ErrDeadObject)
}

func TestEventHubDelivery(t *testing.T) {
	t.Parallel()

	hub := NewEventHub()
	got := make(chan EventData, 2)
	sub := hub.Subscribe("perftest.api.caller.publish#token", func(data EventData) {
		got <- data
	})
	defer sub.Close()

	require.True(t, hub.Publish(EventData{Name: "perftest.api.caller.publish#token"}))
	require.True(t, hub.Publish(EventData{Name: "other.event"}))

	select {
	case data := <-got:
		require.Equal(t, "perftest.api.caller.publish#token", data.Name)
	case <-time.After(time.Second):
		t.Fatal("subscription did not deliver")
	}
	select {
	case data := <-got:
		t.Fatalf("unexpected delivery: %v", data.Name)
	case <-time.After(50 * time.Millisecond):
	}
}
