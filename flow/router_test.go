package flow

import (
	"context"
	"net"
	"testing"

	"github.com/endyjasmi/foundationdb/uid"
	"github.com/endyjasmi/foundationdb/wire"
)

func TestRouterDispatchesToRegisteredWellKnownHandler(t *testing.T) {
	called := false
	router := NewRouter(RouterConfig{
		Handlers: map[uid.WLTOKEN]Handler{
			uid.WLTOKENPingPacket: func(_ context.Context, msg FlowMessage) (*FlowMessage, error) {
				called = true
				reply := NewFlowMessage(msg.Flow, wire.Frame{Token: msg.Frame.Token})
				return &reply, nil
			},
		},
	})

	msg := NewFlowMessage(Flow{}, wire.Frame{Token: uid.WellKnownUID(uid.WLTOKENPingPacket), Payload: []byte("12345678")})
	reply, err := router.Dispatch(context.Background(), msg)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !called {
		t.Fatalf("handler was not invoked")
	}
	if reply == nil {
		t.Fatalf("expected a reply")
	}
}

func TestRouterSynthesizesEndpointNotFoundForUnhandledWellKnown(t *testing.T) {
	router := NewRouter(RouterConfig{})

	src := RemotePeer(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4500})
	msg := NewFlowMessage(Flow{Src: src}, wire.Frame{Token: uid.WellKnownUID(uid.WLTOKENAuthTenant), Payload: []byte("12345678")})

	reply, err := router.Dispatch(context.Background(), msg)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if reply == nil {
		t.Fatalf("expected a synthesized EndpointNotFound reply")
	}
	if token, ok := uid.Classify(reply.Frame.Token); !ok || token != uid.WLTOKENEndpointNotFound {
		t.Fatalf("reply not addressed with EndpointNotFound: %+v", reply.Frame.Token)
	}
}

func TestRouterDeliversEphemeralReplyToPendingEntry(t *testing.T) {
	router := NewRouter(RouterConfig{})
	token := uid.New()

	ch, err := router.pending.register(token)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	msg := NewFlowMessage(Flow{}, wire.Frame{Token: token, Payload: []byte("12345678")})
	reply, err := router.Dispatch(context.Background(), msg)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if reply != nil {
		t.Fatalf("a delivered reply must not also be re-enqueued as a frame: %+v", reply)
	}

	res := <-ch
	if res.msg == nil || res.msg.Frame.Token != token {
		t.Fatalf("unexpected pending result: %+v", res)
	}
}

func TestRouterSynthesizesEndpointNotFoundForUnknownEphemeralToken(t *testing.T) {
	router := NewRouter(RouterConfig{})
	src := RemotePeer(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4500})

	msg := NewFlowMessage(Flow{Src: src}, wire.Frame{Token: uid.New(), Payload: []byte("12345678")})
	reply, err := router.Dispatch(context.Background(), msg)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if reply == nil {
		t.Fatalf("expected a synthesized EndpointNotFound reply")
	}
	if token, ok := uid.Classify(reply.Frame.Token); !ok || token != uid.WLTOKENEndpointNotFound {
		t.Fatalf("reply not addressed with EndpointNotFound: %+v", reply.Frame.Token)
	}
}
