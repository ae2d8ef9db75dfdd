package flow

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/endyjasmi/foundationdb/uid"
	"github.com/endyjasmi/foundationdb/wire"
)

func TestListenerAcceptsAndHandshakes(t *testing.T) {
	router := NewRouter(RouterConfig{
		Handlers: map[uid.WLTOKEN]Handler{
			uid.WLTOKENPingPacket: PingHandler(rawReplyTokenExtractor),
		},
	})

	accepted := make(chan *ConnectionHandler, 1)
	ln, err := NewListener("127.0.0.1:0", ListenerConfig{
		Local:    wire.ConnectPacket{ProtocolVersion: wire.ProtocolVersion},
		Router:   router,
		Logger:   zap.NewNop(),
		OnAccept: func(h *ConnectionHandler) { accepted <- h },
	})
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveErr := make(chan error, 1)
	go func() { serveErr <- ln.Serve(ctx) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	clientConn := NewConnection(conn, wire.ConnectPacket{ProtocolVersion: wire.ProtocolVersion})
	readyCh := make(chan error, 1)
	go func() {
		_, _, _, err := clientConn.Handshake(wire.DefaultMaxPayload)
		readyCh <- err
	}()

	select {
	case err := <-readyCh:
		if err != nil {
			t.Fatalf("client handshake: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out on client handshake")
	}

	select {
	case h := <-accepted:
		if h.Addr() == "" {
			t.Fatalf("accepted handler has no address")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("listener never reported an accepted connection")
	}

	cancel()
	if err := <-serveErr; err != nil && err != ErrListenerClosed {
		t.Fatalf("Serve returned unexpected error: %v", err)
	}
}
