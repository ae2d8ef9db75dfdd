package flow

import (
	"net"
	"testing"
	"time"

	"github.com/endyjasmi/foundationdb/uid"
	"github.com/endyjasmi/foundationdb/wire"
)

// handshakeTestPair completes a real handshake over an in-memory net.Pipe
// and returns side A's writer paired with side B's reader, so tests can
// drive the Sender on one end and assert on raw frames arriving at the
// other.
func handshakeTestPair(t *testing.T) (*ConnectionWriter, *ConnectionReader, func()) {
	t.Helper()
	a, b := net.Pipe()

	connA := NewConnection(a, wire.ConnectPacket{ProtocolVersion: wire.ProtocolVersion})
	connB := NewConnection(b, wire.ConnectPacket{ProtocolVersion: wire.ProtocolVersion})

	type result struct {
		writer *ConnectionWriter
		reader *ConnectionReader
		err    error
	}
	resA := make(chan result, 1)
	resB := make(chan result, 1)
	go func() {
		_, w, _, err := connA.Handshake(wire.DefaultMaxPayload)
		resA <- result{writer: w, err: err}
	}()
	go func() {
		r, _, _, err := connB.Handshake(wire.DefaultMaxPayload)
		resB <- result{reader: r, err: err}
	}()
	ra, rb := <-resA, <-resB
	if ra.err != nil || rb.err != nil {
		t.Fatalf("handshake failed: %v / %v", ra.err, rb.err)
	}
	return ra.writer, rb.reader, func() { a.Close(); b.Close() }
}

func TestRunSenderDrainsAndFlushesQueue(t *testing.T) {
	writer, reader, cleanup := handshakeTestPair(t)
	defer cleanup()

	queue := newOutboundQueue()
	done := make(chan error, 1)
	go func() { done <- runSender(writer, queue) }()

	token1, token2 := uid.New(), uid.New()
	if err := queue.push(FlowMessage{Frame: wire.Frame{Token: token1, Payload: []byte("one")}}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := queue.push(FlowMessage{Frame: wire.Frame{Token: token2, Payload: []byte("two")}}); err != nil {
		t.Fatalf("push: %v", err)
	}

	for _, want := range []uid.UID{token1, token2} {
		f, err := reader.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if f.Token != want {
			t.Fatalf("got token %v, want %v", f.Token, want)
		}
	}

	queue.close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runSender returned error on clean close: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("runSender did not exit after queue close")
	}
}
