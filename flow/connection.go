package flow

import (
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/endyjasmi/foundationdb/flow/metrics"
	"github.com/endyjasmi/foundationdb/wire"
)

// connState is the lifecycle of a Connection (§4.3).
type connState int32

const (
	connStateNew connState = iota
	connStateHandshakeSent
	connStateHandshakeReceived
	connStateReady
	// connStateReadClosed means the Receiver has seen EOF or a read error
	// and will not read again, but the Sender may still be draining queued
	// replies through the same stream (§4.5, §8 S6). The socket itself is
	// still open.
	connStateReadClosed
	connStateClosed
)

// Connection owns a single byte stream. After a successful handshake it is
// split into exactly one ConnectionReader and one ConnectionWriter (I1,
// I2). Construction accepts a reliable, ordered, bidirectional byte
// stream — in practice a net.Conn.
type Connection struct {
	stream net.Conn
	local  wire.ConnectPacket

	mu    sync.Mutex
	state connState
}

// NewConnection wraps stream, not yet having performed a handshake.
func NewConnection(stream net.Conn, local wire.ConnectPacket) *Connection {
	return &Connection{stream: stream, local: local, state: connStateNew}
}

// Handshake performs the ConnectPacket exchange (§4.3):
//  1. send our own ConnectPacket immediately, on its own goroutine, so the
//     write never waits for the peer to read it (on an unbuffered stream
//     such as net.Pipe both ends would otherwise block in Write);
//  2. read the peer's ConnectPacket while that write is in flight;
//  3. compare protocol version and feature flags;
//  4. on success, split into a ConnectionReader and ConnectionWriter.
//
// If the exchange fails the connection moves to Closed and the stream is
// closed; Handshake never leaves a live stream behind on failure. Calling
// Handshake a second time returns a HandshakeError and leaves the stream as
// it is.
func (c *Connection) Handshake(maxPayload uint32) (*ConnectionReader, *ConnectionWriter, wire.ConnectPacket, error) {
	c.mu.Lock()
	if c.state != connStateNew {
		c.mu.Unlock()
		return nil, nil, wire.ConnectPacket{}, &wire.HandshakeError{Reason: "handshake already attempted"}
	}
	c.mu.Unlock()

	writeErr := make(chan error, 1)
	go func() { writeErr <- wire.WriteConnectPacket(c.stream, c.local) }()

	peer, err := wire.ReadConnectPacket(c.stream)
	if err != nil {
		c.fail()
		<-writeErr // closing the stream unblocks a write still in progress
		return nil, nil, wire.ConnectPacket{}, err
	}
	if err := <-writeErr; err != nil {
		c.fail()
		return nil, nil, wire.ConnectPacket{}, &TransportError{Op: "write ConnectPacket", Err: err}
	}
	c.setState(connStateHandshakeSent)
	c.setState(connStateHandshakeReceived)

	if !wire.Compatible(c.local, peer) {
		c.fail()
		return nil, nil, wire.ConnectPacket{}, &wire.HandshakeError{
			Reason: fmt.Sprintf("incompatible protocol version: local=%#x remote=%#x", c.local.ProtocolVersion, peer.ProtocolVersion),
		}
	}

	features := wire.NegotiateFeatures(c.local, peer)
	checksum := features&wire.FeatureChecksumEnabled != 0

	c.setState(connStateReady)

	reader := &ConnectionReader{conn: c, r: wire.NewReader(c.stream, maxPayload, checksum)}
	writer := &ConnectionWriter{conn: c, w: wire.NewWriter(c.stream, checksum)}
	return reader, writer, peer, nil
}

func (c *Connection) setState(s connState) {
	c.mu.Lock()
	if c.state != connStateClosed && c.state != connStateReadClosed {
		c.state = s
	}
	c.mu.Unlock()
}

func (c *Connection) fail() {
	c.mu.Lock()
	c.state = connStateClosed
	c.mu.Unlock()
	_ = c.stream.Close()
}

// halfCloseRead marks the connection's read side done without touching the
// write side: the Sender may still have replies queued and is entitled to
// drain and flush them (§4.5, §8 S6) even after the Receiver has seen EOF or
// a read error. Only the final Close, called by ConnectionHandler teardown
// once the Sender has exited, actually closes the socket. When the
// underlying stream supports it (e.g. *net.TCPConn), CloseRead additionally
// stops the OS from buffering further inbound bytes; on streams that don't
// (net.Pipe, TLS), this is a no-op beyond the state transition.
func (c *Connection) halfCloseRead() {
	c.mu.Lock()
	if c.state != connStateClosed {
		c.state = connStateReadClosed
	}
	c.mu.Unlock()
	if r, ok := c.stream.(interface{ CloseRead() error }); ok {
		_ = r.CloseRead()
	}
}

// Close transitions the connection to Closed and closes the underlying
// stream. It is idempotent; a Closed connection rejects further
// operations by construction (reads/writes on a closed net.Conn error). A
// prior halfCloseRead (state connStateReadClosed) does not short-circuit
// this: the socket itself is only actually closed here.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.state == connStateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = connStateClosed
	c.mu.Unlock()
	return c.stream.Close()
}

// ConnectionReader is the single-owner read half produced by a successful
// Handshake (I2). Only one goroutine may call ReadFrame at a time.
type ConnectionReader struct {
	conn *Connection
	r    *wire.Reader
}

// ReadFrame reads the next frame, or (nil, nil) on clean EOF at a frame
// boundary. Any other error is fatal to further reading. Either way this
// only half-closes the read side (§4.5, §8 S6): the paired
// ConnectionWriter and its Sender may still be mid-flush, and the socket
// itself is closed exactly once, by ConnectionHandler teardown, after the
// Sender has exited.
func (cr *ConnectionReader) ReadFrame() (*wire.Frame, error) {
	f, err := cr.r.ReadFrame()
	if err != nil {
		cr.conn.halfCloseRead()
		return nil, err
	}
	if f == nil {
		cr.conn.halfCloseRead()
		return nil, nil
	}
	metrics.FrameRead(len(f.Payload))
	return f, nil
}

// ConnectionWriter is the single-owner write half produced by a successful
// Handshake (I1). Only one goroutine may call WriteFrame/Flush at a time;
// in this design that is always the Sender task (§4.5, §9).
type ConnectionWriter struct {
	conn *Connection
	w    *wire.Writer
}

// WriteFrame buffers one frame without flushing.
func (cw *ConnectionWriter) WriteFrame(f wire.Frame) error {
	if err := cw.w.WriteFrame(f); err != nil {
		cw.conn.fail()
		return &TransportError{Op: "write frame", Err: err}
	}
	metrics.FrameWritten(len(f.Payload))
	return nil
}

// Flush commits buffered bytes to the stream.
func (cw *ConnectionWriter) Flush() error {
	if err := cw.w.Flush(); err != nil {
		cw.conn.fail()
		return &TransportError{Op: "flush", Err: err}
	}
	return nil
}

// Close closes the owning connection, which in turn unblocks any pending
// ReadFrame on the paired ConnectionReader with an error.
func (cw *ConnectionWriter) Close() error {
	return cw.conn.Close()
}

var _ io.Closer = (*ConnectionWriter)(nil)
