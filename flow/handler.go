package flow

import (
	"context"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/endyjasmi/foundationdb/uid"
	"github.com/endyjasmi/foundationdb/wire"
)

// ConnectionHandler represents one live, bidirectional connection. It owns
// the connection's outbound queue and the goroutines that drive its
// Sender and Receiver; it exposes exactly one operation externally, Enqueue
// (§4.7).
type ConnectionHandler struct {
	addr   string
	conn   *Connection
	router *Router
	logger *zap.Logger

	outbound *outboundQueue

	PeerConnectPacket wire.ConnectPacket

	reqLimiter *limiter

	pendingMu     sync.Mutex
	pendingTokens map[uid.UID]struct{}

	done     chan struct{}
	closeErr error
}

// newConnectionHandler runs the handshake over stream and, on success,
// spawns the Sender and Receiver tasks. releasePermit is called exactly
// once: right away if the handshake fails, otherwise when the Receiver task
// exits for any reason — it is how the process-wide connection permit
// (acquired by the caller before dialing or accepting) is returned (§4.7).
func newConnectionHandler(ctx context.Context, stream net.Conn, local wire.ConnectPacket, router *Router, maxPayload uint32, logger *zap.Logger, releasePermit func()) (*ConnectionHandler, error) {
	conn := NewConnection(stream, local)
	reader, writer, peerCP, err := conn.Handshake(maxPayload)
	if err != nil {
		releasePermit()
		return nil, err
	}

	h := &ConnectionHandler{
		addr:              stream.RemoteAddr().String(),
		conn:              conn,
		router:            router,
		logger:            logger,
		outbound:          newOutboundQueue(),
		PeerConnectPacket: peerCP,
		reqLimiter:        newLimiter(MaxRequests),
		pendingTokens:     make(map[uid.UID]struct{}),
		done:              make(chan struct{}),
	}

	router.registerPeer(h.addr, h)

	var wg sync.WaitGroup
	var senderErr error
	senderDone := make(chan struct{})
	go func() {
		senderErr = runSender(writer, h.outbound)
		close(senderDone)
	}()

	go func() {
		receiverErr := runReceiver(ctx, stream.RemoteAddr(), reader, router, h.reqLimiter, h.outbound, logger, &wg)
		wg.Wait() // let any still-running handler tasks finish before teardown.

		h.outbound.close()
		<-senderDone
		_ = conn.Close()
		releasePermit()
		router.unregisterPeer(h.addr, h)
		h.cancelAllPending()

		h.closeErr = receiverErr
		if h.closeErr == nil {
			h.closeErr = senderErr
		}
		close(h.done)
	}()

	return h, nil
}

// Enqueue pushes msg onto the outbound queue. It is non-blocking and
// infallible in the steady state; it fails only once the Sender has
// already terminated, in which case the caller should drop the handler.
func (h *ConnectionHandler) Enqueue(msg FlowMessage) error {
	return h.outbound.push(msg)
}

// Addr returns the peer address this handler was constructed for.
func (h *ConnectionHandler) Addr() string { return h.addr }

// Done returns a channel closed once both the Sender and Receiver tasks
// have exited and the connection permit has been released.
func (h *ConnectionHandler) Done() <-chan struct{} { return h.done }

// Err returns the error that ended the connection, if any, once Done is
// closed. A clean peer shutdown reports nil.
func (h *ConnectionHandler) Err() error { return h.closeErr }

// Close tears down the connection, which cascades into both tasks exiting
// and the permit being released.
func (h *ConnectionHandler) Close() error {
	return h.conn.Close()
}

func (h *ConnectionHandler) trackPending(token uid.UID) {
	h.pendingMu.Lock()
	h.pendingTokens[token] = struct{}{}
	h.pendingMu.Unlock()
}

func (h *ConnectionHandler) cancelAllPending() {
	h.pendingMu.Lock()
	tokens := make([]uid.UID, 0, len(h.pendingTokens))
	for t := range h.pendingTokens {
		tokens = append(tokens, t)
	}
	h.pendingTokens = make(map[uid.UID]struct{})
	h.pendingMu.Unlock()

	err := &ConnectionClosedError{Peer: h.addr}
	for _, t := range tokens {
		h.router.cancelPending(t, err)
	}
}
