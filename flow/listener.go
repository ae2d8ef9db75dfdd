package flow

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"

	"github.com/endyjasmi/foundationdb/flow/metrics"
	"github.com/endyjasmi/foundationdb/wire"
)

// ErrListenerClosed is returned by Listener.Serve once Close has been
// called and the accept loop has unwound.
var ErrListenerClosed = errors.New("flow: listener closed")

// Listener accepts inbound TCP connections, enforces MaxConnections (I3)
// against the process-wide connection permit, and publishes a
// ConnectionHandler for each connection that completes its handshake
// (§4.7).
type Listener struct {
	ln     net.Listener
	router *Router
	local  wire.ConnectPacket

	maxPayload uint32
	connLimit  *limiter

	logger *zap.Logger

	onAccept func(*ConnectionHandler)
}

// ListenerConfig supplies a Listener's collaborators.
type ListenerConfig struct {
	Local      wire.ConnectPacket
	Router     *Router
	MaxPayload uint32
	Logger     *zap.Logger

	// OnAccept, if set, is called with every successfully handshaken
	// inbound ConnectionHandler. Used by tests and by cmd/flowd to track
	// live peers outside of the Router's own peer map.
	OnAccept func(*ConnectionHandler)
}

// NewListener binds addr and returns a Listener ready to Serve.
func NewListener(addr string, cfg ListenerConfig) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &TransportError{Op: "listen " + addr, Err: err}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxPayload := cfg.MaxPayload
	if maxPayload == 0 {
		maxPayload = wire.DefaultMaxPayload
	}
	return &Listener{
		ln:         ln,
		router:     cfg.Router,
		local:      cfg.Local,
		maxPayload: maxPayload,
		connLimit:  newLimiter(MaxConnections),
		logger:     logger,
		onAccept:   cfg.OnAccept,
	}, nil
}

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Serve runs the accept loop until ctx is cancelled or Close is called.
// Each accepted stream acquires a connection permit before its handshake
// runs; a peer that never completes the handshake still holds a permit
// until the handshake attempt fails or times out upstream (§4.7, §5).
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()

	for {
		stream, err := l.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ErrListenerClosed
			default:
				return &TransportError{Op: "accept", Err: err}
			}
		}

		if err := l.connLimit.acquire(ctx); err != nil {
			metrics.ConnectionRejected("shutting_down")
			_ = stream.Close()
			return err
		}

		go l.handshake(ctx, stream)
	}
}

func (l *Listener) handshake(ctx context.Context, stream net.Conn) {
	h, err := newConnectionHandler(ctx, stream, l.local, l.router, l.maxPayload, l.logger, l.connLimit.release)
	if err != nil {
		metrics.HandshakeFailed()
		l.logger.Info("inbound handshake failed",
			zap.String("remote", stream.RemoteAddr().String()), zap.Error(err))
		return
	}
	l.logger.Debug("inbound connection ready", zap.String("remote", h.Addr()))
	if l.onAccept != nil {
		l.onAccept(h)
	}
}

// Close stops accepting new connections. In-flight connections are left
// running; callers that need a full drain should cancel the Serve context
// and then close each ConnectionHandler they are tracking.
func (l *Listener) Close() error {
	return l.ln.Close()
}
