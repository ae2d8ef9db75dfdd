package flow

import (
	"context"
	"encoding/binary"
	"sync"

	"go.uber.org/zap"

	"github.com/endyjasmi/foundationdb/flow/metrics"
	"github.com/endyjasmi/foundationdb/flow/schema"
	"github.com/endyjasmi/foundationdb/uid"
	"github.com/endyjasmi/foundationdb/wire"
)

// Handler answers a FlowMessage addressed to a well-known token. A nil
// *FlowMessage result means fire-and-forget; a non-nil one is enqueued as
// the reply (§4.6).
type Handler func(ctx context.Context, msg FlowMessage) (*FlowMessage, error)

// Dialer establishes a new outbound ConnectionHandler to addr. Router uses
// it lazily, the first time Send targets a peer it has no handler for.
type Dialer func(ctx context.Context, addr string) (*ConnectionHandler, error)

// Router is the process-wide service that decides what to do with an
// inbound FlowMessage: dispatch to a registered well-known handler,
// deliver to a pending-reply sink, or synthesize EndpointNotFound (§4.6).
//
// Router and ConnectionHandler are naturally cyclic: a handler holds a
// Router reference to dispatch inbound frames, and Router holds handler
// references (by peer address, not by ownership) to enqueue outbound
// frames. Router never extends a handler's lifetime — see unregisterPeer,
// called by ConnectionHandler itself on teardown (§9, Cyclic references).
type Router struct {
	handlers map[uid.WLTOKEN]Handler
	pending  *pendingTable

	names   schema.FileIdentifierTable
	extract schema.ReplyExtractor
	dial    Dialer

	logger *zap.Logger

	mu    sync.RWMutex
	peers map[string]*ConnectionHandler
}

// RouterConfig supplies the Router's optional collaborators. Handlers and
// Dial may be nil (Send then simply cannot dial new outbound peers); Names
// and Extract default to no-ops.
type RouterConfig struct {
	Handlers map[uid.WLTOKEN]Handler
	Names    schema.FileIdentifierTable
	Extract  schema.ReplyExtractor
	Dial     Dialer
	Logger   *zap.Logger
}

// NewRouter builds a Router from cfg. The handler registration table is
// fixed at construction; dynamic re-registration is not required (§4.6).
func NewRouter(cfg RouterConfig) *Router {
	handlers := make(map[uid.WLTOKEN]Handler, len(cfg.Handlers))
	for k, v := range cfg.Handlers {
		handlers[k] = v
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		handlers: handlers,
		pending:  newPendingTable(),
		names:    cfg.Names,
		extract:  cfg.Extract,
		dial:     cfg.Dial,
		logger:   logger,
		peers:    make(map[string]*ConnectionHandler),
	}
}

// Dispatch evaluates the dispatch rule of §4.6 for one inbound FlowMessage.
func (r *Router) Dispatch(ctx context.Context, msg FlowMessage) (*FlowMessage, error) {
	if token, ok := uid.Classify(msg.Frame.Token); ok {
		if h, registered := r.handlers[token]; registered {
			metrics.RequestDispatched(token.String())
			return h(ctx, msg)
		}
		r.logUnhandled(msg, token)
		metrics.RequestNotFound()
		reply := r.endpointNotFound(msg.Flow.Src, msg.Frame.Token)
		return &reply, nil
	}

	if r.pending.deliver(msg.Frame.Token, &msg) {
		return nil, nil
	}

	r.logger.Debug("no pending reply entry for ephemeral token",
		zap.String("token", msg.Frame.Token.String()))
	metrics.RequestNotFound()
	reply := r.endpointNotFound(msg.Flow.Src, msg.Frame.Token)
	return &reply, nil
}

func (r *Router) logUnhandled(msg FlowMessage, token uid.WLTOKEN) {
	fields := []zap.Field{zap.String("wltoken", token.String())}
	if id, ok := msg.FileIdentifier(); ok {
		fields = append(fields, zap.Uint32("fileIdentifier", id))
		if r.names != nil {
			if name, ok := r.names.Name(id); ok {
				fields = append(fields, zap.String("schema", name))
			}
		}
	}
	r.logger.Info("unhandled well-known endpoint", fields...)
}

// endpointNotFound synthesizes an EndpointNotFound reply addressed back to
// src, carrying the original token as its payload (§4.6).
func (r *Router) endpointNotFound(src Peer, original uid.UID) FlowMessage {
	payload := make([]byte, 16)
	binary.BigEndian.PutUint64(payload[0:8], original.First)
	binary.BigEndian.PutUint64(payload[8:16], original.Second)
	return NewFlowMessage(
		Flow{Src: LocalPeer(uid.Zero), Dst: src},
		wire.Frame{Token: uid.WellKnownUID(uid.WLTOKENEndpointNotFound), Payload: payload},
	)
}

// Send locates or establishes a ConnectionHandler to dest, optionally
// registers a pending-reply entry keyed by the reply-promise UID the
// payload-schema collaborator extracts from msg, and enqueues msg on that
// handler's outbound channel (§4.6).
//
// The returned channel, when non-nil, resolves exactly once with the
// matching reply or a ConnectionClosedError.
func (r *Router) Send(ctx context.Context, dest string, msg FlowMessage) (<-chan pendingResult, error) {
	handler, err := r.peerHandler(ctx, dest)
	if err != nil {
		return nil, err
	}

	var replyCh <-chan pendingResult
	var replyToken uid.UID
	var haveReplyToken bool
	if r.extract != nil {
		if token, err := r.extract.ReplyPromise(msg.Frame.Payload); err == nil {
			ch, err := r.pending.register(token)
			if err != nil {
				return nil, err
			}
			replyCh = ch
			replyToken = token
			haveReplyToken = true
		}
	}

	if err := handler.Enqueue(msg); err != nil {
		if haveReplyToken {
			r.pending.remove(replyToken)
		}
		return nil, err
	}
	if haveReplyToken {
		handler.trackPending(replyToken)
	}
	return replyCh, nil
}

func (r *Router) peerHandler(ctx context.Context, dest string) (*ConnectionHandler, error) {
	r.mu.RLock()
	h, ok := r.peers[dest]
	r.mu.RUnlock()
	if ok {
		return h, nil
	}

	if r.dial == nil {
		return nil, &EndpointNotFoundError{Token: "no dialer configured for peer " + dest}
	}
	h, err := r.dial(ctx, dest)
	if err != nil {
		return nil, err
	}
	r.registerPeer(dest, h)
	return h, nil
}

// registerPeer publishes a ConnectionHandler for future Send calls.
// ConnectionHandler calls this for both inbound (accepted) and outbound
// (dialed) connections.
func (r *Router) registerPeer(addr string, h *ConnectionHandler) {
	r.mu.Lock()
	r.peers[addr] = h
	r.mu.Unlock()
}

// unregisterPeer drops the router's reference to h, breaking the
// Router↔ConnectionHandler cycle so h can be freed once its own goroutines
// exit (§9, Cyclic references). Safe to call more than once.
func (r *Router) unregisterPeer(addr string, h *ConnectionHandler) {
	r.mu.Lock()
	if cur, ok := r.peers[addr]; ok && cur == h {
		delete(r.peers, addr)
	}
	r.mu.Unlock()
}

// cancelPending resolves and removes a pending-reply entry for token with
// err, used when the connection it was registered against is torn down.
func (r *Router) cancelPending(token uid.UID, err error) {
	r.pending.cancel(token, err)
}
