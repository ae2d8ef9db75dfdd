// Package flow implements the core of the flow transport: the per-connection
// reader/writer split, the handshake and framing state machine, the endpoint
// token/router model, and the admission-control pipeline described in
// spec.md. It treats frame payloads as opaque bytes; decoding them into a
// structured schema is left to the caller via the payload-schema
// collaborators FileIdentifierTable and ReplyExtractor (see flow/schema).
package flow

import (
	"net"

	"github.com/endyjasmi/foundationdb/uid"
	"github.com/endyjasmi/foundationdb/wire"
)

// Peer names one side of a Flow: either a local endpoint (addressed by an
// optional UID) or a remote one (addressed by socket address).
type Peer struct {
	// Local is true when this Peer names an endpoint on this process.
	Local bool
	// LocalUID is the addressed local endpoint; the zero value means "any
	// local endpoint" (used for inbound requests before routing).
	LocalUID uid.UID
	// RemoteAddr is set when Local is false.
	RemoteAddr net.Addr
}

// LocalPeer builds a Peer naming a local endpoint. Pass uid.Zero for "no
// specific local endpoint" (the shape of an as-yet-unrouted inbound
// request).
func LocalPeer(u uid.UID) Peer {
	return Peer{Local: true, LocalUID: u}
}

// RemotePeer builds a Peer naming a remote socket address.
func RemotePeer(addr net.Addr) Peer {
	return Peer{Local: false, RemoteAddr: addr}
}

// Flow is the logical envelope tagging every in-flight message with a
// source and destination Peer, used by the router to decide whether a
// message is incoming, outgoing, or a loopback.
type Flow struct {
	Src Peer
	Dst Peer
}

// FlowMessage pairs a Flow with the Frame it carries. Ownership is
// exclusive: once a FlowMessage is handed to a connection's outbound
// channel, no other goroutine may read or mutate it.
type FlowMessage struct {
	Flow  Flow
	Frame wire.Frame

	// fileIdentifier caches the parsed header so the router and any
	// diagnostics collaborator need not re-parse it.
	fileIdentifier    uint32
	hasFileIdentifier bool
}

// NewFlowMessage builds a FlowMessage, eagerly caching the parsed file
// identifier header when the payload is long enough to carry one.
func NewFlowMessage(flow Flow, frame wire.Frame) FlowMessage {
	m := FlowMessage{Flow: flow, Frame: frame}
	if id, err := wire.PeekFileIdentifier(frame.Payload); err == nil {
		m.fileIdentifier = id
		m.hasFileIdentifier = true
	}
	return m
}

// FileIdentifier returns the cached file identifier and whether the
// payload was long enough to carry one (§3, Frame).
func (m FlowMessage) FileIdentifier() (uint32, bool) {
	return m.fileIdentifier, m.hasFileIdentifier
}
