package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ProtocolVersion is this build's flow protocol version. The handshake
// rejects peers whose major version differs.
const ProtocolVersion uint64 = 0x0000000000001000

// version mask matching the upstream protocol's convention of reserving
// low bits for compatible feature revisions and the high bits for the
// incompatible major version.
const protocolVersionMask uint64 = 0xffffffffffff0000

// Feature flags negotiated during the handshake. Bits outside this set are
// ignored by this build (forward compatible), matching the spirit of the
// canonical protocol's flag bits (spec.md §9, Open Question: exact bit
// layout is owned by the wire documentation, not this spec).
const (
	FeatureChecksumEnabled uint32 = 1 << 0
)

// ConnectPacket is the fixed-shape handshake message exchanged exactly once
// in each direction before any Frame (§4.3, §6).
type ConnectPacket struct {
	ProtocolVersion uint64
	Features        uint32
	// CanonicalAddr is the originating peer's canonical host:port, as it
	// believes other peers should dial it back.
	CanonicalAddr string
}

// HandshakeError reports an incompatible or malformed ConnectPacket
// exchange. It is fatal to the owning connection (§4.3, §7).
type HandshakeError struct {
	Reason string
}

func (e *HandshakeError) Error() string { return "wire: handshake error: " + e.Reason }

// maxCanonicalAddrLen bounds the address field the same way the handshake
// bounds every other variable-length field it reads off the wire.
const maxCanonicalAddrLen = 1 << 16

// WriteConnectPacket serializes and flushes a ConnectPacket directly to w.
// The handshake happens before a Reader/Writer pair exists for the
// connection, so ConnectPacket I/O is unbuffered by design.
func WriteConnectPacket(w io.Writer, cp ConnectPacket) error {
	addr := []byte(cp.CanonicalAddr)
	if len(addr) > maxCanonicalAddrLen {
		return &HandshakeError{Reason: "canonical address too long to encode"}
	}

	buf := make([]byte, 8+4+4+len(addr))
	binary.LittleEndian.PutUint64(buf[0:8], cp.ProtocolVersion)
	binary.LittleEndian.PutUint32(buf[8:12], cp.Features)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(addr)))
	copy(buf[16:], addr)

	_, err := w.Write(buf)
	return err
}

// ReadConnectPacket reads and decodes a peer's ConnectPacket from r.
func ReadConnectPacket(r io.Reader) (ConnectPacket, error) {
	var head [16]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return ConnectPacket{}, &HandshakeError{Reason: fmt.Sprintf("reading header: %v", err)}
	}

	cp := ConnectPacket{
		ProtocolVersion: binary.LittleEndian.Uint64(head[0:8]),
		Features:        binary.LittleEndian.Uint32(head[8:12]),
	}
	addrLen := binary.LittleEndian.Uint32(head[12:16])
	if addrLen > maxCanonicalAddrLen {
		return ConnectPacket{}, &HandshakeError{Reason: "canonical address length exceeds maximum"}
	}

	addr := make([]byte, addrLen)
	if addrLen > 0 {
		if _, err := io.ReadFull(r, addr); err != nil {
			return ConnectPacket{}, &HandshakeError{Reason: fmt.Sprintf("reading canonical address: %v", err)}
		}
	}
	cp.CanonicalAddr = string(addr)
	return cp, nil
}

// Compatible reports whether local and remote agree on a protocol major
// version. Feature flags are intersected by the caller, not compared here:
// a peer advertising fewer features than us is compatible, just less
// capable (§4.3 step 3).
func Compatible(local, remote ConnectPacket) bool {
	return local.ProtocolVersion&protocolVersionMask == remote.ProtocolVersion&protocolVersionMask
}

// NegotiateFeatures returns the feature set both peers support.
func NegotiateFeatures(local, remote ConnectPacket) uint32 {
	return local.Features & remote.Features
}
