// Package testschema supplies a minimal, non-production payload schema for
// exercising the flow transport core end to end (§8 scenarios) without
// pulling in a real tagged-buffer/flatbuffer dependency, which spec.md §1
// explicitly places out of the core's scope.
//
// Wire shape: a request payload that expects a reply is exactly the
// 16-byte big-endian encoding of the reply-promise UID, optionally
// preceded by a 4-byte little-endian file identifier. Production payload
// schemas are free to use any shape; the core never assumes this one.
package testschema

import (
	"encoding/binary"
	"fmt"

	"github.com/endyjasmi/foundationdb/uid"
)

// Names is a trivial FileIdentifierTable over a small fixed set of IDs.
type Names map[uint32]string

// Name implements schema.FileIdentifierTable.
func (n Names) Name(fileIdentifier uint32) (string, bool) {
	name, ok := n[fileIdentifier]
	return name, ok
}

// DefaultNames are the file identifiers this test schema recognizes.
var DefaultNames = Names{
	0x0001: "PingRequest",
	0x0002: "NetworkTestRequest",
}

// ReplyPromise implements schema.ReplyExtractor: it reads the 16 bytes
// immediately after an optional 4-byte file identifier prefix as a
// big-endian UID.
func ReplyPromise(payload []byte) (uid.UID, error) {
	offset := 0
	if len(payload) >= 20 {
		offset = 4
	}
	if len(payload)-offset < 16 {
		return uid.UID{}, fmt.Errorf("testschema: payload too short to carry a reply promise: %d bytes", len(payload))
	}
	return uid.UID{
		First:  binary.BigEndian.Uint64(payload[offset : offset+8]),
		Second: binary.BigEndian.Uint64(payload[offset+8 : offset+16]),
	}, nil
}

// EncodeRequest builds a request payload carrying fileIdentifier and a
// reply-promise UID, in the shape ReplyPromise expects.
func EncodeRequest(fileIdentifier uint32, reply uid.UID) []byte {
	buf := make([]byte, 20)
	binary.LittleEndian.PutUint32(buf[0:4], fileIdentifier)
	binary.BigEndian.PutUint64(buf[4:12], reply.First)
	binary.BigEndian.PutUint64(buf[12:20], reply.Second)
	return buf
}
