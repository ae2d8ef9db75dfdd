// Package schema declares the payload-schema collaborator contracts the
// flow transport core delegates to (§6). The core never embeds a concrete
// tagged-buffer/flatbuffer library; it only calls back through these
// interfaces where it must introspect a payload.
package schema

import "github.com/endyjasmi/foundationdb/uid"

// FileIdentifierTable maps a payload's 4-byte file identifier to a
// human-readable schema name, used only for diagnostics (logging). A
// missing mapping is not an error; callers fall back to a numeric label.
type FileIdentifierTable interface {
	Name(fileIdentifier uint32) (name string, ok bool)
}

// ReplyExtractor is a pure function from a request payload to the
// ephemeral UID the sender wants the reply addressed to. The router
// invokes this only when sending an outbound request that expects a
// reply (§4.6); it never parses payload bytes itself.
type ReplyExtractor interface {
	ReplyPromise(payload []byte) (uid.UID, error)
}

// ReplyExtractorFunc adapts a plain function to a ReplyExtractor.
type ReplyExtractorFunc func(payload []byte) (uid.UID, error)

// ReplyPromise implements ReplyExtractor.
func (f ReplyExtractorFunc) ReplyPromise(payload []byte) (uid.UID, error) {
	return f(payload)
}
