package flow

import (
	"context"

	"go.uber.org/zap"

	"github.com/endyjasmi/foundationdb/flow/schema"
	"github.com/endyjasmi/foundationdb/uid"
	"github.com/endyjasmi/foundationdb/wire"
)

// PingHandler answers WLTOKENPingPacket. The original protocol's ping
// request carries a reply-promise UID inside its (flatbuffer-encoded)
// payload; since the transport core never decodes payloads itself, the
// caller supplies the same ReplyExtractor collaborator used by Router.Send
// to pull that UID back out (original_source/rust/src/flow/mod.rs's
// ping-reply arm). The reply frame carries no payload (§8 S1).
func PingHandler(extract schema.ReplyExtractor) Handler {
	return func(_ context.Context, msg FlowMessage) (*FlowMessage, error) {
		replyToken := msg.Frame.Token
		if extract != nil {
			if promised, err := extract.ReplyPromise(msg.Frame.Payload); err == nil {
				replyToken = promised
			}
		}
		reply := NewFlowMessage(
			Flow{Src: LocalPeer(uid.WellKnownUID(uid.WLTOKENPingPacket)), Dst: msg.Flow.Src},
			wire.Frame{Token: replyToken},
		)
		return &reply, nil
	}
}

// NetworkTestHandler answers WLTOKENNetworkTest and WLTOKENReservedForTesting:
// a loopback throughput probe that is logged and otherwise produces no
// reply, matching the original dispatch table (original_source/rust/src/flow/mod.rs).
func NetworkTestHandler(logger *zap.Logger) Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(_ context.Context, msg FlowMessage) (*FlowMessage, error) {
		logger.Debug("network test payload received", zap.Int("bytes", len(msg.Frame.Payload)))
		return nil, nil
	}
}
