package flow

import (
	"context"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/endyjasmi/foundationdb/uid"
)

// minPayloadForDispatch is the smallest payload the receiver hands to the
// router; anything shorter is logged and discarded (§4.4, §7).
const minPayloadForDispatch = 8

// runReceiver is the single cooperative task per connection that reads
// frames and fans each out onto an independent task bounded by reqLimiter
// (§4.4). The permit is acquired before the next frame is read, so a slow
// handler can buffer at most one extra frame above the limit — an
// intentional bounded overshoot traded for better network/CPU interleaving
// (§4.4, Tuning note).
//
// wg tracks in-flight handler goroutines spawned by this receiver so the
// caller can wait for them to finish unwinding after the read loop exits.
func runReceiver(ctx context.Context, peer net.Addr, reader *ConnectionReader, router *Router, reqLimiter *limiter, outbound *outboundQueue, logger *zap.Logger, wg *sync.WaitGroup) error {
	for {
		frame, err := reader.ReadFrame()
		if err != nil {
			return err
		}
		if frame == nil {
			return nil
		}

		if len(frame.Payload) < minPayloadForDispatch {
			logger.Debug("discarding frame shorter than minimum payload",
				zap.String("token", frame.Token.String()), zap.Int("len", len(frame.Payload)))
			continue
		}

		msg := NewFlowMessage(Flow{Src: RemotePeer(peer), Dst: LocalPeer(uid.Zero)}, *frame)

		// Acquisition and dispatch must be atomic with respect to the
		// limiter (§5): this goroutine is the limiter's sole owner, so
		// acquiring here and spawning immediately below admits no
		// interleaving from any other dispatch on the same limiter.
		if err := reqLimiter.acquire(ctx); err != nil {
			return err
		}

		wg.Add(1)
		go func(msg FlowMessage) {
			defer wg.Done()
			defer reqLimiter.release()

			reply, err := router.Dispatch(ctx, msg)
			if err != nil {
				logger.Warn("handler error, no reply sent", zap.Error(err), zap.String("token", msg.Frame.Token.String()))
				return
			}
			if reply == nil {
				return
			}
			if err := outbound.push(*reply); err != nil {
				logger.Debug("dropping reply: sender already terminated", zap.String("token", reply.Frame.Token.String()))
			}
		}(msg)
	}
}
