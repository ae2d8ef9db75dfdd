package flow

// runSender is the single cooperative task per connection that drains the
// outbound queue and writes to the ConnectionWriter with opportunistic
// batching (§4.5): block until a message arrives, write it, drain and
// write anything else immediately available, then flush once the queue is
// momentarily empty. Any write or flush error is fatal and returned to the
// caller, which tears down the connection.
func runSender(writer *ConnectionWriter, queue *outboundQueue) error {
	for {
		batch := queue.popAll()
		if batch == nil {
			return nil
		}
		for _, msg := range batch {
			if err := writer.WriteFrame(msg.Frame); err != nil {
				return err
			}
		}
		if err := writer.Flush(); err != nil {
			return err
		}
	}
}
