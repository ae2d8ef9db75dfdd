package flow

import (
	"sync"

	"github.com/endyjasmi/foundationdb/uid"
)

// pendingShardCount controls how many independent locks the pending-reply
// table is split across. Lookups are frequent and writes are bounded by
// request rate (§5), so a modest, fixed shard count avoids a single global
// lock becoming a bottleneck without the complexity of a resizable map.
const pendingShardCount = 32

type pendingResult struct {
	msg *FlowMessage
	err error
}

type pendingEntry struct {
	ch chan pendingResult
}

// pendingTable is the process-wide mapping from ephemeral UID to a
// one-shot completion sink (§3, Pending-reply table). At most one entry
// per UID exists at any time (invariant shared with I5, which additionally
// forbids well-known tokens from ever appearing here).
type pendingTable struct {
	shards [pendingShardCount]pendingShard
}

type pendingShard struct {
	mu      sync.Mutex
	entries map[uid.UID]*pendingEntry
}

func newPendingTable() *pendingTable {
	t := &pendingTable{}
	for i := range t.shards {
		t.shards[i].entries = make(map[uid.UID]*pendingEntry)
	}
	return t
}

func (t *pendingTable) shardFor(token uid.UID) *pendingShard {
	h := token.First ^ token.Second
	return &t.shards[h%pendingShardCount]
}

// register creates a new pending-reply slot for token. It fails if token is
// a well-known token (I5) or an entry for token already exists.
func (t *pendingTable) register(token uid.UID) (<-chan pendingResult, error) {
	if uid.IsWellKnown(token) {
		return nil, &DuplicatePendingReplyError{Token: "refusing to register well-known token " + token.String()}
	}
	shard := t.shardFor(token)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if _, exists := shard.entries[token]; exists {
		return nil, &DuplicatePendingReplyError{Token: token.String()}
	}
	entry := &pendingEntry{ch: make(chan pendingResult, 1)}
	shard.entries[token] = entry
	return entry.ch, nil
}

// deliver resolves the pending entry for token with msg and removes it.
// It reports whether an entry was found.
func (t *pendingTable) deliver(token uid.UID, msg *FlowMessage) bool {
	shard := t.shardFor(token)
	shard.mu.Lock()
	entry, exists := shard.entries[token]
	if exists {
		delete(shard.entries, token)
	}
	shard.mu.Unlock()
	if !exists {
		return false
	}
	entry.ch <- pendingResult{msg: msg}
	return true
}

// cancel resolves the pending entry for token with err (typically a
// ConnectionClosedError) and removes it, if present.
func (t *pendingTable) cancel(token uid.UID, err error) {
	shard := t.shardFor(token)
	shard.mu.Lock()
	entry, exists := shard.entries[token]
	if exists {
		delete(shard.entries, token)
	}
	shard.mu.Unlock()
	if exists {
		entry.ch <- pendingResult{err: err}
	}
}

// remove drops the pending entry for token without resolving it, used when
// the caller is abandoning the wait itself (e.g. its own context expired).
func (t *pendingTable) remove(token uid.UID) {
	shard := t.shardFor(token)
	shard.mu.Lock()
	delete(shard.entries, token)
	shard.mu.Unlock()
}
