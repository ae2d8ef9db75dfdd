package flow

import (
	"errors"
	"testing"

	"github.com/endyjasmi/foundationdb/uid"
)

func TestPendingTableDeliver(t *testing.T) {
	table := newPendingTable()
	token := uid.New()

	ch, err := table.register(token)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	msg := &FlowMessage{}
	if !table.deliver(token, msg) {
		t.Fatalf("deliver reported no entry for a token just registered")
	}

	select {
	case res := <-ch:
		if res.msg != msg || res.err != nil {
			t.Fatalf("unexpected result: %+v", res)
		}
	default:
		t.Fatalf("deliver did not push a result")
	}

	if table.deliver(token, msg) {
		t.Fatalf("deliver succeeded twice for the same token")
	}
}

func TestPendingTableCancel(t *testing.T) {
	table := newPendingTable()
	token := uid.New()

	ch, err := table.register(token)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	cancelErr := errors.New("boom")
	table.cancel(token, cancelErr)

	res := <-ch
	if res.err != cancelErr {
		t.Fatalf("expected cancel error, got %+v", res)
	}

	// cancelling an unknown or already-resolved token is a safe no-op.
	table.cancel(token, cancelErr)
	table.cancel(uid.New(), cancelErr)
}

func TestPendingTableRejectsWellKnownAndDuplicates(t *testing.T) {
	table := newPendingTable()

	if _, err := table.register(uid.WellKnownUID(uid.WLTOKENPingPacket)); err == nil {
		t.Fatalf("expected registering a well-known token to fail")
	}

	token := uid.New()
	if _, err := table.register(token); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := table.register(token); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestPendingTableRemove(t *testing.T) {
	table := newPendingTable()
	token := uid.New()

	if _, err := table.register(token); err != nil {
		t.Fatalf("register: %v", err)
	}
	table.remove(token)

	// A removed entry is gone, so re-registering it must succeed.
	if _, err := table.register(token); err != nil {
		t.Fatalf("re-register after remove: %v", err)
	}
}
