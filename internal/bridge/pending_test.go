package bridge

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestPendingCallIDsAreMonotonic(t *testing.T) {
	p := newPendingCalls()
	last := uint64(0)
	for i := 0; i < 100; i++ {
		id, _ := p.add()
		if id <= last {
			t.Fatalf("id %d not greater than %d", id, last)
		}
		last = id
	}
}

func TestPendingResolveDeliversOnce(t *testing.T) {
	p := newPendingCalls()
	id, slot := p.add()

	if !p.resolve(id, callOutcome{value: json.RawMessage("1")}) {
		t.Fatalf("resolve reported no slot")
	}
	out := <-slot
	if string(out.value) != "1" {
		t.Fatalf("value mismatch: %s", out.value)
	}
	if p.resolve(id, callOutcome{}) {
		t.Fatalf("second resolve found a slot")
	}
	if p.outstanding() != 0 {
		t.Fatalf("slot leaked")
	}
}

func TestPendingResolveUnknownID(t *testing.T) {
	p := newPendingCalls()
	if p.resolve(42, callOutcome{}) {
		t.Fatalf("resolve of unallocated id succeeded")
	}
}

func TestPendingFailAllResolvesEverySlot(t *testing.T) {
	p := newPendingCalls()
	boom := errors.New("down")

	var slots []chan callOutcome
	for i := 0; i < 5; i++ {
		_, slot := p.add()
		slots = append(slots, slot)
	}
	p.failAll(boom)

	for i, slot := range slots {
		out := <-slot
		if !errors.Is(out.err, boom) {
			t.Fatalf("slot %d: got %v", i, out.err)
		}
	}
	if p.outstanding() != 0 {
		t.Fatalf("slots survived failAll")
	}
}

func TestPendingRemoveDropsWithoutDelivery(t *testing.T) {
	p := newPendingCalls()
	id, slot := p.add()
	p.remove(id)

	select {
	case out := <-slot:
		t.Fatalf("unexpected delivery: %+v", out)
	default:
	}
	if p.outstanding() != 0 {
		t.Fatalf("slot survived remove")
	}
}
