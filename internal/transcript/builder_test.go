package transcript

import (
	"encoding/json"
	"testing"
	"time"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder("match-1", "tictactoe", map[string]interface{}{"board": []int{0, 0, 0}})
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	// Frozen clock so the chain is reproducible across runs
	ts := time.UnixMilli(1700000000000)
	b.now = func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}
	return b
}

func TestBuilderRootsAtInitialStateHash(t *testing.T) {
	b := newTestBuilder(t)
	initial, err := HashState(map[string]interface{}{"board": []int{0, 0, 0}})
	if err != nil {
		t.Fatalf("HashState failed: %v", err)
	}
	if b.Root() != initial {
		t.Errorf("Expected root %s before any entries, got %s", initial, b.Root())
	}
}

func TestBuilderChainsEntries(t *testing.T) {
	b := newTestBuilder(t)
	initial := b.Root()

	e0, err := b.AddEntry("0xaaaa", json.RawMessage(`{"cell":0}`), map[string]interface{}{"board": []int{1, 0, 0}})
	if err != nil {
		t.Fatalf("AddEntry failed: %v", err)
	}
	if e0.Sequence != 0 {
		t.Errorf("Expected sequence 0, got %d", e0.Sequence)
	}
	if e0.PrevHash != initial {
		t.Errorf("Entry 0 prevHash should be the initial-state hash")
	}

	rootAfter0 := b.Root()
	if rootAfter0 == initial {
		t.Error("Root did not advance after an entry")
	}

	e1, err := b.AddEntry("0xbbbb", json.RawMessage(`{"cell":1}`), map[string]interface{}{"board": []int{1, 2, 0}})
	if err != nil {
		t.Fatalf("AddEntry failed: %v", err)
	}
	if e1.Sequence != 1 {
		t.Errorf("Expected sequence 1, got %d", e1.Sequence)
	}
	if e1.PrevHash != rootAfter0 {
		t.Error("Entry 1 prevHash should equal the root after entry 0")
	}
	if b.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", b.Len())
	}
}

func TestVerifyChainReproducesRoot(t *testing.T) {
	b := newTestBuilder(t)
	initial := b.Root()

	b.AddEntry("0xaaaa", json.RawMessage(`{"cell":0}`), map[string]interface{}{"board": []int{1, 0, 0}})
	b.AddEntry("0xbbbb", json.RawMessage(`{"cell":2}`), map[string]interface{}{"board": []int{1, 0, 2}})
	b.AddEntry("0xaaaa", json.RawMessage(`{"cell":1}`), map[string]interface{}{"board": []int{1, 1, 2}})

	root, err := VerifyChain(initial, b.Entries())
	if err != nil {
		t.Fatalf("VerifyChain failed on an honest transcript: %v", err)
	}
	if root != b.Root() {
		t.Errorf("Replayed root %s does not match builder root %s", root, b.Root())
	}
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	b := newTestBuilder(t)
	initial := b.Root()
	b.AddEntry("0xaaaa", json.RawMessage(`{"cell":0}`), map[string]interface{}{"board": []int{1, 0, 0}})
	b.AddEntry("0xbbbb", json.RawMessage(`{"cell":1}`), map[string]interface{}{"board": []int{1, 2, 0}})

	entries := b.Entries()
	entries[0].Action = json.RawMessage(`{"cell":2}`)
	if _, err := VerifyChain(initial, entries); err == nil {
		t.Error("VerifyChain accepted a tampered action")
	}

	entries = b.Entries()
	entries[1].Sequence = 5
	if _, err := VerifyChain(initial, entries); err == nil {
		t.Error("VerifyChain accepted a bad sequence")
	}

	if _, err := VerifyChain("0xdeadbeef", b.Entries()); err == nil {
		t.Error("VerifyChain accepted a wrong initial hash")
	}
}
