package modules

import (
	"encoding/json"
	"math/rand"
	"testing"
)

type fakeModule struct {
	id string
}

func (f *fakeModule) Meta() Meta { return Meta{GameID: f.id, Name: f.id} }
func (f *fakeModule) Init(cfg Config, players []string, seed string) (State, error) {
	return nil, nil
}
func (f *fakeModule) ValidateAction(st State, player string, action json.RawMessage) bool {
	return false
}
func (f *fakeModule) ApplyAction(st State, player string, action json.RawMessage, rng *rand.Rand) (State, error) {
	return st, nil
}
func (f *fakeModule) IsTerminal(st State) bool { return false }
func (f *fakeModule) Outcome(st State) Outcome { return Outcome{} }
func (f *fakeModule) Observation(st State, player string) interface{} { return nil }
func (f *fakeModule) LegalActions(st State, player string) []json.RawMessage { return nil }

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&fakeModule{id: "chess"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if !r.Has("chess") {
		t.Error("Has returned false for a registered module")
	}
	if r.Has("checkers") {
		t.Error("Has returned true for an unknown module")
	}

	m, err := r.Get("chess")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if m.Meta().GameID != "chess" {
		t.Errorf("Got wrong module: %s", m.Meta().GameID)
	}

	if _, err := r.Get("checkers"); err == nil {
		t.Error("Get succeeded for an unknown module")
	}
}

func TestDuplicateRegistrationFails(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeModule{id: "chess"})
	if err := r.Register(&fakeModule{id: "chess"}); err == nil {
		t.Error("Duplicate registration accepted")
	}
	if err := r.Register(&fakeModule{id: ""}); err == nil {
		t.Error("Empty gameId accepted")
	}
}

func TestListSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeModule{id: "zed"})
	r.Register(&fakeModule{id: "alpha"})
	r.Register(&fakeModule{id: "mid"})

	metas := r.List()
	if len(metas) != 3 {
		t.Fatalf("Expected 3 modules, got %d", len(metas))
	}
	for i, want := range []string{"alpha", "mid", "zed"} {
		if metas[i].GameID != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, metas[i].GameID)
		}
	}
}

func TestSeededRandDeterministic(t *testing.T) {
	a := SeededRand("seed-x")
	b := SeededRand("seed-x")
	for i := 0; i < 16; i++ {
		if a.Int63() != b.Int63() {
			t.Fatal("Same seed diverged")
		}
	}

	c := SeededRand("seed-y")
	d := SeededRand("seed-x")
	same := true
	for i := 0; i < 16; i++ {
		if c.Int63() != d.Int63() {
			same = false
			break
		}
	}
	if same {
		t.Error("Different seeds produced identical streams")
	}
}
