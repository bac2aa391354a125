package ws

import (
	"encoding/json"
	"testing"
)

func TestDispatchRejectsForeignMatchFrame(t *testing.T) {
	c := testClient("m1", "0xaaaa", RolePlayer)

	c.dispatch(&Frame{Type: TypeChat, MatchID: "m2"})

	f := drain(t, c)
	if f == nil || f.Type != TypeError {
		t.Fatal("Expected an ERROR frame for a frame addressed to another match")
	}
	if f.MatchID != "m1" {
		t.Errorf("Error frame carries matchId %s, want the session's m1", f.MatchID)
	}
	var payload map[string]string
	if err := json.Unmarshal(f.Payload, &payload); err != nil || payload["code"] != "transport_bad_frame" {
		t.Errorf("Expected code transport_bad_frame, got %v", payload)
	}
}

func TestDispatchSpectatorReadOnly(t *testing.T) {
	c := testClient("m1", "", RoleSpectator)

	c.dispatch(&Frame{Type: TypeChat, MatchID: "m1"})

	f := drain(t, c)
	if f == nil || f.Type != TypeError {
		t.Fatal("Expected an ERROR frame for a spectator send")
	}
}

func TestDispatchUnknownFrameType(t *testing.T) {
	c := testClient("m1", "0xaaaa", RolePlayer)

	c.dispatch(&Frame{Type: "BOGUS", MatchID: "m1"})

	f := drain(t, c)
	if f == nil || f.Type != TypeError {
		t.Fatal("Expected an ERROR frame for an unknown frame type")
	}
}
