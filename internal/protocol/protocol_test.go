package protocol

import (
	"encoding/json"
	"testing"
)

// The clients switch on these exact strings; pin them.
func TestWireNames(t *testing.T) {
	pins := map[string]string{
		MsgAssignedSide:  "assigned_side",
		MsgCountdown:     "countdown",
		MsgWoCountdown:   "wo_countdown",
		MsgGameStart:     "game_start",
		MsgPaused:        "paused",
		MsgResumed:       "resumed",
		MsgStateUpdate:   "state_update",
		MsgWalkover:      "walkover",
		MsgMatchFinished: "match_finished",
		MsgPlayerMove:    "player_move",
		MsgPauseGame:     "pause_game",
		MsgResumeGame:    "resume_game",
	}
	for got, want := range pins {
		if got != want {
			t.Fatalf("wire name drifted: %q != %q", got, want)
		}
	}
}

func TestEncodeStateUpdateShape(t *testing.T) {
	msg := ServerMessage{
		Type: MsgStateUpdate,
		State: &StatePayload{
			Tick:    42,
			Ball:    &BallPayload{X: 400, Y: 200},
			Paddles: &PaddlesPayload{Left: 160, Right: 180},
			Scores:  &ScoresPayload{Left: 2, Right: 1},
		},
	}
	b, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if out["type"] != "state_update" {
		t.Fatalf("type = %v", out["type"])
	}
	state, ok := out["state"].(map[string]any)
	if !ok {
		t.Fatalf("state missing: %s", b)
	}
	ball := state["ball"].(map[string]any)
	if ball["x"] != 400.0 || ball["y"] != 200.0 {
		t.Fatalf("ball fields wrong: %v", ball)
	}
	scores := state["scores"].(map[string]any)
	if scores["left"] != 2.0 || scores["right"] != 1.0 {
		t.Fatalf("scores fields wrong: %v", scores)
	}
}

func TestEncodeOmitsEmptyState(t *testing.T) {
	b, err := Encode(ServerMessage{Type: MsgGameStart})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(b) != `{"type":"game_start"}` {
		t.Fatalf("game_start frame = %s", b)
	}
}

func TestEncodeRejectsEmptyType(t *testing.T) {
	if _, err := Encode(ServerMessage{}); err == nil {
		t.Fatalf("expected error for empty type")
	}
}

func TestDecodeClient(t *testing.T) {
	msg, err := DecodeClient([]byte(`{"type":"player_move","direction":"up"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != MsgPlayerMove || msg.Direction != "up" {
		t.Fatalf("decoded %+v", msg)
	}
}

func TestDecodeClientToleratesUnknownFieldsAndTypes(t *testing.T) {
	msg, err := DecodeClient([]byte(`{"type":"emote","flavor":"gg"}`))
	if err != nil {
		t.Fatalf("unknown type must decode: %v", err)
	}
	if msg.Type != "emote" {
		t.Fatalf("type = %q", msg.Type)
	}
}

func TestDecodeClientErrors(t *testing.T) {
	if _, err := DecodeClient(nil); err == nil {
		t.Fatalf("empty frame must error")
	}
	if _, err := DecodeClient([]byte(`{`)); err == nil {
		t.Fatalf("broken json must error")
	}
	if _, err := DecodeClient([]byte(`{"direction":"up"}`)); err == nil {
		t.Fatalf("missing type must error")
	}
}
