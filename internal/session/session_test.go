package session

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ft-transcendence/pong-core/internal/match"
	"github.com/ft-transcendence/pong-core/internal/physics"
	"github.com/ft-transcendence/pong-core/internal/protocol"
)

// fast clock so countdown/grace tests finish in milliseconds
func testConfig() Config {
	return Config{
		TickHz:           120,
		CountdownSeconds: 1,
		GraceSeconds:     2,
		OutboxSize:       64,
		ClockInterval:    20 * time.Millisecond,
	}
}

func newTestSession(t *testing.T, cfg Config, onFinished func(Result)) (*Session, *match.Match) {
	t.Helper()
	m := match.New("alice", "bob", "")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s := New(ctx, m, cfg, zap.NewNop(), onFinished)
	return s, m
}

func join(t *testing.T, s *Session, playerID string) chan protocol.ServerMessage {
	t.Helper()
	out := make(chan protocol.ServerMessage, 64)
	reply := make(chan JoinResult, 1)
	s.Inbox() <- Join{PlayerID: playerID, Outbox: out, Reply: reply}
	select {
	case res := <-reply:
		if res.Err != nil {
			t.Fatalf("join %s: %v", playerID, res.Err)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out joining %s", playerID)
	}
	return out
}

// recvType drains the outbox until a message of the wanted type arrives.
func recvType(t *testing.T, ch <-chan protocol.ServerMessage, msgType string, within time.Duration) protocol.ServerMessage {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for %q", msgType)
			}
			if msg.Type == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", msgType)
			return protocol.ServerMessage{}
		}
	}
}

func recvNoType(t *testing.T, ch <-chan protocol.ServerMessage, msgType string, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg.Type == msgType {
				t.Fatalf("unexpected %q message: %+v", msgType, msg)
			}
		case <-deadline:
			return
		}
	}
}

func inspect(t *testing.T, s *Session) View {
	t.Helper()
	reply := make(chan View, 1)
	s.Inbox() <- Inspect{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{}
	}
}

func TestJoinAssignsFixedSides(t *testing.T) {
	s, _ := newTestSession(t, testConfig(), nil)

	aliceOut := join(t, s, "alice")
	msg := recvType(t, aliceOut, protocol.MsgAssignedSide, time.Second)
	if msg.Side != "left" {
		t.Fatalf("alice side = %q, want left", msg.Side)
	}

	bobOut := join(t, s, "bob")
	msg = recvType(t, bobOut, protocol.MsgAssignedSide, time.Second)
	if msg.Side != "right" {
		t.Fatalf("bob side = %q, want right", msg.Side)
	}
}

func TestStrangerRejectedWhenSpectatorsDisabled(t *testing.T) {
	s, _ := newTestSession(t, testConfig(), nil)

	out := make(chan protocol.ServerMessage, 4)
	reply := make(chan JoinResult, 1)
	s.Inbox() <- Join{PlayerID: "mallory", Outbox: out, Reply: reply}
	res := <-reply
	if res.Err == nil {
		t.Fatalf("expected join rejection for non-participant")
	}
}

func TestSpectatorReceivesStateButCannotMove(t *testing.T) {
	cfg := testConfig()
	cfg.AllowSpectators = true
	s, _ := newTestSession(t, cfg, nil)

	join(t, s, "alice")
	bobOut := join(t, s, "bob")
	recvType(t, bobOut, protocol.MsgGameStart, 2*time.Second)

	specOut := make(chan protocol.ServerMessage, 64)
	reply := make(chan JoinResult, 1)
	s.Inbox() <- Join{PlayerID: "watcher", Outbox: specOut, Reply: reply}
	if res := <-reply; res.Err != nil {
		t.Fatalf("spectator join: %v", res.Err)
	}
	recvType(t, specOut, protocol.MsgStateUpdate, time.Second)

	s.Inbox() <- FromClient{PlayerID: "watcher", Msg: protocol.ClientMessage{Type: protocol.MsgPauseGame}}
	v := inspect(t, s)
	if v.Status != match.StatusRunning {
		t.Fatalf("spectator input changed status: %v", v.Status)
	}
	if v.NumSpectators != 1 {
		t.Fatalf("spectators = %d, want 1", v.NumSpectators)
	}
}

func TestCountdownThenGameStart(t *testing.T) {
	s, m := newTestSession(t, testConfig(), nil)

	aliceOut := join(t, s, "alice")
	join(t, s, "bob")

	cd := recvType(t, aliceOut, protocol.MsgCountdown, time.Second)
	if cd.State == nil || cd.State.Message == "" {
		t.Fatalf("countdown without message payload: %+v", cd)
	}
	recvType(t, aliceOut, protocol.MsgGameStart, 2*time.Second)

	if got := m.Status(); got != match.StatusRunning {
		t.Fatalf("match status after game_start = %v, want running", got)
	}
}

func TestStateUpdatesCarryMonotonicTicks(t *testing.T) {
	s, _ := newTestSession(t, testConfig(), nil)

	aliceOut := join(t, s, "alice")
	join(t, s, "bob")
	recvType(t, aliceOut, protocol.MsgGameStart, 2*time.Second)

	first := recvType(t, aliceOut, protocol.MsgStateUpdate, time.Second)
	second := recvType(t, aliceOut, protocol.MsgStateUpdate, time.Second)
	if first.State == nil || second.State == nil {
		t.Fatalf("state_update without state payload")
	}
	if second.State.Tick <= first.State.Tick {
		t.Fatalf("ticks not monotonic: %d then %d", first.State.Tick, second.State.Tick)
	}
	if first.State.Ball == nil || first.State.Paddles == nil || first.State.Scores == nil {
		t.Fatalf("state_update missing contract fields: %+v", first.State)
	}
}

func TestPlayerMoveMovesOwnPaddle(t *testing.T) {
	s, _ := newTestSession(t, testConfig(), nil)

	aliceOut := join(t, s, "alice")
	join(t, s, "bob")
	recvType(t, aliceOut, protocol.MsgGameStart, 2*time.Second)

	before := inspect(t, s).State
	s.Inbox() <- FromClient{PlayerID: "alice", Msg: protocol.ClientMessage{Type: protocol.MsgPlayerMove, Direction: "down"}}

	// wait for at least one tick to apply the queued input
	deadline := time.Now().Add(time.Second)
	for {
		v := inspect(t, s)
		if v.State.PaddleLeft > before.PaddleLeft {
			if v.State.PaddleRight != before.PaddleRight {
				t.Fatalf("opponent paddle moved without input")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("paddle did not move: %v -> %v", before.PaddleLeft, v.State.PaddleLeft)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMoveBeforeRunningIsNoOp(t *testing.T) {
	s, _ := newTestSession(t, testConfig(), nil)

	join(t, s, "alice")
	before := inspect(t, s).State

	s.Inbox() <- FromClient{PlayerID: "alice", Msg: protocol.ClientMessage{Type: protocol.MsgPlayerMove, Direction: "up"}}
	v := inspect(t, s)
	if v.State.PaddleLeft != before.PaddleLeft {
		t.Fatalf("paddle moved while match was pending")
	}
	if v.Status != match.StatusPending {
		t.Fatalf("status = %v, want pending", v.Status)
	}
}

func TestMalformedInputIsDroppedNotFatal(t *testing.T) {
	s, _ := newTestSession(t, testConfig(), nil)

	aliceOut := join(t, s, "alice")
	join(t, s, "bob")
	recvType(t, aliceOut, protocol.MsgGameStart, 2*time.Second)

	s.Inbox() <- FromClient{PlayerID: "alice", Msg: protocol.ClientMessage{Type: protocol.MsgPlayerMove, Direction: "sideways"}}
	s.Inbox() <- FromClient{PlayerID: "alice", Msg: protocol.ClientMessage{Type: "teleport_ball"}}

	v := inspect(t, s)
	if v.Status != match.StatusRunning {
		t.Fatalf("session died on malformed input: %v", v.Status)
	}
}

func TestPauseResume(t *testing.T) {
	s, _ := newTestSession(t, testConfig(), nil)

	aliceOut := join(t, s, "alice")
	bobOut := join(t, s, "bob")
	recvType(t, aliceOut, protocol.MsgGameStart, 2*time.Second)
	recvType(t, bobOut, protocol.MsgGameStart, 2*time.Second)

	s.Inbox() <- FromClient{PlayerID: "bob", Msg: protocol.ClientMessage{Type: protocol.MsgPauseGame}}
	recvType(t, aliceOut, protocol.MsgPaused, time.Second)
	recvType(t, bobOut, protocol.MsgPaused, time.Second)

	// no frames advance while paused
	recvNoType(t, aliceOut, protocol.MsgStateUpdate, 100*time.Millisecond)
	pausedTick := inspect(t, s).Tick

	s.Inbox() <- FromClient{PlayerID: "alice", Msg: protocol.ClientMessage{Type: protocol.MsgResumeGame}}
	recvType(t, aliceOut, protocol.MsgResumed, time.Second)
	redelivered := recvType(t, aliceOut, protocol.MsgStateUpdate, time.Second)
	if redelivered.State.Tick != pausedTick {
		t.Fatalf("resume redelivery tick = %d, want last known %d", redelivered.State.Tick, pausedTick)
	}
}

func TestDisconnectStartsWalkoverAndExpiryFinishes(t *testing.T) {
	results := make(chan Result, 1)
	s, m := newTestSession(t, testConfig(), func(r Result) { results <- r })

	aliceOut := join(t, s, "alice")
	bobOut := join(t, s, "bob")
	recvType(t, aliceOut, protocol.MsgGameStart, 2*time.Second)

	s.Inbox() <- Leave{PlayerID: "bob"}
	_ = bobOut

	wo := recvType(t, aliceOut, protocol.MsgWoCountdown, time.Second)
	if wo.State == nil || wo.State.Countdown <= 0 {
		t.Fatalf("wo_countdown without remaining seconds: %+v", wo)
	}

	walkover := recvType(t, aliceOut, protocol.MsgWalkover, 2*time.Second)
	if walkover.State == nil || walkover.State.RedirectURL == "" {
		t.Fatalf("walkover without redirect_url: %+v", walkover)
	}

	select {
	case r := <-results:
		if r.WinnerID != "alice" {
			t.Fatalf("walkover winner = %q, want alice", r.WinnerID)
		}
		if r.Outcome != match.OutcomeWalkover {
			t.Fatalf("outcome = %q, want walkover", r.Outcome)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for result callback")
	}

	if got := m.Status(); got != match.StatusFinished {
		t.Fatalf("match status = %v, want finished", got)
	}
}

func TestReconnectWithinGraceResumesPriorState(t *testing.T) {
	results := make(chan Result, 1)
	s, m := newTestSession(t, testConfig(), func(r Result) { results <- r })

	aliceOut := join(t, s, "alice")
	join(t, s, "bob")
	recvType(t, aliceOut, protocol.MsgGameStart, 2*time.Second)

	s.Inbox() <- Leave{PlayerID: "bob"}
	recvType(t, aliceOut, protocol.MsgWoCountdown, time.Second)

	bobOut := join(t, s, "bob")
	side := recvType(t, bobOut, protocol.MsgAssignedSide, time.Second)
	if side.Side != "right" {
		t.Fatalf("reconnect renegotiated side: %q", side.Side)
	}
	recvType(t, aliceOut, protocol.MsgResumed, time.Second)

	if got := inspect(t, s).Status; got != match.StatusRunning {
		t.Fatalf("status after reconnect = %v, want running", got)
	}

	// the grace timer is cancelled: no walkover fires afterwards
	select {
	case r := <-results:
		t.Fatalf("unexpected result after reconnect: %+v", r)
	case <-time.After(150 * time.Millisecond):
	}
	if got := m.Status(); got == match.StatusFinished {
		t.Fatalf("match finished despite reconnect")
	}
}

func TestJoinRefusedOnceMatchIsFinished(t *testing.T) {
	m := match.New("alice", "bob", "")
	m.Finish("alice", match.OutcomeScore, 5, 2)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s := New(ctx, m, testConfig(), zap.NewNop(), nil)

	out := make(chan protocol.ServerMessage, 8)
	reply := make(chan JoinResult, 1)
	for _, player := range []string{"alice", "bob"} {
		s.Inbox() <- Join{PlayerID: player, Outbox: out, Reply: reply}
		if res := <-reply; res.Err == nil {
			t.Fatalf("%s joined a finished match", player)
		}
	}

	// the decided match must never start over
	recvNoType(t, out, protocol.MsgCountdown, 100*time.Millisecond)
	if got := inspect(t, s).Status; got != match.StatusFinished {
		t.Fatalf("status = %v, want finished", got)
	}
}

func TestBothDisconnectedLaterDropperWinsWalkover(t *testing.T) {
	results := make(chan Result, 1)
	s, _ := newTestSession(t, testConfig(), func(r Result) { results <- r })

	aliceOut := join(t, s, "alice")
	join(t, s, "bob")
	recvType(t, aliceOut, protocol.MsgGameStart, 2*time.Second)

	// alice drops first and the grace timer counts against her; when bob
	// drops too, the match is still bob's to take.
	s.Inbox() <- Leave{PlayerID: "alice"}
	s.Inbox() <- Leave{PlayerID: "bob"}

	select {
	case r := <-results:
		if r.WinnerID != "bob" {
			t.Fatalf("walkover winner = %q, want bob (dropped last)", r.WinnerID)
		}
		if r.Outcome != match.OutcomeWalkover {
			t.Fatalf("outcome = %q, want walkover", r.Outcome)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for walkover result")
	}
}

func TestDoneSignalsAfterFinish(t *testing.T) {
	s, _ := newTestSession(t, testConfig(), nil)

	aliceOut := join(t, s, "alice")
	join(t, s, "bob")
	recvType(t, aliceOut, protocol.MsgGameStart, 2*time.Second)

	s.Inbox() <- Leave{PlayerID: "bob"}
	recvType(t, aliceOut, protocol.MsgWalkover, 2*time.Second)

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatalf("Done not closed after the session finished")
	}
}

func TestScoreWinEmitsMatchFinishedOnce(t *testing.T) {
	results := make(chan Result, 2)

	// Match point: ball one tick away from an undefended right goal line.
	initial := physics.NewState()
	initial.ScoreLeft = physics.TargetScore - 1
	initial.Ball = physics.Ball{X: physics.Width - physics.BallSize - 1, Y: 30, VX: physics.BallSpeedX, VY: 0}

	m := match.New("alice", "bob", "")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s := NewWithState(ctx, m, initial, testConfig(), zap.NewNop(), func(r Result) { results <- r })

	aliceOut := join(t, s, "alice")
	bobOut := join(t, s, "bob")
	recvType(t, aliceOut, protocol.MsgGameStart, 2*time.Second)

	fin := recvType(t, bobOut, protocol.MsgMatchFinished, 5*time.Second)
	if fin.State == nil || len(fin.State.FinalAlert) == 0 {
		t.Fatalf("match_finished without final_alert: %+v", fin)
	}
	if _, ok := fin.State.FinalAlert["alice"]; !ok {
		t.Fatalf("final_alert not keyed by player id: %+v", fin.State.FinalAlert)
	}

	r := <-results
	if r.WinnerID != "alice" || r.Outcome != match.OutcomeScore {
		t.Fatalf("result = %+v, want alice score win", r)
	}
	v := m.Snapshot()
	if v.ScoreLeft != 5 {
		t.Fatalf("final left score = %d, want 5", v.ScoreLeft)
	}

	select {
	case extra := <-results:
		t.Fatalf("result delivered twice: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}
