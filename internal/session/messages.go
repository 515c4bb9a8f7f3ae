package session

import (
	"github.com/ft-transcendence/pong-core/internal/match"
	"github.com/ft-transcendence/pong-core/internal/physics"
	"github.com/ft-transcendence/pong-core/internal/protocol"
)

type Msg interface{ isSessionMsg() }

// Join attaches a socket to the session. Participants get their fixed side
// back on Reply; unrelated players are only admitted as spectators when the
// session allows it.
type Join struct {
	PlayerID  string
	Spectator bool
	Outbox    chan protocol.ServerMessage
	Reply     chan JoinResult
}

func (Join) isSessionMsg() {}

type JoinResult struct {
	Side physics.Side // "" for spectators
	Err  error
}

// Leave is a transport event, not a game event: the session decides whether
// it starts the walkover grace period.
type Leave struct{ PlayerID string }

func (Leave) isSessionMsg() {}

// FromClient carries one decoded inbound frame.
type FromClient struct {
	PlayerID string
	Msg      protocol.ClientMessage
}

func (FromClient) isSessionMsg() {}

// Inspect reflects internal state without data races; used by tests.
type Inspect struct{ Reply chan View }

func (Inspect) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

type View struct {
	Status        match.Status
	Tick          uint64
	State         physics.State
	NumPlayers    int
	NumSpectators int
	CountdownLeft int
	GraceLeft     int
}

// Result is handed to the OnFinished callback exactly once per session.
type Result struct {
	MatchID      string
	TournamentID string
	WinnerID     string
	Outcome      match.Outcome
	ScoreLeft    int
	ScoreRight   int
}
