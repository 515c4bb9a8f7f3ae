package match

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ft-transcendence/pong-core/internal/physics"
)

type Status string

const (
	StatusPending         Status = "pending"
	StatusCountdown       Status = "countdown"
	StatusRunning         Status = "running"
	StatusPaused          Status = "paused"
	StatusWalkoverPending Status = "walkover_pending"
	StatusFinished        Status = "finished"
)

type Outcome string

const (
	OutcomeNone     Outcome = ""
	OutcomeScore    Outcome = "score"
	OutcomeWalkover Outcome = "walkover"
	OutcomeError    Outcome = "error"
)

// Match is the shared record for one game. Sessions own the simulation;
// this record only carries identity, lifecycle and the final result, and is
// the unit other components lock on.
type Match struct {
	mu sync.Mutex

	ID           string
	LeftPlayer   string // player id assigned to the left paddle
	RightPlayer  string
	TournamentID string // "" for a plain 1v1
	CreatedAt    time.Time

	status     Status
	scoreLeft  int
	scoreRight int
	winnerID   string
	outcome    Outcome
}

// New fixes the side assignment at creation: the challenger (or lower seed)
// takes left. Reconnects must present the same player id to get the same side.
func New(leftPlayer, rightPlayer, tournamentID string) *Match {
	return &Match{
		ID:           uuid.NewString(),
		LeftPlayer:   leftPlayer,
		RightPlayer:  rightPlayer,
		TournamentID: tournamentID,
		CreatedAt:    time.Now(),
		status:       StatusPending,
	}
}

// SideOf resolves a participant to their fixed side.
func (m *Match) SideOf(playerID string) (physics.Side, bool) {
	switch playerID {
	case m.LeftPlayer:
		return physics.SideLeft, true
	case m.RightPlayer:
		return physics.SideRight, true
	default:
		return "", false
	}
}

func (m *Match) PlayerOn(side physics.Side) string {
	if side == physics.SideLeft {
		return m.LeftPlayer
	}
	return m.RightPlayer
}

func (m *Match) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// SetStatus moves the lifecycle. Finished is terminal: any later transition
// is refused.
func (m *Match) SetStatus(s Status) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusFinished {
		return false
	}
	m.status = s
	return true
}

func (m *Match) SetScore(left, right int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusFinished {
		return
	}
	m.scoreLeft, m.scoreRight = left, right
}

// Finish records the terminal outcome. It reports false if the match was
// already finished, so a result is only ever applied once.
func (m *Match) Finish(winnerID string, outcome Outcome, scoreLeft, scoreRight int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusFinished {
		return false
	}
	m.status = StatusFinished
	m.winnerID = winnerID
	m.outcome = outcome
	m.scoreLeft, m.scoreRight = scoreLeft, scoreRight
	return true
}

// View is the read-only JSON projection served over REST.
type View struct {
	ID           string    `json:"id"`
	LeftPlayer   string    `json:"left_player"`
	RightPlayer  string    `json:"right_player"`
	TournamentID string    `json:"tournament_id,omitempty"`
	Status       Status    `json:"status"`
	ScoreLeft    int       `json:"score_left"`
	ScoreRight   int       `json:"score_right"`
	WinnerID     string    `json:"winner_id,omitempty"`
	Outcome      Outcome   `json:"outcome,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (m *Match) Snapshot() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return View{
		ID:           m.ID,
		LeftPlayer:   m.LeftPlayer,
		RightPlayer:  m.RightPlayer,
		TournamentID: m.TournamentID,
		Status:       m.status,
		ScoreLeft:    m.scoreLeft,
		ScoreRight:   m.scoreRight,
		WinnerID:     m.winnerID,
		Outcome:      m.outcome,
		CreatedAt:    m.CreatedAt,
	}
}
