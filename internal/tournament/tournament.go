package tournament

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound              = errors.New("tournament not found")
	ErrNotPlanned            = errors.New("tournament is not accepting registrations")
	ErrAliasTaken            = errors.New("alias already taken")
	ErrAlreadyRegistered     = errors.New("player already registered")
	ErrNotEnoughParticipants = errors.New("a tournament needs at least 3 participants")
	ErrAlreadyStarted        = errors.New("tournament already started")
)

type Status string

const (
	StatusPlanned   Status = "planned"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
)

// Participant is one registered player; seeds follow registration order.
type Participant struct {
	PlayerID     string    `json:"player_id"`
	Alias        string    `json:"alias"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Pairing is one slot in a round. A bye pairing has no match and is born
// finished: the unpaired seed advances with a recorded walkover win.
type Pairing struct {
	MatchID     string `json:"match_id,omitempty"`
	LeftPlayer  string `json:"left_player"`
	RightPlayer string `json:"right_player,omitempty"`
	Bye         bool   `json:"bye,omitempty"`
	Finished    bool   `json:"finished"`
	WinnerID    string `json:"winner_id,omitempty"`
}

// Tournament is a shared record guarded by its own lock; the engine never
// holds two tournament locks at once, so unrelated brackets don't serialize.
type Tournament struct {
	mu sync.Mutex

	ID        string
	Name      string
	CreatedAt time.Time

	status       Status
	participants []Participant
	rounds       [][]*Pairing
	winnerID     string
}

func newTournament(name string) *Tournament {
	return &Tournament{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now(),
		status:    StatusPlanned,
	}
}

// View is the read-only bracket projection served over REST.
type View struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	Participants []Participant `json:"participants"`
	Rounds       [][]Pairing   `json:"rounds"`
	WinnerID     string        `json:"winner_id,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

func (t *Tournament) snapshotLocked() View {
	v := View{
		ID:           t.ID,
		Name:         t.Name,
		Status:       t.status,
		Participants: append([]Participant(nil), t.participants...),
		WinnerID:     t.winnerID,
		CreatedAt:    t.CreatedAt,
	}
	for _, round := range t.rounds {
		out := make([]Pairing, 0, len(round))
		for _, p := range round {
			out = append(out, *p)
		}
		v.Rounds = append(v.Rounds, out)
	}
	return v
}
