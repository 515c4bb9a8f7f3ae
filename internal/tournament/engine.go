package tournament

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Starter schedules a live match between two participants and returns the
// match id. The engine never touches sessions directly; the wiring in
// cmd/server binds this to the match registry and the hub.
type Starter interface {
	StartMatch(leftPlayer, rightPlayer, tournamentID string) (matchID string, err error)
}

// Engine drives bracket progression. Per-tournament mutation is serialized
// by each Tournament's own lock; the engine lock only guards the lookup maps,
// so two simultaneously finishing matches in different tournaments never
// contend, and two in the same tournament cannot double-advance a round.
type Engine struct {
	mu          sync.RWMutex
	tournaments map[string]*Tournament
	byMatch     map[string]string // match id -> tournament id

	starter Starter
	log     *zap.Logger
}

func NewEngine(starter Starter, log *zap.Logger) *Engine {
	return &Engine{
		tournaments: make(map[string]*Tournament),
		byMatch:     make(map[string]string),
		starter:     starter,
		log:         log.Named("tournament"),
	}
}

func (e *Engine) Create(name string) View {
	t := newTournament(name)
	e.mu.Lock()
	e.tournaments[t.ID] = t
	e.mu.Unlock()
	e.log.Info("tournament created", zap.String("tournament_id", t.ID), zap.String("name", name))

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (e *Engine) get(id string) (*Tournament, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tournaments[id]
	return t, ok
}

// Register adds a participant while the tournament is still planned. Aliases
// are unique within a tournament, and a player registers at most once.
func (e *Engine) Register(tournamentID, playerID, alias string) error {
	t, ok := e.get(tournamentID)
	if !ok {
		return ErrNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusPlanned {
		return ErrNotPlanned
	}
	for _, p := range t.participants {
		if p.Alias == alias {
			return ErrAliasTaken
		}
		if p.PlayerID == playerID {
			return ErrAlreadyRegistered
		}
	}
	t.participants = append(t.participants, Participant{
		PlayerID:     playerID,
		Alias:        alias,
		RegisteredAt: time.Now(),
	})
	return nil
}

// Start seeds round 1 in registration order: seed 1 vs 2, 3 vs 4, and so on.
// An unpaired trailing seed takes a bye.
func (e *Engine) Start(tournamentID string) error {
	t, ok := e.get(tournamentID)
	if !ok {
		return ErrNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusOngoing || t.status == StatusCompleted {
		return ErrAlreadyStarted
	}
	if len(t.participants) < 3 {
		return ErrNotEnoughParticipants
	}

	seeds := make([]string, 0, len(t.participants))
	for _, p := range t.participants {
		seeds = append(seeds, p.PlayerID)
	}
	t.status = StatusOngoing
	if err := e.buildRoundLocked(t, seeds); err != nil {
		t.status = StatusPlanned
		t.rounds = nil
		return err
	}
	e.log.Info("tournament started",
		zap.String("tournament_id", t.ID),
		zap.Int("participants", len(t.participants)))
	return nil
}

// buildRoundLocked appends a round for the given ordered entrants and starts
// its live matches. Caller holds t.mu.
func (e *Engine) buildRoundLocked(t *Tournament, entrants []string) error {
	round := make([]*Pairing, 0, (len(entrants)+1)/2)
	for i := 0; i < len(entrants); i += 2 {
		if i+1 >= len(entrants) {
			// trailing seed: recorded walkover win, no session
			round = append(round, &Pairing{
				LeftPlayer: entrants[i],
				Bye:        true,
				Finished:   true,
				WinnerID:   entrants[i],
			})
			e.log.Info("bye awarded",
				zap.String("tournament_id", t.ID),
				zap.String("player_id", entrants[i]))
			continue
		}
		matchID, err := e.starter.StartMatch(entrants[i], entrants[i+1], t.ID)
		if err != nil {
			// Unbind the matches already scheduled for this round so a
			// stale result can never feed a rolled-back bracket.
			e.mu.Lock()
			for _, p := range round {
				if p.MatchID != "" {
					delete(e.byMatch, p.MatchID)
				}
			}
			e.mu.Unlock()
			return err
		}
		round = append(round, &Pairing{
			MatchID:     matchID,
			LeftPlayer:  entrants[i],
			RightPlayer: entrants[i+1],
		})
		e.mu.Lock()
		e.byMatch[matchID] = t.ID
		e.mu.Unlock()
	}
	t.rounds = append(t.rounds, round)
	return nil
}

// HandleMatchFinished records a result and, when it closes the round,
// generates the next one from the winners in original bracket order.
// Unknown matches and repeated results are ignored.
func (e *Engine) HandleMatchFinished(matchID, winnerID string) {
	e.mu.Lock()
	tournamentID, ok := e.byMatch[matchID]
	if ok {
		delete(e.byMatch, matchID)
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	t, ok := e.get(tournamentID)
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.rounds) == 0 {
		return
	}

	current := t.rounds[len(t.rounds)-1]
	var pairing *Pairing
	for _, p := range current {
		if p.MatchID == matchID {
			pairing = p
			break
		}
	}
	if pairing == nil || pairing.Finished {
		return
	}
	if winnerID == "" {
		// Aborted match with no winner; the lower seed advances.
		winnerID = pairing.LeftPlayer
		e.log.Warn("match finished without winner, advancing lower seed",
			zap.String("match_id", matchID),
			zap.String("player_id", winnerID))
	}
	pairing.Finished = true
	pairing.WinnerID = winnerID

	for _, p := range current {
		if !p.Finished {
			return // round still in progress
		}
	}

	winners := make([]string, 0, len(current))
	for _, p := range current {
		winners = append(winners, p.WinnerID)
	}
	if len(winners) == 1 {
		t.status = StatusCompleted
		t.winnerID = winners[0]
		e.log.Info("tournament completed",
			zap.String("tournament_id", t.ID),
			zap.String("winner_id", t.winnerID))
		return
	}
	if err := e.buildRoundLocked(t, winners); err != nil {
		e.log.Error("failed to build next round",
			zap.String("tournament_id", t.ID),
			zap.Error(err))
	}
}

func (e *Engine) Snapshot(tournamentID string) (View, error) {
	t, ok := e.get(tournamentID)
	if !ok {
		return View{}, ErrNotFound
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(), nil
}

func (e *Engine) List() []View {
	e.mu.RLock()
	all := make([]*Tournament, 0, len(e.tournaments))
	for _, t := range e.tournaments {
		all = append(all, t)
	}
	e.mu.RUnlock()

	views := make([]View, 0, len(all))
	for _, t := range all {
		t.mu.Lock()
		views = append(views, t.snapshotLocked())
		t.mu.Unlock()
	}
	return views
}
