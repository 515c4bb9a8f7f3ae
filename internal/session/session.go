package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ft-transcendence/pong-core/internal/match"
	"github.com/ft-transcendence/pong-core/internal/physics"
	"github.com/ft-transcendence/pong-core/internal/protocol"
)

var (
	ErrNotParticipant = errors.New("player is not a participant of this match")
	ErrFinished       = errors.New("match already finished")
)

// Config carries the lifecycle tunables. ClockInterval exists so tests can
// run the countdown/grace clock fast.
type Config struct {
	TickHz           int
	CountdownSeconds int
	GraceSeconds     int
	AllowSpectators  bool
	OutboxSize       int
	ClockInterval    time.Duration
}

func (c Config) withDefaults() Config {
	if c.TickHz <= 0 {
		c.TickHz = 60
	}
	if c.CountdownSeconds <= 0 {
		c.CountdownSeconds = 3
	}
	if c.GraceSeconds <= 0 {
		c.GraceSeconds = 30
	}
	if c.OutboxSize <= 0 {
		c.OutboxSize = 32
	}
	if c.ClockInterval <= 0 {
		c.ClockInterval = time.Second
	}
	return c
}

type client struct {
	id        string
	side      physics.Side
	spectator bool
	out       chan protocol.ServerMessage
}

// deliver never blocks the simulation: when the outbox is full the oldest
// pending frame is dropped. Frames are superseding, stale ones are safe to
// lose. Only the session goroutine produces into out, so the retry converges.
func (c *client) deliver(msg protocol.ServerMessage) {
	for {
		select {
		case c.out <- msg:
			return
		default:
			select {
			case <-c.out:
			default:
			}
		}
	}
}

// Session is the live execution of one match: a single goroutine owning the
// physics state, the two player connections and the lifecycle timers.
// Nothing outside this goroutine ever touches the simulation.
type Session struct {
	inbox chan Msg
	cfg   Config
	log   *zap.Logger
	m     *match.Match

	state physics.State
	tick  uint64

	status     match.Status
	prevStatus match.Status // state to return to if a walkover is cancelled

	players    map[string]*client
	spectators map[string]*client
	inputs     map[physics.Side]physics.Direction

	countdownLeft int
	graceLeft     int
	droppedFirst  string // player id whose disconnect armed the grace timer; the walkover counts against them

	simTicker *time.Ticker
	clock     *time.Ticker
	clockC    <-chan time.Time

	onFinished func(Result)
	finished   bool

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, m *match.Match, cfg Config, log *zap.Logger, onFinished func(Result)) *Session {
	return NewWithState(parent, m, physics.NewState(), cfg, log, onFinished)
}

// NewWithState starts the session from a caller-supplied frame instead of
// the standard kickoff state.
func NewWithState(parent context.Context, m *match.Match, initial physics.State, cfg Config, log *zap.Logger, onFinished func(Result)) *Session {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(parent)
	// A session asked for again after the match was decided must refuse
	// joins instead of replaying the game from kickoff.
	status := match.StatusPending
	if m.Status() == match.StatusFinished {
		status = match.StatusFinished
	}
	s := &Session{
		inbox:      make(chan Msg, 64),
		cfg:        cfg,
		log:        log.With(zap.String("match_id", m.ID)),
		m:          m,
		state:      initial,
		status:     status,
		finished:   status == match.StatusFinished,
		players:    make(map[string]*client),
		spectators: make(map[string]*client),
		inputs:     make(map[physics.Side]physics.Direction),
		simTicker:  time.NewTicker(time.Second / time.Duration(cfg.TickHz)),
		onFinished: onFinished,
		ctx:        ctx,
		cancel:     cancel,
	}
	go s.loop()
	return s
}

func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) MatchID() string { return s.m.ID }

// Done closes once the session goroutine stops draining its inbox. Senders
// select on it so they never block on a finished session.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

func (s *Session) loop() {
	defer s.simTicker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				s.handleJoin(msg)
			case Leave:
				s.handleLeave(msg.PlayerID)
			case FromClient:
				s.handleClientMsg(msg)
			case Inspect:
				msg.Reply <- View{
					Status:        s.status,
					Tick:          s.tick,
					State:         s.state,
					NumPlayers:    len(s.players),
					NumSpectators: len(s.spectators),
					CountdownLeft: s.countdownLeft,
					GraceLeft:     s.graceLeft,
				}
			case Shutdown:
				s.shutdown()
				return
			}

		case <-s.simTicker.C:
			s.onSimTick()

		case <-s.clockC:
			s.onClockTick()
		}
	}
}

func (s *Session) handleJoin(msg Join) {
	if s.status == match.StatusFinished {
		msg.Reply <- JoinResult{Err: ErrFinished}
		return
	}

	side, isParticipant := s.m.SideOf(msg.PlayerID)
	if !isParticipant || msg.Spectator {
		if !s.cfg.AllowSpectators {
			msg.Reply <- JoinResult{Err: ErrNotParticipant}
			return
		}
		c := &client{id: msg.PlayerID, spectator: true, out: msg.Outbox}
		if old, ok := s.spectators[msg.PlayerID]; ok {
			close(old.out)
		}
		s.spectators[msg.PlayerID] = c
		c.deliver(s.stateUpdate())
		msg.Reply <- JoinResult{}
		return
	}

	c := &client{id: msg.PlayerID, side: side, out: msg.Outbox}
	if old, ok := s.players[msg.PlayerID]; ok {
		// Stale socket for the same player; the new one wins.
		close(old.out)
	}
	s.players[msg.PlayerID] = c
	msg.Reply <- JoinResult{Side: side}

	c.deliver(protocol.ServerMessage{
		Type:     protocol.MsgAssignedSide,
		Side:     string(side),
		PlayerID: msg.PlayerID,
	})
	c.deliver(s.stateUpdate())
	s.log.Info("player joined", zap.String("player_id", msg.PlayerID), zap.String("side", string(side)))

	switch s.status {
	case match.StatusPending:
		if len(s.players) == 2 {
			s.startCountdown()
		}
	case match.StatusWalkoverPending:
		if msg.PlayerID == s.droppedFirst {
			s.cancelWalkover()
		}
	}
}

func (s *Session) handleLeave(playerID string) {
	if c, ok := s.spectators[playerID]; ok {
		close(c.out)
		delete(s.spectators, playerID)
		return
	}
	c, ok := s.players[playerID]
	if !ok {
		return
	}
	close(c.out)
	delete(s.players, playerID)
	s.log.Info("player disconnected", zap.String("player_id", playerID), zap.String("status", string(s.status)))

	switch s.status {
	case match.StatusCountdown, match.StatusRunning, match.StatusPaused:
		s.prevStatus = s.status
		s.droppedFirst = playerID
		s.setStatus(match.StatusWalkoverPending)
		s.graceLeft = s.cfg.GraceSeconds
		s.armClock()
		s.broadcast(protocol.ServerMessage{
			Type:  protocol.MsgWoCountdown,
			State: &protocol.StatePayload{Countdown: s.graceLeft},
		})
	case match.StatusWalkoverPending:
		// The remaining side dropped too. The walkover still counts
		// against whoever left first, so the later dropper takes it when
		// the grace expires.
	}
}

func (s *Session) handleClientMsg(msg FromClient) {
	c, ok := s.players[msg.PlayerID]
	if !ok {
		// Spectators and strangers have no say; normal jitter, not an error.
		s.log.Debug("input from non-player dropped", zap.String("player_id", msg.PlayerID))
		return
	}

	switch msg.Msg.Type {
	case protocol.MsgPlayerMove:
		if s.status != match.StatusRunning {
			return
		}
		switch msg.Msg.Direction {
		case string(physics.DirUp):
			s.inputs[c.side] = physics.DirUp
		case string(physics.DirDown):
			s.inputs[c.side] = physics.DirDown
		default:
			s.log.Warn("malformed player_move dropped",
				zap.String("player_id", msg.PlayerID),
				zap.String("direction", msg.Msg.Direction))
		}

	case protocol.MsgPauseGame:
		if s.status != match.StatusRunning {
			return
		}
		s.setStatus(match.StatusPaused)
		s.broadcast(protocol.ServerMessage{Type: protocol.MsgPaused})
		s.log.Info("match paused", zap.String("by", msg.PlayerID))

	case protocol.MsgResumeGame:
		if s.status != match.StatusPaused {
			return
		}
		s.setStatus(match.StatusRunning)
		s.broadcast(protocol.ServerMessage{Type: protocol.MsgResumed})
		s.broadcast(s.stateUpdate()) // redeliver last known frame once
		s.log.Info("match resumed", zap.String("by", msg.PlayerID))

	default:
		s.log.Warn("unknown message type dropped",
			zap.String("player_id", msg.PlayerID),
			zap.String("type", msg.Msg.Type))
	}
}

func (s *Session) onSimTick() {
	if s.status != match.StatusRunning {
		return
	}

	dt := 1.0 / float64(s.cfg.TickHz)
	next := physics.Step(s.state,
		physics.Input{Direction: s.inputs[physics.SideLeft]},
		physics.Input{Direction: s.inputs[physics.SideRight]},
		dt)
	clear(s.inputs)

	if physics.Corrupted(next) {
		s.log.Error("simulation state corrupted, tearing down",
			zap.Uint64("tick", s.tick))
		s.finishError()
		return
	}

	s.state = next
	s.tick++
	s.m.SetScore(next.ScoreLeft, next.ScoreRight)
	s.broadcast(s.stateUpdate())

	if next.Winner != "" {
		s.finishScore(next.Winner)
	}
}

func (s *Session) onClockTick() {
	switch s.status {
	case match.StatusCountdown:
		s.countdownLeft--
		if s.countdownLeft <= 0 {
			s.disarmClock()
			s.setStatus(match.StatusRunning)
			s.broadcast(protocol.ServerMessage{Type: protocol.MsgGameStart})
			s.log.Info("match running")
			return
		}
		s.broadcast(s.countdownMsg())

	case match.StatusWalkoverPending:
		s.graceLeft--
		if s.graceLeft <= 0 {
			s.finishWalkover()
			return
		}
		s.broadcast(protocol.ServerMessage{
			Type:  protocol.MsgWoCountdown,
			State: &protocol.StatePayload{Countdown: s.graceLeft},
		})

	default:
		s.disarmClock()
	}
}

func (s *Session) startCountdown() {
	s.setStatus(match.StatusCountdown)
	s.countdownLeft = s.cfg.CountdownSeconds
	s.armClock()
	s.broadcast(s.countdownMsg())
	s.log.Info("countdown started", zap.Int("seconds", s.countdownLeft))
}

func (s *Session) cancelWalkover() {
	s.disarmClock()
	s.graceLeft = 0
	s.droppedFirst = ""
	s.setStatus(s.prevStatus)
	s.log.Info("walkover cancelled, resuming", zap.String("status", string(s.status)))

	switch s.status {
	case match.StatusCountdown:
		s.armClock()
		s.broadcast(s.countdownMsg())
	case match.StatusRunning:
		s.broadcast(protocol.ServerMessage{Type: protocol.MsgResumed})
		s.broadcast(s.stateUpdate())
	case match.StatusPaused:
		s.broadcast(protocol.ServerMessage{Type: protocol.MsgPaused})
	}
}

func (s *Session) finishScore(winner physics.Side) {
	winnerID := s.m.PlayerOn(winner)
	loserID := s.m.PlayerOn(winner.Opponent())
	score := fmt.Sprintf("%d x %d", s.state.ScoreLeft, s.state.ScoreRight)

	s.finish(winnerID, match.OutcomeScore, protocol.ServerMessage{
		Type: protocol.MsgMatchFinished,
		State: &protocol.StatePayload{
			FinalAlert: map[string]string{
				winnerID: "You won! Final score: " + score,
				loserID:  "You lost. Final score: " + score,
			},
			RedirectURL: s.redirectURL(),
		},
	})
}

func (s *Session) finishWalkover() {
	winnerID := ""
	if s.droppedFirst != "" {
		if side, ok := s.m.SideOf(s.droppedFirst); ok {
			winnerID = s.m.PlayerOn(side.Opponent())
		}
	}
	s.finish(winnerID, match.OutcomeWalkover, protocol.ServerMessage{
		Type: protocol.MsgWalkover,
		State: &protocol.StatePayload{
			Message:     "Your opponent did not return. You win by walkover.",
			RedirectURL: s.redirectURL(),
		},
	})
}

func (s *Session) finishError() {
	alert := "The match was aborted due to an internal error."
	s.finish("", match.OutcomeError, protocol.ServerMessage{
		Type: protocol.MsgMatchFinished,
		State: &protocol.StatePayload{
			FinalAlert: map[string]string{
				s.m.LeftPlayer:  alert,
				s.m.RightPlayer: alert,
			},
			RedirectURL: s.redirectURL(),
		},
	})
}

func (s *Session) finish(winnerID string, outcome match.Outcome, terminal protocol.ServerMessage) {
	if s.finished {
		return
	}
	s.finished = true
	s.disarmClock()
	s.setStatus(match.StatusFinished)
	s.m.Finish(winnerID, outcome, s.state.ScoreLeft, s.state.ScoreRight)
	s.broadcast(terminal)
	s.log.Info("match finished",
		zap.String("winner_id", winnerID),
		zap.String("outcome", string(outcome)),
		zap.Int("score_left", s.state.ScoreLeft),
		zap.Int("score_right", s.state.ScoreRight))

	if s.onFinished != nil {
		s.onFinished(Result{
			MatchID:      s.m.ID,
			TournamentID: s.m.TournamentID,
			WinnerID:     winnerID,
			Outcome:      outcome,
			ScoreLeft:    s.state.ScoreLeft,
			ScoreRight:   s.state.ScoreRight,
		})
	}
	s.cancel()
}

func (s *Session) shutdown() {
	s.disarmClock()
	for id, c := range s.players {
		close(c.out)
		delete(s.players, id)
	}
	for id, c := range s.spectators {
		close(c.out)
		delete(s.spectators, id)
	}
	s.cancel()
}

func (s *Session) setStatus(st match.Status) {
	s.status = st
	s.m.SetStatus(st)
}

func (s *Session) armClock() {
	if s.clock != nil {
		s.clock.Stop()
	}
	s.clock = time.NewTicker(s.cfg.ClockInterval)
	s.clockC = s.clock.C
}

func (s *Session) disarmClock() {
	if s.clock != nil {
		s.clock.Stop()
		s.clock = nil
	}
	s.clockC = nil
}

func (s *Session) countdownMsg() protocol.ServerMessage {
	return protocol.ServerMessage{
		Type:  protocol.MsgCountdown,
		State: &protocol.StatePayload{Message: fmt.Sprintf("%d", s.countdownLeft)},
	}
}

func (s *Session) stateUpdate() protocol.ServerMessage {
	return protocol.ServerMessage{
		Type: protocol.MsgStateUpdate,
		State: &protocol.StatePayload{
			Tick:    s.tick,
			Ball:    &protocol.BallPayload{X: s.state.Ball.X, Y: s.state.Ball.Y},
			Paddles: &protocol.PaddlesPayload{Left: s.state.PaddleLeft, Right: s.state.PaddleRight},
			Scores:  &protocol.ScoresPayload{Left: s.state.ScoreLeft, Right: s.state.ScoreRight},
		},
	}
}

func (s *Session) redirectURL() string {
	if s.m.TournamentID != "" {
		return "/tournaments/" + s.m.TournamentID
	}
	return "/dashboard"
}

func (s *Session) broadcast(msg protocol.ServerMessage) {
	for _, c := range s.players {
		c.deliver(msg)
	}
	for _, c := range s.spectators {
		c.deliver(msg)
	}
}
