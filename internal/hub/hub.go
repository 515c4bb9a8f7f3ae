package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/ft-transcendence/pong-core/internal/match"
	"github.com/ft-transcendence/pong-core/internal/session"
)

type HubMsg interface{ isHubMsg() }

type CreateSession struct {
	Match *match.Match
	Reply chan *session.Session
}

type GetSession struct {
	MatchID string
	Reply   chan *session.Session
}

// EnsureSession creates the session lazily if none exists yet; used when the
// first player of a scheduled match connects. Reply carries nil when the
// match is already finished.
type EnsureSession struct {
	Match *match.Match
	Reply chan *session.Session
}

type RemoveSession struct {
	MatchID string
}

type ShutdownHub struct{}

func (CreateSession) isHubMsg() {}
func (GetSession) isHubMsg()    {}
func (EnsureSession) isHubMsg() {}
func (RemoveSession) isHubMsg() {}
func (ShutdownHub) isHubMsg()   {}

// Hub owns the live sessions, one per active match. Like the sessions it
// manages, it is a single goroutine with a typed inbox, so the session map
// needs no lock.
type Hub struct {
	inbox      chan HubMsg
	sessions   map[string]*session.Session
	cfg        session.Config
	log        *zap.Logger
	onFinished func(session.Result)
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewHub starts the hub loop. onFinished is invoked after a session reaches
// its terminal state and has been deregistered; nil is allowed.
func NewHub(parent context.Context, cfg session.Config, log *zap.Logger, onFinished func(session.Result)) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:      make(chan HubMsg, 64),
		sessions:   make(map[string]*session.Session),
		cfg:        cfg,
		log:        log.Named("hub"),
		onFinished: onFinished,
		ctx:        ctx,
		cancel:     cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				msg.Reply <- h.ensure(msg.Match)

			case GetSession:
				msg.Reply <- h.sessions[msg.MatchID] // may be nil

			case EnsureSession:
				msg.Reply <- h.ensure(msg.Match)

			case RemoveSession:
				delete(h.sessions, msg.MatchID)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) ensure(m *match.Match) *session.Session {
	if s := h.sessions[m.ID]; s != nil {
		return s
	}
	// Decided matches never get a fresh session; the result is final.
	if m.Status() == match.StatusFinished {
		return nil
	}
	s := session.New(h.ctx, m, h.cfg, h.log, h.finished)
	h.sessions[m.ID] = s
	h.log.Info("session created", zap.String("match_id", m.ID))
	return s
}

// finished runs on the session goroutine: deregister through the inbox and
// hand the result to the owner.
func (h *Hub) finished(res session.Result) {
	h.inbox <- RemoveSession{MatchID: res.MatchID}
	if h.onFinished != nil {
		h.onFinished(res)
	}
}

func (h *Hub) shutdown() {
	for id, s := range h.sessions {
		s.Inbox() <- session.Shutdown{}
		delete(h.sessions, id)
	}
	h.cancel()
}
