package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/ft-transcendence/pong-core/internal/auth"
	"github.com/ft-transcendence/pong-core/internal/hub"
	"github.com/ft-transcendence/pong-core/internal/match"
	"github.com/ft-transcendence/pong-core/internal/protocol"
	"github.com/ft-transcendence/pong-core/internal/session"
)

const writeTimeout = 3 * time.Second

type Gateway struct {
	hub             *hub.Hub
	matches         *match.Registry
	verifier        *auth.Verifier
	allowSpectators bool
	log             *zap.Logger
}

func NewGateway(h *hub.Hub, matches *match.Registry, verifier *auth.Verifier, allowSpectators bool, log *zap.Logger) *Gateway {
	return &Gateway{
		hub:             h,
		matches:         matches,
		verifier:        verifier,
		allowSpectators: allowSpectators,
		log:             log.Named("ws"),
	}
}

// Handler upgrades /ws?match_id=...&access_token=... into a session
// attachment. Auth failures are rejected before the upgrade: the client
// never sees a broadcast, just a closed connection.
func (g *Gateway) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID := r.URL.Query().Get("match_id")
		token := r.URL.Query().Get("access_token")
		if matchID == "" {
			http.Error(w, "missing match_id", http.StatusBadRequest)
			return
		}

		claims, err := g.verifier.Verify(token)
		if err != nil {
			g.log.Warn("rejected socket with bad token", zap.String("match_id", matchID))
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		m, ok := g.matches.Get(matchID)
		if !ok {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}
		if m.Status() == match.StatusFinished {
			http.Error(w, "match already finished", http.StatusConflict)
			return
		}

		_, isParticipant := m.SideOf(claims.PlayerID)
		if !isParticipant && !g.allowSpectators {
			g.log.Warn("rejected non-participant",
				zap.String("match_id", matchID),
				zap.String("player_id", claims.PlayerID))
			http.Error(w, "not a participant", http.StatusForbidden)
			return
		}

		// The session is created lazily on the first accepted socket.
		reply := make(chan *session.Session, 1)
		g.hub.Inbox() <- hub.EnsureSession{Match: m, Reply: reply}
		sess := <-reply
		if sess == nil {
			// The match finished between the status check and the hub call.
			http.Error(w, "match already finished", http.StatusConflict)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan protocol.ServerMessage, 32)
		joinReply := make(chan session.JoinResult, 1)
		sess.Inbox() <- session.Join{
			PlayerID:  claims.PlayerID,
			Spectator: !isParticipant,
			Outbox:    out,
			Reply:     joinReply,
		}
		select {
		case res := <-joinReply:
			if res.Err != nil {
				conn.Close(websocket.StatusPolicyViolation, res.Err.Error())
				return
			}
		case <-sess.Done():
			conn.Close(websocket.StatusPolicyViolation, "match is over")
			return
		}
		defer func() {
			select {
			case sess.Inbox() <- session.Leave{PlayerID: claims.PlayerID}:
			case <-sess.Done():
			}
		}()

		// Writer: drains the session's outbox until it closes.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for msg := range out {
				payload, err := protocol.Encode(msg)
				if err != nil {
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Reader: every well-formed frame is forwarded; the session decides
		// whether it means anything. Broken frames are dropped, not fatal.
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
					g.log.Debug("socket closed abnormally",
						zap.String("match_id", matchID),
						zap.String("player_id", claims.PlayerID),
						zap.Error(err))
				}
				return
			}

			msg, err := protocol.DecodeClient(data)
			if err != nil {
				g.log.Warn("malformed frame dropped",
					zap.String("match_id", matchID),
					zap.String("player_id", claims.PlayerID),
					zap.Error(err))
				continue
			}
			// The session stops draining its inbox once it finishes; a
			// lingering client must not park this goroutine on a dead send.
			select {
			case sess.Inbox() <- session.FromClient{PlayerID: claims.PlayerID, Msg: msg}:
			case <-sess.Done():
				return
			}
		}
	}
}
