package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ft-transcendence/pong-core/internal/auth"
	"github.com/ft-transcendence/pong-core/internal/match"
	"github.com/ft-transcendence/pong-core/internal/tournament"
)

// ResultStore is the optional history lookup behind GET /matches/{id}; nil
// when the server runs without a database.
type ResultStore interface {
	GetMatch(id string) (match.View, error)
}

type API struct {
	matches  *match.Registry
	engine   *tournament.Engine
	verifier *auth.Verifier
	store    ResultStore
	log      *zap.Logger
}

func NewAPI(matches *match.Registry, engine *tournament.Engine, verifier *auth.Verifier, store ResultStore, log *zap.Logger) *API {
	return &API{
		matches:  matches,
		engine:   engine,
		verifier: verifier,
		store:    store,
		log:      log.Named("http"),
	}
}

type ctxKey int

const playerIDKey ctxKey = 0

func contextWithPlayer(ctx context.Context, playerID string) context.Context {
	return context.WithValue(ctx, playerIDKey, playerID)
}

func playerFromContext(ctx context.Context) string {
	id, _ := ctx.Value(playerIDKey).(string)
	return id
}

// requireAuth resolves the Bearer token to a player id. Token issuance lives
// in the user-management service; here we only verify.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := a.verifier.Verify(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := contextWithPlayer(r.Context(), claims.PlayerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CreateMatch issues a challenge: the authenticated caller takes the left
// paddle, the named opponent the right.
func (a *API) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OpponentID string `json:"opponent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.OpponentID == "" {
		respondError(w, http.StatusBadRequest, "opponent_id is required")
		return
	}
	challenger := playerFromContext(r.Context())
	if body.OpponentID == challenger {
		respondError(w, http.StatusBadRequest, "cannot challenge yourself")
		return
	}

	m := a.matches.Create(challenger, body.OpponentID, "")
	a.log.Info("match created",
		zap.String("match_id", m.ID),
		zap.String("challenger", challenger),
		zap.String("opponent", body.OpponentID))
	respondJSON(w, http.StatusCreated, m.Snapshot())
}

func (a *API) GetMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if m, ok := a.matches.Get(id); ok {
		respondJSON(w, http.StatusOK, m.Snapshot())
		return
	}
	if a.store != nil {
		if v, err := a.store.GetMatch(id); err == nil {
			respondJSON(w, http.StatusOK, v)
			return
		}
	}
	respondError(w, http.StatusNotFound, "match not found")
}

func (a *API) CreateTournament(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	v := a.engine.Create(body.Name)
	respondJSON(w, http.StatusCreated, v)
}

func (a *API) RegisterParticipant(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Alias string `json:"alias"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Alias == "" {
		respondError(w, http.StatusBadRequest, "alias is required")
		return
	}

	id := chi.URLParam(r, "id")
	player := playerFromContext(r.Context())
	if err := a.engine.Register(id, player, body.Alias); err != nil {
		respondTournamentError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) StartTournament(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.engine.Start(id); err != nil {
		respondTournamentError(w, err)
		return
	}
	v, err := a.engine.Snapshot(id)
	if err != nil {
		respondTournamentError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (a *API) GetTournament(w http.ResponseWriter, r *http.Request) {
	v, err := a.engine.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		respondTournamentError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (a *API) ListTournaments(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.engine.List())
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func respondTournamentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tournament.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tournament.ErrAliasTaken),
		errors.Is(err, tournament.ErrAlreadyRegistered),
		errors.Is(err, tournament.ErrNotPlanned),
		errors.Is(err, tournament.ErrAlreadyStarted):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, tournament.ErrNotEnoughParticipants):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
