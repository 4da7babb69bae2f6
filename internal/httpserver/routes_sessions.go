// internal/httpserver/routes_sessions.go
//
// HTTP routes for live game sessions.
//   - POST   /sessions            → create and start a session (201 + snapshot)
//   - GET    /sessions/{id}       → current snapshot
//   - POST   /sessions/{id}/input → forward the input field value
//   - POST   /sessions/{id}/round → start a round now (no-op if one is active)
//   - POST   /sessions/{id}/miss  → give up on the current word
//   - POST   /sessions/{id}/reset → restart after game over (or any time)
//   - DELETE /sessions/{id}       → tear the session down
//
// A session belongs to whoever created it (user account, else anonymous
// cookie); other callers get 404. When a session reaches game over its
// summary is persisted as a result for that owner.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/typing-escape/internal/game"
	"github.com/robalobadob/typing-escape/internal/results"
	"github.com/robalobadob/typing-escape/internal/store"
)

// mountSessions registers the REST session routes. The websocket route is
// registered separately in New.
func (s *Server) mountSessions(r chi.Router) {
	r.Post("/sessions", s.handleCreateSession)
	r.Get("/sessions/{id}", s.withSession(s.handleGetSession))
	r.Post("/sessions/{id}/input", s.withSession(s.handleInput))
	r.Post("/sessions/{id}/round", s.withSession(s.handleStartRound))
	r.Post("/sessions/{id}/miss", s.withSession(s.handleMiss))
	r.Post("/sessions/{id}/reset", s.withSession(s.handleReset))
	r.Delete("/sessions/{id}", s.withSession(s.handleDeleteSession))
}

// sessionHandler is a handler that received an owned, live session.
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *store.Session)

// withSession resolves {id} to a session owned by the caller, or answers 404.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.lookupSession(r)
		if !ok {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		h(w, r, sess)
	}
}

// lookupSession returns the session named by {id} if the caller owns it.
func (s *Server) lookupSession(r *http.Request) (*store.Session, bool) {
	sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil || sess.Game.Closed() {
		return nil, false
	}
	if me := currentUser(r); me != nil && sess.Owner == userOwner(me.ID) {
		return sess, true
	}
	if anon := anonID(r); anon != "" && sess.Owner == anonOwner(anon) {
		return sess, true
	}
	return nil, false
}

func userOwner(id string) string { return "user:" + id }
func anonOwner(id string) string { return "anon:" + id }

// handleCreateSession builds a controller for the caller and starts its
// round scheduler.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var userID, anon, owner string
	if me := currentUser(r); me != nil {
		userID, owner = me.ID, userOwner(me.ID)
	} else {
		anon = s.ensureAnonID(w, r)
		owner = anonOwner(anon)
	}

	g, err := game.New(s.words,
		game.WithRules(s.cfg.Rules),
		game.WithClock(s.clock),
		game.WithLogger(log.Logger),
		game.WithGameOver(s.persistResult(userID, anon)),
	)
	if err != nil {
		log.Error().Err(err).Msg("create session")
		writeError(w, http.StatusInternalServerError, "create_failed")
		return
	}
	if err := s.store.Save(r.Context(), g, owner); err != nil {
		g.Close()
		log.Error().Err(err).Msg("save session")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	g.Start()

	requestLogger(r, g.ID()).Info().Str("owner", owner).Msg("session created")
	writeJSON(w, http.StatusCreated, g.Snapshot())
}

// persistResult returns the game-over hook that stores the session result.
// Failures are logged; they never affect the game.
func (s *Server) persistResult(userID, anon string) func(game.Summary) {
	return func(sum game.Summary) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		res, err := s.results.Insert(ctx, results.Result{
			UserID:      userID,
			AnonymousID: anon,
			StartedAt:   sum.StartedAt,
			EndedAt:     sum.EndedAt,
			Rounds:      sum.Rounds,
			WordsTyped:  sum.WordsTyped,
			Bites:       sum.Bites,
		})
		if err != nil {
			log.Warn().Err(err).Str("session", sum.SessionID).Msg("persist result")
			return
		}
		log.Info().Str("session", sum.SessionID).Str("result", res.ID).Int("typed", res.WordsTyped).Msg("result saved")
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	_ = json.NewEncoder(w).Encode(sess.Game.Snapshot())
}

// inputReq is the payload for POST /sessions/{id}/input.
type inputReq struct {
	Text string `json:"text"`
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	var req inputReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sess.Game.Input(req.Text)
	_ = json.NewEncoder(w).Encode(sess.Game.Snapshot())
}

func (s *Server) handleStartRound(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	sess.Game.StartRound()
	_ = json.NewEncoder(w).Encode(sess.Game.Snapshot())
}

func (s *Server) handleMiss(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	sess.Game.Miss()
	_ = json.NewEncoder(w).Encode(sess.Game.Snapshot())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	sess.Game.Reset()
	_ = json.NewEncoder(w).Encode(sess.Game.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	sess.Game.Close()
	if err := s.store.Delete(r.Context(), sess.Game.ID()); err != nil {
		requestLogger(r, sess.Game.ID()).Warn().Err(err).Msg("delete session")
	}
	w.WriteHeader(http.StatusNoContent)
}
