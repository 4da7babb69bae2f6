// internal/httpserver/server.go
//
// HTTP server wiring for the typing game backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health", "/leaderboard".
//   - Session endpoints (optional auth): mounted under /sessions, incl. the websocket.
//   - Auth + profile/stat endpoints (require auth): /auth/*, /stats/me, /results/mine.
//   - JWT + cookie handling, anonymous session cookie, user CRUD helpers.
//   - Lifecycle: graceful shutdown, idle-session reaper.
//
// Notes:
//   - CORS is origin‑aware and credentials‑enabled (so cookies work).
//   - Optional auth decorates requests with user context when a valid token is present;
//     routes can still run for guests.
//   - Require‑auth middleware enforces presence and validity of a JWT.
//   - The websocket route sits outside the handler timeout.

package httpserver

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/robalobadob/typing-escape/internal/config"
	"github.com/robalobadob/typing-escape/internal/game"
	"github.com/robalobadob/typing-escape/internal/results"
	"github.com/robalobadob/typing-escape/internal/store"
	"github.com/robalobadob/typing-escape/internal/words"
)

// Server bundles router, live session store, results DB and config.
type Server struct {
	r        *chi.Mux
	cfg      config.Config
	store    store.Store
	db       *sql.DB
	results  *results.Store
	words    words.List
	clock    game.Clock
	upgrader websocket.Upgrader
}

// Option customizes a Server.
type Option func(*Server)

// WithClock sets the clock handed to every new session (tests).
func WithClock(c game.Clock) Option { return func(s *Server) { s.clock = c } }

// New constructs a Server, installs middleware, and registers routes.
func New(cfg config.Config, st store.Store, db *sql.DB, list words.List, opts ...Option) *Server {
	s := &Server{
		r:       chi.NewRouter(),
		cfg:     cfg,
		store:   st,
		db:      db,
		results: results.NewStore(db),
		words:   list,
		clock:   game.WallClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)             // add X-Request-ID
	s.r.Use(chimw.RealIP)                // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(hlog.NewHandler(log.Logger)) // request-scoped logger
	s.r.Use(accessLog)                   // one debug line per request
	s.r.Use(chimw.Recoverer)             // recover from panics
	s.r.Use(jsonContentType)             // default JSON responses
	s.r.Use(s.cors)                      // credentials-friendly CORS

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"typing-escape","endpoints":["/health","POST /sessions","/sessions/{id}/ws","/leaderboard","/auth/*"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		})

		// Sessions: OPTIONAL AUTH (guests can play)
		s.mountSessions(r.With(s.withOptionalAuth()))

		// Results
		r.Get("/leaderboard", s.handleLeaderboard)

		// Auth + profile/stats (require auth)
		s.mountAuthRoutes(r)
	})

	// Websocket: OPTIONAL AUTH, no handler timeout
	s.r.With(s.withOptionalAuth()).Get("/sessions/{id}/ws", s.handleSessionWS)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Start serves HTTP on addr until ctx is cancelled, then closes every live
// session and drains in-flight requests.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.r, ReadHeaderTimeout: 5 * time.Second}

	go s.RunReaper(ctx, s.cfg.SessionReapInterval, s.cfg.SessionIdleTTL)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.CloseSessions(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// accessLog writes one debug line per request with status and duration.
var accessLog = hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
	hlog.FromRequest(r).Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("reqId", chimw.GetReqID(r.Context())).
		Int("status", status).
		Int("size", size).
		Dur("dur", d).
		Msg("request")
})

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.ClientOrigin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkOrigin accepts websocket upgrades from the client origin or from
// non-browser clients that send no Origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || origin == s.cfg.ClientOrigin
}

// ------------------------------ RESULTS ------------------------------------

// handleLeaderboard returns the best finished sessions (?limit=, default 20).
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := s.results.Leaderboard(r.Context(), queryInt(r, "limit"))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("leaderboard")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	_ = json.NewEncoder(w).Encode(rows)
}

// ------------------------------- AUTH --------------------------------------

// Request payloads for signup/login.
type signupReq struct{ Username, Password string }
type loginReq struct{ Username, Password string }

// authUser is placed into request context by auth middleware.
type authUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// mountAuthRoutes registers authentication + gated routes (/auth/*, /stats/me, /results/mine).
func (s *Server) mountAuthRoutes(r chi.Router) {
	r.Post("/auth/signup", s.handleSignup)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", s.handleLogout)

	// Current user (gated)
	r.With(s.requireAuth()).Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		me := currentUser(r)
		if me == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		_ = json.NewEncoder(w).Encode(me)
	})

	// Stats (gated)
	r.With(s.requireAuth()).Get("/stats/me", func(w http.ResponseWriter, r *http.Request) {
		me := currentUser(r)
		if me == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		u, err := s.findUserByID(me.ID)
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":              u.ID,
			"sessionsPlayed":  u.SessionsPlayed,
			"totalWordsTyped": u.TotalWordsTyped,
			"bestWordsTyped":  u.BestWordsTyped,
		})
	})

	// Recent results (gated)
	r.With(s.requireAuth()).Get("/results/mine", func(w http.ResponseWriter, r *http.Request) {
		me := currentUser(r)
		if me == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		out, err := s.results.ForUser(r.Context(), me.ID, 50)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		_ = json.NewEncoder(w).Encode(out)
	})
}

// handleSignup creates a new user, signs a JWT, sets auth cookie, and claims anon history.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body signupReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	u, err := s.createUser(body.Username, body.Password)
	switch {
	case errors.Is(err, errUsernameTaken):
		writeError(w, http.StatusConflict, "username_taken")
		return
	case errors.Is(err, errInvalidSignup):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_signup", "message": err.Error()})
		return
	case err != nil:
		hlog.FromRequest(r).Error().Err(err).Msg("create user")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	tok, exp, err := s.signJWT(u.ID, u.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return
	}
	s.setAuthCookie(w, tok, exp)
	// Attach any anonymous results to the new account
	s.claimAnonResults(r.Context(), s.ensureAnonID(w, r), u.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"id": u.ID, "username": u.Username, "createdAt": u.CreatedAt})
}

// handleLogin authenticates user, sets cookie, and claims anon history.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	u, err := s.findUserByUsername(strings.TrimSpace(body.Username))
	if err != nil || !checkPassword(u.PasswordHash, body.Password) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	tok, exp, err := s.signJWT(u.ID, u.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return
	}
	s.setAuthCookie(w, tok, exp)
	s.claimAnonResults(r.Context(), s.ensureAnonID(w, r), u.ID)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": u.ID, "username": u.Username})
}

// handleLogout clears the auth cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearAuthCookie(w)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// --------------------------- optional auth ---------------------------------

// withOptionalAuth decorates requests with user context if a valid JWT is present.
// It never 401s; used for routes where guests are allowed.
func (s *Server) withOptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := s.bearerOrCookie(r); tok != "" {
				if id, _, ok := s.parseJWT(tok); ok {
					if u, err := s.findUserByID(id); err == nil {
						ctx := context.WithValue(r.Context(), ctxUserKey{}, &authUser{ID: u.ID, Username: u.Username})
						r = r.WithContext(ctx)
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

const anonCookieName = "escape_anon"

// anonID returns the anonymous cookie value, or "" if the request has none.
func anonID(r *http.Request) string {
	if c, err := r.Cookie(anonCookieName); err == nil {
		return c.Value
	}
	return ""
}

// ensureAnonID returns an existing anon cookie or sets a new one.
// Used to associate guest sessions and results with a stable identifier.
func (s *Server) ensureAnonID(w http.ResponseWriter, r *http.Request) string {
	if id := anonID(r); id != "" {
		return id
	}
	id := genID()
	http.SetCookie(w, &http.Cookie{
		Name:     anonCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: s.sameSite(),
		Expires:  time.Now().Add(180 * 24 * time.Hour),
	})
	return id
}

// claimAnonResults transfers any anonymous results to a user account after auth.
func (s *Server) claimAnonResults(ctx context.Context, anonID, userID string) {
	n, err := s.results.ClaimAnonymous(ctx, anonID, userID)
	if err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("claim anon results")
		return
	}
	if n > 0 {
		log.Info().Int("results", n).Str("user", userID).Msg("claimed anon results")
	}
}

// ------------------------ auth helpers & users -----------------------------

var (
	errUsernameTaken = errors.New("username taken")
	errInvalidSignup = errors.New("invalid signup")
)

// userRow matches the users table shape.
type userRow struct {
	ID              string
	Username        string
	PasswordHash    string
	CreatedAt       time.Time
	SessionsPlayed  int
	TotalWordsTyped int
	BestWordsTyped  int
}

// createUser validates input, hashes the password, and inserts a new user.
// Duplicate names (case-insensitive) are caught by the UNIQUE constraint.
func (s *Server) createUser(username, pw string) (*userRow, error) {
	username = normalizeUsername(username)
	if err := validateSignup(username, pw); err != nil {
		return nil, err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	id := genID()
	if _, err := s.db.Exec(`INSERT INTO users (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		id, username, string(h), now); err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, errUsernameTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &userRow{ID: id, Username: username, PasswordHash: string(h), CreatedAt: mustParse(now)}, nil
}

// findUserByUsername/ID load a user row or return an error if missing.
func (s *Server) findUserByUsername(username string) (*userRow, error) {
	row := s.db.QueryRow(`SELECT id, username, password_hash, created_at, sessions_played, total_words_typed, best_words_typed
	                      FROM users WHERE lower(username)=lower(?)`, username)
	return scanUser(row)
}
func (s *Server) findUserByID(id string) (*userRow, error) {
	row := s.db.QueryRow(`SELECT id, username, password_hash, created_at, sessions_played, total_words_typed, best_words_typed
	                      FROM users WHERE id=?`, id)
	return scanUser(row)
}

// scanUser converts a *sql.Row into a userRow.
func scanUser(row *sql.Row) (*userRow, error) {
	var u userRow
	var created string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created, &u.SessionsPlayed, &u.TotalWordsTyped, &u.BestWordsTyped); err != nil {
		return nil, err
	}
	u.CreatedAt = mustParse(created)
	return &u, nil
}

// mustParse parses RFC3339 timestamps; on error returns zero time.
func mustParse(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// checkPassword is a bcrypt verifier.
func checkPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// normalizeUsername trims whitespace; adjust here if you want stricter rules.
func normalizeUsername(u string) string {
	return strings.TrimSpace(u)
}

// validateSignup enforces basic username/password rules.
func validateSignup(u, p string) error {
	if len(u) < 3 || len(u) > 24 {
		return fmt.Errorf("%w: username must be 3-24 chars", errInvalidSignup)
	}
	for _, r := range u {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return fmt.Errorf("%w: username may only contain letters, numbers and underscore", errInvalidSignup)
		}
	}
	if len(p) < 8 || len(p) > 100 {
		return fmt.Errorf("%w: password must be 8-100 chars", errInvalidSignup)
	}
	return nil
}

// genID creates a 22‑char URL‑safe, crypto‑random identifier (no padding).
func genID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	s := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(b[:])
	if len(s) > 22 {
		return s[:22]
	}
	return s
}

// ------------------------------ JWT & cookies ------------------------------

// signJWT creates an HS256 JWT with id/username and the configured expiry.
func (s *Server) signJWT(id, username string) (string, time.Time, error) {
	exp := time.Now().Add(time.Duration(s.cfg.JWTExpiresDays) * 24 * time.Hour)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       id,
		"username": username,
		"exp":      exp.Unix(),
		"iat":      time.Now().Unix(),
	})
	ss, err := t.SignedString([]byte(s.cfg.JWTSecret))
	return ss, exp, err
}

// parseJWT verifies an HS256 token and returns its id/username claims.
func (s *Server) parseJWT(tok string) (id, username string, ok bool) {
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !t.Valid {
		return "", "", false
	}
	id, _ = claims["id"].(string)
	username, _ = claims["username"].(string)
	return id, username, id != "" && username != ""
}

func (s *Server) sameSite() http.SameSite {
	if s.cfg.Production {
		return http.SameSiteNoneMode // required for third‑party contexts when Secure
	}
	return http.SameSiteLaxMode
}

// setAuthCookie writes the auth token cookie with appropriate security attributes.
func (s *Server) setAuthCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: s.sameSite(),
		Expires:  exp,
	})
}

// clearAuthCookie deletes the auth token cookie.
func (s *Server) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: s.sameSite(),
		MaxAge:   -1,
	})
}

// bearerOrCookie extracts a bearer token from Authorization header or auth cookie.
func (s *Server) bearerOrCookie(r *http.Request) string {
	// Authorization: Bearer <token>
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(s.cfg.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// ---------------------------- auth middleware ------------------------------

// ctxUserKey is the context key type for storing authUser.
type ctxUserKey struct{}

// currentUser returns the authenticated user, or nil for guests.
func currentUser(r *http.Request) *authUser {
	me, _ := r.Context().Value(ctxUserKey{}).(*authUser)
	return me
}

// requireAuth enforces a valid JWT and injects authUser into request context.
func (s *Server) requireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := s.bearerOrCookie(r)
			if tokenStr == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			id, username, ok := s.parseJWT(tokenStr)
			if !ok {
				writeError(w, http.StatusUnauthorized, "invalid_token")
				return
			}
			// Ensure user still exists
			if _, err := s.findUserByID(id); err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_token")
				return
			}
			ctx := context.WithValue(r.Context(), ctxUserKey{}, &authUser{ID: id, Username: username})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ------------------------------- small util --------------------------------

// queryInt parses an integer query parameter; missing or invalid yields 0.
func queryInt(r *http.Request, k string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(k))
	return n
}

// requestLogger returns the request-scoped logger with the session field set.
func requestLogger(r *http.Request, sessionID string) *zerolog.Logger {
	l := hlog.FromRequest(r).With().Str("session", sessionID).Logger()
	return &l
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError replies with {"error": code}.
func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
