// Package ws is the standalone transport: a small JSON HTTP API plus one WebSocket per
// connected player, both driving rooms from app.Registry.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"durak/internal/app"
	"durak/internal/auth"
	"durak/internal/domain"
	"durak/internal/ports"
	"durak/internal/ports/wire"
)

// RoomConfigs resolves a stake tier to the settings of a new room.
type RoomConfigs interface {
	HasTier(tierID string) bool
	RoomConfig(tierID string) app.RoomConfig
}

// Options configures a Server.
type Options struct {
	Registry *app.Registry
	Issuer   *auth.Issuer
	Rooms    RoomConfigs
	Results  ports.ResultsPort
	Logger   runtime.Logger
	// AllowOrigins lists browser origins allowed to call the API and open sockets.
	// Requests without an Origin header are always allowed.
	AllowOrigins []string
	// WriteTimeout bounds a single socket write.
	WriteTimeout time.Duration
}

// Server serves the HTTP API and WebSocket endpoint.
type Server struct {
	reg     *app.Registry
	issuer  *auth.Issuer
	rooms   RoomConfigs
	results ports.ResultsPort
	log     runtime.Logger
	origins map[string]bool
	writeTO time.Duration
}

func NewServer(opts Options) *Server {
	origins := make(map[string]bool, len(opts.AllowOrigins))
	for _, o := range opts.AllowOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = true
		}
	}
	writeTO := opts.WriteTimeout
	if writeTO <= 0 {
		writeTO = 5 * time.Second
	}
	return &Server{
		reg:     opts.Registry,
		issuer:  opts.Issuer,
		rooms:   opts.Rooms,
		results: opts.Results,
		log:     opts.Logger,
		origins: origins,
		writeTO: writeTO,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/session", s.handleSession)
	mux.HandleFunc("GET /api/rooms", s.authed(s.handleListRooms))
	mux.HandleFunc("POST /api/rooms", s.authed(s.handleCreateRoom))
	mux.HandleFunc("POST /api/rooms/quick", s.authed(s.handleQuickMatch))
	mux.HandleFunc("GET /api/rooms/{id}", s.authed(s.handleGetRoom))
	mux.HandleFunc("POST /api/rooms/{id}/actions", s.authed(s.handleAction))
	mux.HandleFunc("GET /api/players/{id}/stats", s.authed(s.handleStats))
	mux.HandleFunc("GET /ws", s.handleSocket)
	return s.cors(mux)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.origins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type sessionKey struct{}

func sessionFrom(ctx context.Context) auth.Session {
	sess, _ := ctx.Value(sessionKey{}).(auth.Session)
	return sess
}

// authed requires a bearer token and stores its session in the request context.
func (s *Server) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		sess, err := s.issuer.Parse(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	}
}

type sessionRequest struct {
	Username string `json:"username"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid session request")
			return
		}
	}
	username := strings.TrimSpace(req.Username)
	if len(username) > 32 {
		writeError(w, http.StatusBadRequest, "username longer than 32 characters")
		return
	}
	token, sess, err := s.issuer.NewSession(username)
	if err != nil {
		s.log.Error("handleSession: failed to issue token: %v", err)
		writeError(w, http.StatusInternalServerError, "could not issue session")
		return
	}
	s.log.Info("handleSession: new session %s (%s)", sess.UserID, sess.Username)
	writeJSON(w, http.StatusCreated, sessionResponse{Token: token, UserID: sess.UserID, Username: sess.Username, ExpiresAt: sess.ExpiresAt})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.List())
}

type createRoomRequest struct {
	Tier string `json:"tier"`
}

func (s *Server) tierConfig(r *http.Request) (app.RoomConfig, error) {
	var req createRoomRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return app.RoomConfig{}, errBadRequest
		}
	}
	if req.Tier != "" && !s.rooms.HasTier(req.Tier) {
		return app.RoomConfig{}, errUnknownTier
	}
	return s.rooms.RoomConfig(req.Tier), nil
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.tierConfig(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	room, err := s.reg.Create(cfg)
	if err != nil {
		s.log.Error("handleCreateRoom: %v", err)
		writeErr(w, err)
		return
	}
	s.log.Info("handleCreateRoom: %s created room %s (stake %d)", sessionFrom(r.Context()).UserID, room.ID(), cfg.Stake)
	writeJSON(w, http.StatusCreated, room.Info())
}

// handleQuickMatch seats the caller in an open room of the requested tier, creating one when none is open.
func (s *Server) handleQuickMatch(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.tierConfig(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	sess := sessionFrom(r.Context())
	room, ok := s.reg.FindOpen(func(info app.RoomInfo) bool {
		return info.Stake == cfg.Stake && info.DeckSize == cfg.DeckSize
	})
	if !ok {
		if room, err = s.reg.Create(cfg); err != nil {
			writeErr(w, err)
			return
		}
	}
	res, err := room.Submit(r.Context(), app.Join{PlayerID: sess.UserID, Username: sess.Username})
	if err != nil && !errors.Is(err, app.ErrAlreadySeated) {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{RoomID: room.ID(), Seq: res.Seq, State: res.State})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.reg.Get(r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	snap, err := room.Snapshot(r.Context(), sessionFrom(r.Context()).UserID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type actionResponse struct {
	RoomID string            `json:"room_id"`
	Seq    uint64            `json:"seq"`
	State  *domain.StateView `json:"state,omitempty"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	room, err := s.reg.Get(r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	var env wire.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeErr(w, wire.ErrMalformed)
		return
	}
	sess := sessionFrom(r.Context())
	action, err := s.decode(sess, env)
	if err != nil {
		writeErr(w, err)
		return
	}
	res, err := room.Submit(r.Context(), action)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{RoomID: room.ID(), Seq: res.Seq, State: res.State})
}

// decode turns an envelope into an action for the session's user. Joins are built here
// because only the transport knows the player's identity.
func (s *Server) decode(sess auth.Session, env wire.Envelope) (app.Action, error) {
	if app.ActionKind(env.Type) == app.ActionJoin {
		return app.Join{PlayerID: sess.UserID, Username: sess.Username}, nil
	}
	return wire.DecodeAction(sess.UserID, app.ActionKind(env.Type), env.Payload)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		writeError(w, http.StatusNotFound, "results are not recorded")
		return
	}
	stats, err := s.results.PlayerStats(r.Context(), r.PathValue("id"))
	if err != nil {
		s.log.Error("handleStats: %v", err)
		writeError(w, http.StatusInternalServerError, "could not load stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": stats.UserID,
		"wins":    stats.Wins,
		"losses":  stats.Losses,
		"draws":   stats.Draws,
	})
}

var (
	errBadRequest  = errors.New("invalid request body")
	errUnknownTier = errors.New("unknown stake tier")
)

// statusFor maps room and rule errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, wire.ErrMalformed), errors.Is(err, errBadRequest), errors.Is(err, errUnknownTier):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrRoomClosed), errors.Is(err, app.ErrMatchFinished):
		return http.StatusGone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	if r, ok := domain.AsRejection(err); ok {
		if r.Kind == domain.KindNotFound {
			return http.StatusNotFound
		}
		return http.StatusConflict
	}
	switch {
	case errors.Is(err, app.ErrNotSeated), errors.Is(err, app.ErrAlreadySeated), errors.Is(err, app.ErrMatchStarted),
		errors.Is(err, app.ErrRoomFull), errors.Is(err, app.ErrInsufficientCoins):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	rej := wire.ToRejected(err)
	if status == http.StatusInternalServerError {
		rej.Message = "internal error"
	}
	writeJSON(w, status, rej)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, wire.Rejected{Kind: "error", Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
