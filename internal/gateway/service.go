package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/wordparty/catchphrase/internal/game"
	"github.com/wordparty/catchphrase/internal/identity"
	"github.com/wordparty/catchphrase/internal/models"
	"github.com/wordparty/catchphrase/internal/orchestrator"
	"github.com/wordparty/catchphrase/internal/store"
)

// opTimeout bounds one client-triggered transition, store round-trips
// included.
const opTimeout = 5 * time.Second

// GuestIssuer mints tokens for new guests.
type GuestIssuer interface {
	IssueGuest(displayName string) (identity.User, string, error)
}

// Service is the HTTP and WebSocket surface of the game.
type Service struct {
	games    *orchestrator.Manager
	conns    *ConnectionManager
	identity identity.Provider
	guests   GuestIssuer
}

// NewService wires the surface together and installs itself as the
// connection manager's frame handler.
func NewService(games *orchestrator.Manager, conns *ConnectionManager, provider identity.Provider, issuer GuestIssuer) *Service {
	s := &Service{
		games:    games,
		conns:    conns,
		identity: provider,
		guests:   issuer,
	}
	conns.onMessage = s.handleClientMessage
	return s
}

// Routes returns the service's router.
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/auth/guest", s.handleGuest)
	r.Post("/games", s.handleCreateGame)
	r.Post("/games/{gameID}/join", s.handleJoin)
	r.Get("/games/{gameID}", s.handleGetGame)
	r.Get("/games/{gameID}/ws", s.handleWebSocket)
	return r
}

// GuestRequest is the body of POST /auth/guest.
type GuestRequest struct {
	DisplayName string `json:"display_name"`
}

// GuestResponse returns the minted guest credentials.
type GuestResponse struct {
	Token       string `json:"token"`
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
}

func (s *Service) handleGuest(w http.ResponseWriter, r *http.Request) {
	var req GuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "display_name is required")
		return
	}

	user, token, err := s.guests.IssueGuest(name)
	if err != nil {
		log.Error().Err(err).Msg("failed to issue guest token")
		writeError(w, http.StatusInternalServerError, "internal", "failed to issue token")
		return
	}
	writeJSON(w, http.StatusCreated, GuestResponse{
		Token:       token,
		UID:         user.UID,
		DisplayName: user.DisplayName,
	})
}

func (s *Service) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	user, err := s.identity.CurrentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	}

	state, _, err := s.games.CreateGame(r.Context(), playerFor(user))
	if err != nil {
		writeGameError(w, err)
		return
	}
	snap := SnapshotFor(state, user.UID)
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Service) handleJoin(w http.ResponseWriter, r *http.Request) {
	user, err := s.identity.CurrentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	}

	orch, err := s.games.Get(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		writeGameError(w, err)
		return
	}
	state, err := orch.Join(r.Context(), playerFor(user))
	if err != nil {
		writeGameError(w, err)
		return
	}
	snap := SnapshotFor(state, user.UID)
	writeJSON(w, http.StatusOK, snap)
}

// GameResponse is the body of GET /games/{gameID}: the viewer's snapshot
// plus how many clients are attached to the game over WebSocket.
type GameResponse struct {
	Snapshot
	Connections int `json:"connections"`
}

// handleGetGame returns the viewer's snapshot. Watchers without credentials
// are allowed; they get the defending team's view.
func (s *Service) handleGetGame(w http.ResponseWriter, r *http.Request) {
	viewerUID := ""
	if user, err := s.identity.CurrentUser(r); err == nil {
		viewerUID = user.UID
	}

	gameID := chi.URLParam(r, "gameID")
	orch, err := s.games.Get(r.Context(), gameID)
	if err != nil {
		writeGameError(w, err)
		return
	}
	state, err := orch.State(r.Context())
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, GameResponse{
		Snapshot:    SnapshotFor(state, viewerUID),
		Connections: s.conns.ConnectionCount(gameID),
	})
}

func (s *Service) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, err := s.identity.CurrentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	}

	gameID := chi.URLParam(r, "gameID")
	orch, err := s.games.Get(r.Context(), gameID)
	if err != nil {
		writeGameError(w, err)
		return
	}

	conn, err := s.conns.Upgrade(w, r, playerFor(user), gameID)
	if err != nil {
		// Upgrade already wrote the HTTP response.
		log.Error().Err(err).Str("game_id", gameID).Msg("websocket upgrade failed")
		return
	}

	// Seed the new client with its view of the record.
	state, err := orch.State(r.Context())
	if err != nil {
		log.Error().Err(err).Str("game_id", gameID).Msg("failed to read state for initial snapshot")
		return
	}
	snap := SnapshotFor(state, user.UID)
	if frame, err := json.Marshal(ServerMessage{Type: FrameSnapshot, Snapshot: &snap}); err == nil {
		s.conns.Send(conn, frame)
	}
}

// handleClientMessage routes one inbound WebSocket frame to its transition.
// Refused actions go back to the acting client only; accepted ones surface
// to everyone through the event broadcast.
func (s *Service) handleClientMessage(conn *Connection, data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "bad_frame", "invalid JSON frame")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	orch, err := s.games.Get(ctx, conn.GameID)
	if err != nil {
		s.sendError(conn, errorCode(err), err.Error())
		return
	}

	player := conn.Player
	switch msg.Type {
	case MessageKeyPress:
		_, err = orch.KeyPress(ctx, player)
	case MessageStartGame:
		_, err = orch.StartGame(ctx, player)
	case MessageStartRound:
		_, err = orch.StartRound(ctx, player)
	case MessageNextTurn:
		_, err = orch.NextTurn(ctx, player)
	case MessageChallenge:
		_, err = orch.Challenge(ctx, player)
	case MessageChallengeResponse:
		_, err = orch.RespondToChallenge(ctx, player, msg.Accept)
	default:
		s.sendError(conn, "unknown_type", "unknown message type: "+msg.Type)
		return
	}
	if err != nil {
		s.sendError(conn, errorCode(err), err.Error())
	}
}

func (s *Service) sendError(conn *Connection, code, message string) {
	frame, err := json.Marshal(ServerMessage{
		Type:  FrameError,
		Error: &ErrorBody{Code: code, Message: message},
	})
	if err != nil {
		return
	}
	s.conns.Send(conn, frame)
}

func playerFor(user identity.User) models.Player {
	return models.Player{UID: user.UID, DisplayName: user.DisplayName}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ServerMessage{
		Type:  FrameError,
		Error: &ErrorBody{Code: code, Message: message},
	})
}

// writeGameError maps a refused transition onto an HTTP status.
func writeGameError(w http.ResponseWriter, err error) {
	status := http.StatusUnprocessableEntity
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrAlreadyJoined),
		errors.Is(err, game.ErrGameAlreadyStarted),
		errors.Is(err, game.ErrChallengeActive),
		errors.Is(err, store.ErrVersionConflict):
		status = http.StatusConflict
	case errors.Is(err, game.ErrIntegrityViolation):
		status = http.StatusInternalServerError
	}
	writeError(w, status, errorCode(err), err.Error())
}
