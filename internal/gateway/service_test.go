package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordparty/catchphrase/internal/events"
	"github.com/wordparty/catchphrase/internal/identity"
	"github.com/wordparty/catchphrase/internal/orchestrator"
	"github.com/wordparty/catchphrase/internal/store"
)

type stubVocab struct{}

func (stubVocab) Shuffle(*rand.Rand) []string {
	return []string{"zero", "one", "two", "three", "four", "five", "six", "seven"}
}

type serviceEnv struct {
	router chi.Router
	server *httptest.Server
	tokens map[string]string // uid -> token
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()

	mem := store.NewMemory()
	provider := identity.Static{
		"tok-alice": {UID: "alice", DisplayName: "Alice"},
		"tok-bob":   {UID: "bob", DisplayName: "Bob"},
		"tok-carol": {UID: "carol", DisplayName: "Carol"},
		"tok-dave":  {UID: "dave", DisplayName: "Dave"},
	}

	conns := NewConnectionManager(DefaultConnectionConfig(), nil)
	bc := NewBroadcaster(conns, mem)
	games := orchestrator.NewManager(mem, stubVocab{}, bc, 60,
		orchestrator.WithClock(clockwork.NewFakeClock()),
		orchestrator.WithRand(rand.New(rand.NewSource(7))),
	)
	t.Cleanup(games.Close)

	issuer := identity.NewJWT("test-secret", time.Hour)
	svc := NewService(games, conns, provider, issuer)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go conns.Start(ctx)

	router := svc.Routes()
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &serviceEnv{
		router: router,
		server: server,
		tokens: map[string]string{
			"alice": "tok-alice",
			"bob":   "tok-bob",
			"carol": "tok-carol",
			"dave":  "tok-dave",
		},
	}
}

func (e *serviceEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *serviceEnv) createGame(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/games", "tok-alice", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var snap Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	return snap.ID
}

func (e *serviceEnv) joinAll(t *testing.T, gameID string) {
	t.Helper()
	for _, uid := range []string{"bob", "carol", "dave"} {
		w := e.do(t, http.MethodPost, "/games/"+gameID+"/join", e.tokens[uid], nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
}

func TestGuestTokenIssued(t *testing.T) {
	env := newServiceEnv(t)

	w := env.do(t, http.MethodPost, "/auth/guest", "", GuestRequest{DisplayName: "Eve"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp GuestResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, resp.UID)
	assert.Equal(t, "Eve", resp.DisplayName)
}

func TestGuestRequiresDisplayName(t *testing.T) {
	env := newServiceEnv(t)
	w := env.do(t, http.MethodPost, "/auth/guest", "", GuestRequest{DisplayName: "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateGameRequiresAuth(t *testing.T) {
	env := newServiceEnv(t)
	w := env.do(t, http.MethodPost, "/games", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateJoinAndWatch(t *testing.T) {
	env := newServiceEnv(t)
	gameID := env.createGame(t)
	env.joinAll(t, gameID)

	// Anyone can watch without credentials.
	w := env.do(t, http.MethodGet, "/games/"+gameID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.Len(t, snap.Players, 4)
	assert.Equal(t, gameID, snap.ID)
}

func TestGetGameReportsConnections(t *testing.T) {
	env := newServiceEnv(t)
	gameID := env.createGame(t)

	w := env.do(t, http.MethodGet, "/games/"+gameID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp GameResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 0, resp.Connections)

	conn := env.dialWS(t, gameID, "alice")
	readFrame(t, conn) // registration precedes the initial snapshot

	w = env.do(t, http.MethodGet, "/games/"+gameID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = GameResponse{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Connections)
}

func TestJoinTwiceConflicts(t *testing.T) {
	env := newServiceEnv(t)
	gameID := env.createGame(t)

	w := env.do(t, http.MethodPost, "/games/"+gameID+"/join", "tok-bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPost, "/games/"+gameID+"/join", "tok-bob", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUnknownGameNotFound(t *testing.T) {
	env := newServiceEnv(t)
	w := env.do(t, http.MethodGet, "/games/no-such-game", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// dialWS opens a client connection for uid against the running test server.
func (e *serviceEnv) dialWS(t *testing.T, gameID, uid string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") +
		"/games/" + gameID + "/ws?token=" + e.tokens[uid]
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg ServerMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

// readUntil skips frames until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, frameType string) ServerMessage {
	t.Helper()
	for i := 0; i < 10; i++ {
		msg := readFrame(t, conn)
		if msg.Type == frameType {
			return msg
		}
	}
	t.Fatalf("no %s frame received", frameType)
	return ServerMessage{}
}

func TestWebSocketInitialSnapshot(t *testing.T) {
	env := newServiceEnv(t)
	gameID := env.createGame(t)

	conn := env.dialWS(t, gameID, "alice")
	msg := readFrame(t, conn)
	require.Equal(t, FrameSnapshot, msg.Type)
	require.NotNil(t, msg.Snapshot)
	assert.Equal(t, gameID, msg.Snapshot.ID)
}

func TestWebSocketStartGameBroadcasts(t *testing.T) {
	env := newServiceEnv(t)
	gameID := env.createGame(t)
	env.joinAll(t, gameID)

	alice := env.dialWS(t, gameID, "alice")
	bob := env.dialWS(t, gameID, "bob")
	readFrame(t, alice) // initial snapshots
	readFrame(t, bob)

	require.NoError(t, alice.WriteJSON(ClientMessage{Type: MessageStartGame}))

	for _, conn := range []*websocket.Conn{alice, bob} {
		msg := readUntil(t, conn, FrameEvent)
		assert.Equal(t, events.TypeGameStarted, msg.Event.Type)
		snap := readUntil(t, conn, FrameSnapshot)
		assert.Equal(t, "IN_PROGRESS", string(snap.Snapshot.Status))
	}
}

func TestWebSocketRefusedActionGoesToActorOnly(t *testing.T) {
	env := newServiceEnv(t)
	gameID := env.createGame(t)

	// Only one player has joined; starting is refused.
	conn := env.dialWS(t, gameID, "alice")
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageStartGame}))
	msg := readUntil(t, conn, FrameError)
	assert.Equal(t, "not_enough_players", msg.Error.Code)
}

func TestWebSocketUnknownMessageType(t *testing.T) {
	env := newServiceEnv(t)
	gameID := env.createGame(t)

	conn := env.dialWS(t, gameID, "alice")
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "dance"}))
	msg := readUntil(t, conn, FrameError)
	assert.Equal(t, "unknown_type", msg.Error.Code)
}
