package orchestrator

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordparty/catchphrase/internal/countdown"
	"github.com/wordparty/catchphrase/internal/events"
	"github.com/wordparty/catchphrase/internal/game"
	"github.com/wordparty/catchphrase/internal/models"
	"github.com/wordparty/catchphrase/internal/store"
)

var (
	alice = models.Player{UID: "alice", DisplayName: "Alice"}
	bob   = models.Player{UID: "bob", DisplayName: "Bob"}
	carol = models.Player{UID: "carol", DisplayName: "Carol"}
	dave  = models.Player{UID: "dave", DisplayName: "Dave"}
)

// stubSource hands out a fixed word list so tests know every word slot.
type stubSource struct{ list []string }

func (s stubSource) Shuffle(*rand.Rand) []string {
	return append([]string(nil), s.list...)
}

// capturePub records published events.
type capturePub struct {
	mu   sync.Mutex
	evts []events.Event
}

func (p *capturePub) Publish(evt events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evts = append(p.evts, evt)
}

func (p *capturePub) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.evts))
	for i, e := range p.evts {
		out[i] = e.Type
	}
	return out
}

func (p *capturePub) count(typ events.Type) int {
	n := 0
	for _, t := range p.types() {
		if t == typ {
			n++
		}
	}
	return n
}

type testEnv struct {
	store   *store.Memory
	clock   *clockwork.FakeClock
	pub     *capturePub
	manager *Manager
	orch    *Orchestrator
	gameID  string
}

const testRoundSeconds = 3

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store: store.NewMemory(),
		clock: clockwork.NewFakeClock(),
		pub:   &capturePub{},
	}
	vocab := stubSource{list: []string{
		"zero", "one", "two", "three", "four", "five",
		"six", "seven", "eight", "nine", "ten", "eleven",
	}}
	env.manager = NewManager(env.store, vocab, env.pub, testRoundSeconds,
		WithClock(env.clock),
		WithRand(rand.New(rand.NewSource(7))),
	)
	t.Cleanup(env.manager.Close)

	state, orch, err := env.manager.CreateGame(context.Background(), alice)
	require.NoError(t, err)
	env.orch = orch
	env.gameID = state.ID
	return env
}

// joinAll adds the remaining fixture players to the waiting room.
func (e *testEnv) joinAll(t *testing.T) {
	t.Helper()
	for _, p := range []models.Player{bob, carol, dave} {
		_, err := e.orch.Join(context.Background(), p)
		require.NoError(t, err)
	}
}

// startGame forms teams and returns the opening state.
func (e *testEnv) startGame(t *testing.T) *models.GameState {
	t.Helper()
	e.joinAll(t)
	state, err := e.orch.StartGame(context.Background(), alice)
	require.NoError(t, err)
	return state
}

// startRound has the current talker open their round.
func (e *testEnv) startRound(t *testing.T) *models.GameState {
	t.Helper()
	state, err := e.orch.State(context.Background())
	require.NoError(t, err)
	next, err := e.orch.StartRound(context.Background(), state.CurrentTalker.Talker)
	require.NoError(t, err)
	return next
}

// defender returns a player on the team opposite the current talker.
func defender(t *testing.T, state *models.GameState) models.Player {
	t.Helper()
	roster := state.Team(state.CurrentTalker.Team.Opponent()).Players
	require.NotEmpty(t, roster)
	return roster[0]
}

// teammate returns the talker's non-talking teammate.
func teammate(t *testing.T, state *models.GameState) models.Player {
	t.Helper()
	for _, p := range state.Team(state.CurrentTalker.Team).Players {
		if p.UID != state.CurrentTalker.Talker.UID {
			return p
		}
	}
	t.Fatal("talker has no teammate")
	return models.Player{}
}

// tick advances the fake clock through one countdown second and waits for
// the tick to be processed, observed via the published heartbeat. Not valid
// for the final second, which expires instead of ticking.
func (e *testEnv) tick(t *testing.T) {
	t.Helper()
	before := e.pub.count(events.TypeTimerTick)
	e.clock.BlockUntil(1)
	e.clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		return e.pub.count(events.TypeTimerTick) > before
	}, 2*time.Second, time.Millisecond)
}

// finalTick advances the clock through the countdown's last second.
func (e *testEnv) finalTick(t *testing.T) {
	t.Helper()
	e.clock.BlockUntil(1)
	e.clock.Advance(time.Second)
}

// waitBetweenRounds polls until a round resolution lands in the store.
func (e *testEnv) waitBetweenRounds(t *testing.T) *models.GameState {
	t.Helper()
	var state *models.GameState
	require.Eventually(t, func() bool {
		var err error
		state, err = e.orch.State(context.Background())
		return err == nil && state.BetweenRounds
	}, 2*time.Second, 5*time.Millisecond)
	return state
}

func TestCreateJoinAndStart(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orch.StartGame(context.Background(), alice)
	assert.ErrorIs(t, err, game.ErrNotEnoughPlayers)

	state := env.startGame(t)
	assert.Equal(t, models.GameStatusInProgress, state.Status)
	assert.True(t, state.BetweenRounds)
	assert.Len(t, state.Team1.Players, 2)
	assert.Len(t, state.Team2.Players, 2)
	assert.Equal(t, models.TeamOne, state.CurrentTalker.Team)
	assert.Equal(t, 1, state.CurrentTurn)
	assert.Equal(t, 1, state.CurrentRound)

	assert.Equal(t, 1, env.pub.count(events.TypeGameStarted))
	assert.Equal(t, countdown.Idle, env.orch.countdown.State())
}

func TestStartGameRequiresJoinedActor(t *testing.T) {
	env := newTestEnv(t)
	env.joinAll(t)

	outsider := models.Player{UID: "mallory", DisplayName: "Mallory"}
	_, err := env.orch.StartGame(context.Background(), outsider)
	assert.ErrorIs(t, err, game.ErrNotEligible)
}

func TestStartRoundOnlyByTalker(t *testing.T) {
	env := newTestEnv(t)
	state := env.startGame(t)

	_, err := env.orch.StartRound(context.Background(), defender(t, state))
	assert.ErrorIs(t, err, game.ErrNotCurrentTalker)

	next := env.startRound(t)
	assert.False(t, next.BetweenRounds)
	assert.Equal(t, countdown.Running, env.orch.countdown.State())
	assert.Equal(t, 1, env.pub.count(events.TypeRoundStarted))

	// The talker cannot open the same round twice.
	_, err = env.orch.StartRound(context.Background(), next.CurrentTalker.Talker)
	assert.ErrorIs(t, err, game.ErrNotBetweenRounds)
}

func TestCountdownExpiryEndsRound(t *testing.T) {
	env := newTestEnv(t)
	opening := env.startGame(t)
	env.startRound(t)

	for i := 0; i < testRoundSeconds-1; i++ {
		env.tick(t)
	}
	env.finalTick(t)

	state := env.waitBetweenRounds(t)
	winner := opening.CurrentTalker.Team.Opponent()
	assert.Equal(t, 1, state.Team(winner).Score)
	assert.Equal(t, 0, state.Team(winner.Opponent()).Score)
	assert.Equal(t, 2, state.CurrentRound)
	assert.Equal(t, winner, state.CurrentTalker.Team)
	assert.Equal(t, 1, env.pub.count(events.TypeRoundEnded))
	assert.Equal(t, testRoundSeconds-1, env.pub.count(events.TypeTimerTick))
}

func TestEndRoundIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.startGame(t)
	env.startRound(t)

	first, err := env.orch.EndRound(context.Background())
	require.NoError(t, err)
	again, err := env.orch.EndRound(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Team1.Score, again.Team1.Score)
	assert.Equal(t, first.Team2.Score, again.Team2.Score)
	assert.Equal(t, first.CurrentRound, again.CurrentRound)
	assert.Equal(t, 1, env.pub.count(events.TypeRoundEnded))
}

func TestNextTurnOnlyByTalker(t *testing.T) {
	env := newTestEnv(t)
	state := env.startGame(t)
	env.startRound(t)

	_, err := env.orch.NextTurn(context.Background(), defender(t, state))
	assert.ErrorIs(t, err, game.ErrNotCurrentTalker)

	next, err := env.orch.NextTurn(context.Background(), state.CurrentTalker.Talker)
	require.NoError(t, err)
	assert.Equal(t, 2, next.CurrentTurn)
	assert.Equal(t, 1, next.CurrentRound)
	assert.Equal(t, state.CurrentTalker.Team.Opponent(), next.CurrentTalker.Team)
	assert.Equal(t, "two", next.CurrentWord)
	assert.Equal(t, 1, env.pub.count(events.TypeTurnAdvanced))
}

func TestChallengePausesCountdown(t *testing.T) {
	env := newTestEnv(t)
	state := env.startGame(t)
	env.startRound(t)
	env.tick(t)

	next, err := env.orch.Challenge(context.Background(), defender(t, state))
	require.NoError(t, err)
	require.NotNil(t, next.Challenge)
	assert.Equal(t, countdown.Paused, env.orch.countdown.State())
	assert.Equal(t, testRoundSeconds-1, env.orch.countdown.Remaining())
	assert.Equal(t, 1, env.pub.count(events.TypeChallengeStarted))
}

func TestChallengeByTeammateRefusedAndClockKeepsRunning(t *testing.T) {
	env := newTestEnv(t)
	state := env.startGame(t)
	env.startRound(t)

	_, err := env.orch.Challenge(context.Background(), teammate(t, state))
	assert.ErrorIs(t, err, game.ErrNotEligible)
	assert.Equal(t, countdown.Running, env.orch.countdown.State())
}

func TestChallengeDismissedResumesFromFrozenTime(t *testing.T) {
	env := newTestEnv(t)
	state := env.startGame(t)
	env.startRound(t)
	env.tick(t)

	challenger := defender(t, state)
	_, err := env.orch.Challenge(context.Background(), challenger)
	require.NoError(t, err)

	// Remaining voters: the talker's teammate and the challenger's teammate.
	// Both ignore, so the table sides with the talker 1-2.
	voters := state.InGamePlayers().Without(challenger.UID, state.CurrentTalker.Talker.UID)
	require.Len(t, voters, 2)
	for _, voter := range voters {
		_, err := env.orch.RespondToChallenge(context.Background(), voter, false)
		require.NoError(t, err)
	}

	resolved, err := env.orch.State(context.Background())
	require.NoError(t, err)
	assert.Nil(t, resolved.Challenge)
	assert.False(t, resolved.BetweenRounds)
	assert.Equal(t, countdown.Running, env.orch.countdown.State())
	assert.Equal(t, testRoundSeconds-1, env.orch.countdown.Remaining())
	assert.Equal(t, 1, env.pub.count(events.TypeChallengeResolved))
	assert.Equal(t, 0, env.pub.count(events.TypeRoundEnded))
}

func TestChallengeUpheldEndsRoundAgainstTalker(t *testing.T) {
	env := newTestEnv(t)
	state := env.startGame(t)
	env.startRound(t)

	challenger := defender(t, state)
	_, err := env.orch.Challenge(context.Background(), challenger)
	require.NoError(t, err)

	voters := state.InGamePlayers().Without(challenger.UID, state.CurrentTalker.Talker.UID)
	require.Len(t, voters, 2)
	for _, voter := range voters {
		_, err := env.orch.RespondToChallenge(context.Background(), voter, true)
		require.NoError(t, err)
	}

	resolved, err := env.orch.State(context.Background())
	require.NoError(t, err)
	winner := state.CurrentTalker.Team.Opponent()
	assert.True(t, resolved.BetweenRounds)
	assert.Nil(t, resolved.Challenge)
	assert.Equal(t, 1, resolved.Team(winner).Score)
	assert.Equal(t, countdown.Idle, env.orch.countdown.State())
	assert.Equal(t, 1, env.pub.count(events.TypeChallengeResolved))
	assert.Equal(t, 1, env.pub.count(events.TypeRoundEnded))
}

func TestKeyPressRouting(t *testing.T) {
	env := newTestEnv(t)
	state := env.startGame(t)
	env.startRound(t)

	// A non-talking teammate's press does nothing.
	before, err := env.orch.State(context.Background())
	require.NoError(t, err)
	after, err := env.orch.KeyPress(context.Background(), teammate(t, state))
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)

	// The talker's press advances the turn.
	next, err := env.orch.KeyPress(context.Background(), state.CurrentTalker.Talker)
	require.NoError(t, err)
	assert.Equal(t, 2, next.CurrentTurn)

	// A defender's press opens a challenge. The talker rotated, so the
	// original talker is now on the defending side.
	next, err = env.orch.KeyPress(context.Background(), state.CurrentTalker.Talker)
	require.NoError(t, err)
	require.NotNil(t, next.Challenge)
	assert.Equal(t, state.CurrentTalker.Talker.UID, next.Challenge.Challenger.UID)
	assert.Equal(t, countdown.Paused, env.orch.countdown.State())
}

func TestKeyPressBetweenRoundsRefusedForTalker(t *testing.T) {
	env := newTestEnv(t)
	state := env.startGame(t)

	// Between rounds the talker's press still maps to next-turn, which the
	// transition itself refuses.
	_, err := env.orch.KeyPress(context.Background(), state.CurrentTalker.Talker)
	assert.ErrorIs(t, err, game.ErrBetweenRounds)
}

func TestRemoteCoordinatorReconcilesCountdown(t *testing.T) {
	env := newTestEnv(t)
	state := env.startGame(t)

	// A second coordinator for the same game, sharing the store and clock.
	remote := New(env.gameID, env.store, stubSource{list: []string{"a", "b"}}, testRoundSeconds,
		WithClock(env.clock),
		WithRand(rand.New(rand.NewSource(11))),
	)
	require.NoError(t, remote.Start(context.Background()))
	t.Cleanup(remote.Stop)

	// The local coordinator starts the round; the remote one picks the
	// countdown up from the written record.
	env.startRound(t)
	require.Eventually(t, func() bool {
		return remote.countdown.State() == countdown.Running
	}, 2*time.Second, 5*time.Millisecond)

	// A challenge written by the local coordinator pauses the remote clock.
	_, err := env.orch.Challenge(context.Background(), defender(t, state))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return remote.countdown.State() == countdown.Paused
	}, 2*time.Second, 5*time.Millisecond)

	// Dismissal resumes it.
	voters := state.InGamePlayers().Without(defender(t, state).UID, state.CurrentTalker.Talker.UID)
	for _, voter := range voters {
		_, err := env.orch.RespondToChallenge(context.Background(), voter, false)
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool {
		return remote.countdown.State() == countdown.Running
	}, 2*time.Second, 5*time.Millisecond)

	// The round resolving cancels it.
	_, err = env.orch.EndRound(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return remote.countdown.State() == countdown.Idle
	}, 2*time.Second, 5*time.Millisecond)
}

// conflictingStore reports a version conflict for the first n swaps so the
// retry path can be exercised deterministically.
type conflictingStore struct {
	store.Store
	mu        sync.Mutex
	conflicts int
}

func (c *conflictingStore) CompareAndSwap(ctx context.Context, state *models.GameState, expectedVersion int64) error {
	c.mu.Lock()
	if c.conflicts > 0 {
		c.conflicts--
		c.mu.Unlock()
		return store.ErrVersionConflict
	}
	c.mu.Unlock()
	return c.Store.CompareAndSwap(ctx, state, expectedVersion)
}

func TestWriteConflictRetriesOnce(t *testing.T) {
	mem := store.NewMemory()
	wrapped := &conflictingStore{Store: mem}
	vocab := stubSource{list: []string{"zero", "one", "two", "three"}}
	mgr := NewManager(wrapped, vocab, &capturePub{}, testRoundSeconds,
		WithClock(clockwork.NewFakeClock()),
		WithRand(rand.New(rand.NewSource(7))),
	)
	t.Cleanup(mgr.Close)

	_, orch, err := mgr.CreateGame(context.Background(), alice)
	require.NoError(t, err)
	for _, p := range []models.Player{bob, carol, dave} {
		_, err := orch.Join(context.Background(), p)
		require.NoError(t, err)
	}

	// One conflict: the re-read still satisfies the guards, so the retried
	// write lands.
	wrapped.mu.Lock()
	wrapped.conflicts = 1
	wrapped.mu.Unlock()
	state, err := orch.StartGame(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusInProgress, state.Status)

	// Two in a row: the transition yields to the winning writer.
	wrapped.mu.Lock()
	wrapped.conflicts = 2
	wrapped.mu.Unlock()
	_, err = orch.StartRound(context.Background(), state.CurrentTalker.Talker)
	assert.ErrorIs(t, err, store.ErrVersionConflict)
}

func TestIntegrityViolationRefused(t *testing.T) {
	env := newTestEnv(t)
	env.startGame(t)

	// Corrupt the stored record: the recorded word no longer matches its
	// word list slot.
	broken, err := env.orch.State(context.Background())
	require.NoError(t, err)
	broken.CurrentWord = "not-in-the-list"
	require.NoError(t, env.store.Write(context.Background(), broken))

	_, err = env.orch.StartRound(context.Background(), broken.CurrentTalker.Talker)
	assert.ErrorIs(t, err, game.ErrIntegrityViolation)
}
