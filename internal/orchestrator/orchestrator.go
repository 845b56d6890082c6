// Package orchestrator coordinates the game's externally-triggered
// transitions. Each operation is an atomic read-modify-write against the
// shared record: read the last observed state, apply a pure transition,
// and compare-and-set the replacement. A version conflict means another
// coordinator got there first; the transition is retried once against the
// fresh record and otherwise yields to the winner.
//
// The orchestrator also owns the round countdown for its process and keeps
// it reconciled with remotely-written records: a challenge appearing pauses
// it, a challenge clearing resumes it, and a finished game cancels it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/wordparty/catchphrase/internal/countdown"
	"github.com/wordparty/catchphrase/internal/events"
	"github.com/wordparty/catchphrase/internal/game"
	"github.com/wordparty/catchphrase/internal/models"
	"github.com/wordparty/catchphrase/internal/store"
	"github.com/wordparty/catchphrase/internal/words"
)

// Publisher pushes game events to connected clients. Publishing is
// fire-and-forget; delivery failures never block a transition.
type Publisher interface {
	Publish(evt events.Event)
}

// expireTimeout bounds the store round-trip made from the countdown's
// expiry callback, which has no caller to inherit a context from.
const expireTimeout = 5 * time.Second

// Orchestrator drives a single game. All transitions for the game in this
// process funnel through its mutex; cross-process races are resolved by the
// store's compare-and-set.
type Orchestrator struct {
	gameID       string
	store        store.Store
	words        words.Source
	pub          Publisher
	clock        clockwork.Clock
	rng          *rand.Rand
	roundSeconds int

	countdown *countdown.Countdown

	mu       sync.Mutex
	lastSeed int64

	// mailbox holds the freshest record seen from the store subscription.
	// Reconciliation runs on its own goroutine so a subscription callback
	// fired synchronously from one of our own writes cannot deadlock on mu.
	mailbox   chan *models.GameState
	cancelSub func()
	done      chan struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock swaps the wall clock, e.g. for a clockwork fake in tests.
func WithClock(clock clockwork.Clock) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithPublisher registers the sink for game events.
func WithPublisher(pub Publisher) Option {
	return func(o *Orchestrator) { o.pub = pub }
}

// WithRand swaps the randomness source used for team and word shuffling.
func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) { o.rng = rng }
}

// New creates an orchestrator for an existing game record. roundSeconds is
// the full countdown length for each round.
func New(gameID string, st store.Store, vocab words.Source, roundSeconds int, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gameID:       gameID,
		store:        st,
		words:        vocab,
		clock:        clockwork.NewRealClock(),
		roundSeconds: roundSeconds,
		mailbox:      make(chan *models.GameState, 1),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(o.clock.Now().UnixNano()))
	}
	o.countdown = countdown.New(roundSeconds, o.onExpire,
		countdown.WithClock(o.clock),
		countdown.WithTickFunc(o.onTick),
	)
	return o
}

// Start subscribes to the store and begins reconciling remote writes. It
// returns immediately; Stop tears the subscription down.
func (o *Orchestrator) Start(ctx context.Context) error {
	cancel, err := o.store.Subscribe(ctx, o.gameID, o.observe)
	if err != nil {
		return fmt.Errorf("failed to subscribe to game %s: %w", o.gameID, err)
	}
	o.cancelSub = cancel
	go o.reconcileLoop()
	log.Info().Str("game_id", o.gameID).Int("round_sec", o.roundSeconds).Msg("orchestrator started")
	return nil
}

// Stop cancels the store subscription and the countdown.
func (o *Orchestrator) Stop() {
	if o.cancelSub != nil {
		o.cancelSub()
		o.cancelSub = nil
	}
	close(o.done)
	o.countdown.Cancel()
}

// State reads the current game record.
func (o *Orchestrator) State(ctx context.Context) (*models.GameState, error) {
	return o.store.Read(ctx, o.gameID)
}

// Join adds a player to the waiting room.
func (o *Orchestrator) Join(ctx context.Context, player models.Player) (*models.GameState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.apply(ctx, func(s *models.GameState) (*models.GameState, error) {
		return game.Join(s, player)
	})
}

// StartGame forms the teams and moves the game in progress. Any joined
// player may trigger it.
func (o *Orchestrator) StartGame(ctx context.Context, actor models.Player) (*models.GameState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	wordList := o.words.Shuffle(o.rng)
	next, err := o.apply(ctx, func(s *models.GameState) (*models.GameState, error) {
		if !s.Players.Contains(actor.UID) {
			return s, game.ErrNotEligible
		}
		return game.StartGame(s, wordList, o.rng)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("game_id", o.gameID).
		Int("players", len(next.InGamePlayers())).
		Str("talker", next.CurrentTalker.Talker.UID).
		Msg("game started")
	o.publish(events.TypeGameStarted, events.GameStartedPayload{
		GameID:    o.gameID,
		Team1:     next.Team1,
		Team2:     next.Team2,
		Talker:    next.CurrentTalker,
		StartedAt: o.clock.Now().UTC(),
	})
	return next, nil
}

// StartRound begins the current talker's round and starts the countdown.
// Only the current talker may start their own round.
func (o *Orchestrator) StartRound(ctx context.Context, actor models.Player) (*models.GameState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	seed := o.clock.Now().UnixNano()
	next, err := o.apply(ctx, func(s *models.GameState) (*models.GameState, error) {
		if actor.UID != s.CurrentTalker.Talker.UID {
			return s, game.ErrNotCurrentTalker
		}
		return game.StartRound(s, seed)
	})
	if err != nil {
		return nil, err
	}

	o.lastSeed = seed
	if err := o.countdown.Start(); err != nil {
		// A racing duplicate already has the clock running; the record-level
		// guard refused the duplicate write, so nothing to undo.
		log.Warn().Err(err).Str("game_id", o.gameID).Msg("countdown already running at round start")
	}
	log.Info().Str("game_id", o.gameID).Int("round", next.CurrentRound).Msg("round started")
	o.publish(events.TypeRoundStarted, events.RoundStartedPayload{
		GameID:       o.gameID,
		Round:        next.CurrentRound,
		RoundSeconds: o.roundSeconds,
		StartedAt:    o.clock.Now().UTC(),
	})
	return next, nil
}

// NextTurn passes the word to the other team's next talker without scoring.
// Only the current talker may trigger it.
func (o *Orchestrator) NextTurn(ctx context.Context, actor models.Player) (*models.GameState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	next, err := o.apply(ctx, func(s *models.GameState) (*models.GameState, error) {
		if actor.UID != s.CurrentTalker.Talker.UID {
			return s, game.ErrNotCurrentTalker
		}
		return game.TransitionToNextTurn(s)
	})
	if err != nil {
		return nil, err
	}

	o.publish(events.TypeTurnAdvanced, events.TurnAdvancedPayload{
		GameID: o.gameID,
		Turn:   next.CurrentTurn,
		Talker: next.CurrentTalker,
	})
	return next, nil
}

// EndRound resolves the current round: the countdown is cancelled first so
// no stale tick can land after the record says the round is over, then the
// point is awarded and the game parks between rounds. Ending a round that
// already ended is a no-op.
func (o *Orchestrator) EndRound(ctx context.Context) (*models.GameState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.endRoundLocked(ctx)
}

func (o *Orchestrator) endRoundLocked(ctx context.Context) (*models.GameState, error) {
	o.countdown.Cancel()

	var before *models.GameState
	next, err := o.apply(ctx, func(s *models.GameState) (*models.GameState, error) {
		before = s
		return game.TransitionToNextRound(s)
	})
	if err != nil {
		return nil, err
	}
	if next == before {
		// Already between rounds; someone else resolved this round.
		return next, nil
	}

	winner := game.ResolveRoundWinner(before)
	log.Info().
		Str("game_id", o.gameID).
		Int("round", before.CurrentRound).
		Str("winner", string(winner)).
		Int("team1_score", next.Team1.Score).
		Int("team2_score", next.Team2.Score).
		Msg("round ended")
	o.publish(events.TypeRoundEnded, events.RoundEndedPayload{
		GameID:     o.gameID,
		Round:      before.CurrentRound,
		Winner:     winner,
		Team1Score: next.Team1.Score,
		Team2Score: next.Team2.Score,
		EndedAt:    o.clock.Now().UTC(),
	})
	if next.Status == models.GameStatusDone {
		log.Info().Str("game_id", o.gameID).Str("winner", string(winner)).Msg("game completed")
		o.publish(events.TypeGameCompleted, events.GameCompletedPayload{
			GameID:      o.gameID,
			Winner:      winner,
			Team1Score:  next.Team1.Score,
			Team2Score:  next.Team2.Score,
			CompletedAt: o.clock.Now().UTC(),
		})
	}
	return next, nil
}

// Challenge opens a dispute over the current clue. The countdown is paused
// before the record changes so the pending tick cannot fire into a frozen
// round; if the record refuses the challenge the clock is resumed.
func (o *Orchestrator) Challenge(ctx context.Context, actor models.Player) (*models.GameState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	paused := o.countdown.Pause() == nil
	next, err := o.apply(ctx, func(s *models.GameState) (*models.GameState, error) {
		return game.StartChallenge(s, actor)
	})
	if err != nil {
		if paused {
			if rerr := o.countdown.Resume(); rerr != nil {
				log.Error().Err(rerr).Str("game_id", o.gameID).Msg("failed to resume countdown after refused challenge")
			}
		}
		return nil, err
	}

	log.Info().Str("game_id", o.gameID).Str("challenger", actor.UID).Msg("challenge started")
	o.publish(events.TypeChallengeStarted, events.ChallengeStartedPayload{
		GameID:       o.gameID,
		Challenger:   actor,
		RemainingSec: o.countdown.Remaining(),
	})
	return next, nil
}

// RespondToChallenge records one player's vote on the disputed clue. When
// the last vote lands the challenge resolves: dismissed resumes the frozen
// countdown, upheld ends the round against the talker.
func (o *Orchestrator) RespondToChallenge(ctx context.Context, actor models.Player, accept bool) (*models.GameState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var outcome game.ChallengeOutcome
	next, err := o.apply(ctx, func(s *models.GameState) (*models.GameState, error) {
		resolved, out, err := game.RespondToChallenge(s, actor, accept)
		outcome = out
		return resolved, err
	})
	if err != nil {
		return nil, err
	}

	switch outcome {
	case game.ChallengeUpheld:
		o.countdown.Cancel()
		o.publish(events.TypeChallengeResolved, events.ChallengeResolvedPayload{
			GameID: o.gameID,
			Upheld: true,
		})
		winner := next.CurrentTalker.Team
		log.Info().Str("game_id", o.gameID).Str("winner", string(winner)).Msg("challenge upheld, round ended")
		o.publish(events.TypeRoundEnded, events.RoundEndedPayload{
			GameID:     o.gameID,
			Round:      next.CurrentRound - 1,
			Winner:     winner,
			Team1Score: next.Team1.Score,
			Team2Score: next.Team2.Score,
			EndedAt:    o.clock.Now().UTC(),
		})
		if next.Status == models.GameStatusDone {
			o.publish(events.TypeGameCompleted, events.GameCompletedPayload{
				GameID:      o.gameID,
				Winner:      winner,
				Team1Score:  next.Team1.Score,
				Team2Score:  next.Team2.Score,
				CompletedAt: o.clock.Now().UTC(),
			})
		}
	case game.ChallengeDismissed:
		if err := o.countdown.Resume(); err != nil {
			log.Warn().Err(err).Str("game_id", o.gameID).Msg("countdown not paused at challenge dismissal")
		}
		log.Info().Str("game_id", o.gameID).Msg("challenge dismissed, play resumes")
		o.publish(events.TypeChallengeResolved, events.ChallengeResolvedPayload{
			GameID: o.gameID,
			Upheld: false,
		})
	}
	return next, nil
}

// KeyPress resolves the overloaded key press for the actor and routes it to
// the matching transition. A press that maps to nothing returns the current
// state unchanged.
func (o *Orchestrator) KeyPress(ctx context.Context, actor models.Player) (*models.GameState, error) {
	state, err := o.store.Read(ctx, o.gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to read game %s: %w", o.gameID, err)
	}

	action := game.DispatchKeyPress(state, actor)
	log.Debug().Str("game_id", o.gameID).Str("uid", actor.UID).Stringer("action", action).Msg("key press")
	switch action {
	case game.ActionNextTurn:
		return o.NextTurn(ctx, actor)
	case game.ActionChallenge:
		return o.Challenge(ctx, actor)
	default:
		return state, nil
	}
}

// apply runs one transition as read, transform, compare-and-set. On a
// version conflict it re-reads and retries once; a second conflict yields
// to whoever is winning the record. A transition that returns its input
// unchanged commits nothing. Caller holds mu.
func (o *Orchestrator) apply(ctx context.Context, fn func(*models.GameState) (*models.GameState, error)) (*models.GameState, error) {
	state, err := o.store.Read(ctx, o.gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to read game %s: %w", o.gameID, err)
	}

	for attempt := 0; ; attempt++ {
		if verr := state.Validate(); verr != nil {
			log.Error().Err(verr).Str("game_id", o.gameID).Int64("version", state.Version).
				Msg("game record failed integrity check")
			return nil, fmt.Errorf("%w: %v", game.ErrIntegrityViolation, verr)
		}

		next, err := fn(state)
		if err != nil {
			return nil, err
		}
		if next == state {
			return state, nil
		}

		err = o.store.CompareAndSwap(ctx, next, state.Version)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) || attempt >= 1 {
			return nil, fmt.Errorf("failed to write game %s: %w", o.gameID, err)
		}

		log.Debug().Str("game_id", o.gameID).Int64("version", state.Version).
			Msg("lost write race, re-reading record")
		state, err = o.store.Read(ctx, o.gameID)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read game %s: %w", o.gameID, err)
		}
	}
}

// onTick publishes the countdown heartbeat.
func (o *Orchestrator) onTick(remaining int) {
	o.publish(events.TypeTimerTick, events.TimerTickPayload{
		GameID:       o.gameID,
		RemainingSec: remaining,
		TickedAt:     o.clock.Now().UTC(),
	})
}

// onExpire ends the round when the countdown hits zero. It runs on the
// countdown's goroutine with no inherited context, so it carries its own
// deadline. The between-rounds no-op absorbs the case where another
// coordinator resolved the round first.
func (o *Orchestrator) onExpire() {
	ctx, cancel := context.WithTimeout(context.Background(), expireTimeout)
	defer cancel()
	if _, err := o.EndRound(ctx); err != nil {
		log.Error().Err(err).Str("game_id", o.gameID).Msg("failed to end round on countdown expiry")
	}
}

// observe is the store subscription callback. It parks the freshest record
// in the mailbox, displacing any older one still waiting.
func (o *Orchestrator) observe(state *models.GameState) {
	for {
		select {
		case o.mailbox <- state:
			return
		default:
			select {
			case <-o.mailbox:
			default:
			}
		}
	}
}

func (o *Orchestrator) reconcileLoop() {
	for {
		select {
		case <-o.done:
			return
		case state := <-o.mailbox:
			o.reconcile(state)
		}
	}
}

// reconcile lines the local countdown up with an observed record, which may
// have been written by another coordinator. The timer seed distinguishes a
// remotely started round from a stale notification of one this process
// already ran down.
func (o *Orchestrator) reconcile(state *models.GameState) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case state.Status != models.GameStatusInProgress:
		o.countdown.Cancel()
	case state.Challenge != nil:
		if o.countdown.State() == countdown.Running {
			if err := o.countdown.Pause(); err != nil {
				log.Warn().Err(err).Str("game_id", o.gameID).Msg("failed to pause countdown for remote challenge")
			}
		}
	case state.BetweenRounds:
		o.countdown.Cancel()
	default:
		switch o.countdown.State() {
		case countdown.Paused:
			if err := o.countdown.Resume(); err != nil {
				log.Warn().Err(err).Str("game_id", o.gameID).Msg("failed to resume countdown after remote dismissal")
			}
		case countdown.Idle, countdown.Expired:
			if state.TimerSeed != o.lastSeed {
				o.lastSeed = state.TimerSeed
				if err := o.countdown.Start(); err != nil {
					log.Warn().Err(err).Str("game_id", o.gameID).Msg("failed to start countdown for remote round")
				}
			}
		}
	}
}

func (o *Orchestrator) publish(typ events.Type, payload any) {
	if o.pub == nil {
		return
	}
	o.pub.Publish(events.New(o.gameID, typ, payload))
}
