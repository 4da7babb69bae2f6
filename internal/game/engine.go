// internal/game/engine.go
//
// Game controller for a single typing session.
// Responsibilities:
//   - Start rounds: pick a random word and arm the miss-timeout.
//   - Compare input against the current word (exact, case-sensitive).
//   - Score misses: bump the bite counter and move the dog closer.
//   - Run the round scheduler until the bite limit ends the session.
//   - Publish a Snapshot to subscribers after every state change.
//
// Notes:
//   - All handlers (calls, timer callbacks) are serialized by mu.
//   - Every timer captures a generation number and is ignored once stale.
//   - The displayed countdown is derived from the round deadline; the tick
//     timer only republishes it.
package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/typing-escape/internal/words"
)

// Controller owns the state of one session.
type Controller struct {
	id       string
	words    words.List
	rules    Rules
	clock    Clock
	pick     func(n int) int
	log      zerolog.Logger
	gameOver func(Summary)

	mu       sync.Mutex
	round    roundState
	state    sessionState
	roundGen uint64 // bumped whenever round timers are cancelled
	schedGen uint64 // bumped whenever the scheduler restarts or stops
	missT    Timer
	tickT    Timer
	schedT   Timer
	started  bool
	closed   bool
	version  uint64
	subs     map[int]chan Snapshot
	nextSub  int
}

// Option configures a Controller.
type Option func(*Controller)

// WithID sets the session id (default: random UUID).
func WithID(id string) Option { return func(c *Controller) { c.id = id } }

// WithClock replaces the wall clock.
func WithClock(clk Clock) Option { return func(c *Controller) { c.clock = clk } }

// WithRules replaces DefaultRules.
func WithRules(r Rules) Option { return func(c *Controller) { c.rules = r } }

// WithPicker replaces the random word picker. pick(n) must return [0, n).
func WithPicker(pick func(n int) int) Option { return func(c *Controller) { c.pick = pick } }

// WithLogger sets the parent logger; the session id is added as a field.
func WithLogger(l zerolog.Logger) Option { return func(c *Controller) { c.log = l } }

// WithGameOver registers a hook called once each time the session reaches
// the bite limit. It runs outside the controller lock.
func WithGameOver(f func(Summary)) Option { return func(c *Controller) { c.gameOver = f } }

// New constructs an idle controller. Call Start to begin scheduling rounds.
func New(list words.List, opts ...Option) (*Controller, error) {
	if err := list.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		id:    uuid.NewString(),
		words: list,
		rules: DefaultRules(),
		clock: WallClock(),
		pick:  words.RandomIndex,
		log:   log.Logger,
		subs:  make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.rules.Validate(); err != nil {
		return nil, err
	}
	c.log = c.log.With().Str("session", c.id).Logger()
	c.resetStateLocked()
	return c, nil
}

// ID returns the session id.
func (c *Controller) ID() string { return c.id }

// Rules returns the rules the session runs with.
func (c *Controller) Rules() Rules { return c.rules }

// Start arms the round scheduler. Calling it again is a no-op.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.started {
		return
	}
	c.started = true
	c.restartSchedulerLocked()
	c.log.Debug().Dur("interval", c.rules.RoundInterval).Msg("scheduler started")
}

// StartRound begins a new round. It reports false (and changes nothing) if
// a round is already active, the game is over, or the controller is closed.
func (c *Controller) StartRound() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.startRoundLocked() {
		return false
	}
	c.publishLocked()
	return true
}

// Input records the full current value of the input field and resolves the
// round as a success when it equals the current word. Reports whether it
// matched.
func (c *Controller) Input(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.round.input = text
	matched := c.round.active && text == c.round.word
	if matched {
		c.successLocked()
	}
	c.publishLocked()
	return matched
}

// Miss scores the active round as a failure, exactly as if its timeout had
// expired. Without an active round it does nothing and reports false.
func (c *Controller) Miss() bool {
	c.mu.Lock()
	if c.closed || !c.round.active {
		c.mu.Unlock()
		return false
	}
	sum := c.missLocked()
	c.publishLocked()
	c.mu.Unlock()

	c.notifyGameOver(sum)
	return true
}

// Reset restores the starting positions, clears the round, cancels every
// pending timer and restarts the scheduler.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.stopRoundTimersLocked()
	c.round = roundState{}
	c.resetStateLocked()
	c.restartSchedulerLocked()
	c.publishLocked()
	c.log.Debug().Msg("game reset")
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel that always holds the latest snapshot, primed
// with the current one. Unread snapshots are replaced by newer ones. The
// channel is closed by cancel or Close.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan Snapshot, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.snapshotLocked()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Subscribers returns the number of live subscriptions.
func (c *Controller) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Close cancels every timer and subscription. Later calls on the controller
// are no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopRoundTimersLocked()
	c.stopSchedulerLocked()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.log.Debug().Msg("session closed")
}

// Closed reports whether Close was called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ------------------------------ rounds -------------------------------------

func (c *Controller) startRoundLocked() bool {
	if c.closed || c.round.active || c.gameOverLocked() {
		return false
	}
	c.stopRoundTimersLocked()

	idx := c.pick(len(c.words))
	if idx < 0 || idx >= len(c.words) {
		idx = 0
	}
	now := c.clock.Now()
	c.round = roundState{
		word:      c.words[idx],
		active:    true,
		startedAt: now,
		deadline:  now.Add(c.rules.RoundTimeout),
	}
	c.state.rounds++

	gen := c.roundGen
	c.missT = c.clock.AfterFunc(c.rules.RoundTimeout, func() { c.expire(gen) })
	c.armTickLocked(gen)

	c.log.Debug().Str("word", c.round.word).Int("round", c.state.rounds).Msg("round started")
	return true
}

// expire is the miss-timeout callback.
func (c *Controller) expire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.roundGen || !c.round.active {
		c.mu.Unlock()
		return
	}
	sum := c.missLocked()
	c.publishLocked()
	c.mu.Unlock()

	c.notifyGameOver(sum)
}

func (c *Controller) successLocked() {
	c.stopRoundTimersLocked()
	word := c.round.word
	c.round = roundState{}
	c.state.typed++
	c.log.Debug().Str("word", word).Int("typed", c.state.typed).Msg("word typed")
}

// missLocked scores a miss. It returns a Summary when the miss ended the game.
func (c *Controller) missLocked() *Summary {
	c.stopRoundTimersLocked()
	word := c.round.word
	c.round = roundState{}
	c.state.bitten++
	c.state.dog = min(c.state.dog+c.rules.DogStep, c.state.man-c.rules.SafetyGap)
	c.log.Debug().Str("word", word).Int("bitten", c.state.bitten).Int("dog", c.state.dog).Msg("word missed")
	return c.bittenChangedLocked()
}

// bittenChangedLocked either ends the game or restarts the scheduler.
func (c *Controller) bittenChangedLocked() *Summary {
	if !c.gameOverLocked() {
		c.restartSchedulerLocked()
		return nil
	}
	c.stopSchedulerLocked()
	c.stopRoundTimersLocked()
	c.round.active = false

	sum := &Summary{
		SessionID:  c.id,
		StartedAt:  c.state.startedAt,
		EndedAt:    c.clock.Now(),
		Rounds:     c.state.rounds,
		WordsTyped: c.state.typed,
		Bites:      c.state.bitten,
	}
	c.log.Info().Int("rounds", sum.Rounds).Int("typed", sum.WordsTyped).Msg("game over")
	return sum
}

func (c *Controller) notifyGameOver(sum *Summary) {
	if sum != nil && c.gameOver != nil {
		c.gameOver(*sum)
	}
}

func (c *Controller) gameOverLocked() bool { return c.state.bitten >= c.rules.MaxBites }

func (c *Controller) resetStateLocked() {
	c.state = sessionState{
		man:       c.rules.ManStart,
		dog:       c.rules.DogStart,
		startedAt: c.clock.Now(),
	}
}

// ------------------------------ timers -------------------------------------

// stopRoundTimersLocked cancels the miss-timeout and tick and invalidates any
// callback already in flight.
func (c *Controller) stopRoundTimersLocked() {
	c.roundGen++
	if c.missT != nil {
		c.missT.Stop()
		c.missT = nil
	}
	if c.tickT != nil {
		c.tickT.Stop()
		c.tickT = nil
	}
}

// armTickLocked schedules the next whole-tick republish before the deadline.
func (c *Controller) armTickLocked(gen uint64) {
	now := c.clock.Now()
	elapsed := now.Sub(c.round.startedAt)
	next := c.round.startedAt.Add((elapsed/c.rules.Tick + 1) * c.rules.Tick)
	if !next.Before(c.round.deadline) {
		return
	}
	c.tickT = c.clock.AfterFunc(next.Sub(now), func() { c.tick(gen) })
}

func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.roundGen || !c.round.active {
		return
	}
	c.publishLocked()
	c.armTickLocked(gen)
}

func (c *Controller) restartSchedulerLocked() {
	c.stopSchedulerLocked()
	if !c.started || c.closed || c.gameOverLocked() {
		return
	}
	c.armSchedulerLocked(c.schedGen)
}

func (c *Controller) armSchedulerLocked(gen uint64) {
	c.schedT = c.clock.AfterFunc(c.rules.RoundInterval, func() { c.scheduled(gen) })
}

func (c *Controller) stopSchedulerLocked() {
	c.schedGen++
	if c.schedT != nil {
		c.schedT.Stop()
		c.schedT = nil
	}
}

// scheduled is the periodic scheduler callback.
func (c *Controller) scheduled(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.schedGen {
		return
	}
	c.armSchedulerLocked(gen)
	if c.startRoundLocked() {
		c.publishLocked()
	}
}

// ----------------------------- snapshots -----------------------------------

func (c *Controller) timeLeftLocked() int {
	if !c.round.active {
		return 0
	}
	rem := c.round.deadline.Sub(c.clock.Now())
	if rem <= 0 {
		return 0
	}
	rem = min(rem, c.rules.RoundTimeout)
	return int((rem + time.Second - 1) / time.Second)
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		ID:              c.id,
		Version:         c.version,
		CurrentWord:     c.round.word,
		UserInput:       c.round.input,
		TimeLeftSeconds: c.timeLeftLocked(),
		IsActive:        c.round.active,
		BittenCount:     c.state.bitten,
		ManPosition:     c.state.man,
		DogPosition:     c.state.dog,
		IsGameOver:      c.gameOverLocked(),
		Rounds:          c.state.rounds,
		WordsTyped:      c.state.typed,
	}
}

// publishLocked bumps the version and hands the snapshot to every
// subscriber without blocking.
func (c *Controller) publishLocked() {
	c.version++
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
