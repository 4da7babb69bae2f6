package game

import (
	"errors"
	"testing"
	"time"

	"github.com/robalobadob/typing-escape/internal/words"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestController(t *testing.T, list words.List, opts ...Option) (*Controller, *ManualClock) {
	t.Helper()
	clk := NewManualClock(t0)
	c, err := New(list, append([]Option{WithClock(clk), WithID("test")}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c, clk
}

func TestNewRejectsEmptyWordList(t *testing.T) {
	if _, err := New(words.List{}); !errors.Is(err, words.ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestNewRejectsInvalidRules(t *testing.T) {
	r := DefaultRules()
	r.DogStart = 72
	if _, err := New(words.List{"run"}, WithRules(r)); !errors.Is(err, ErrInvalidRules) {
		t.Fatalf("expected ErrInvalidRules, got %v", err)
	}
}

func TestInitialSnapshot(t *testing.T) {
	c, _ := newTestController(t, words.List{"run"})
	s := c.Snapshot()
	if s.ID != "test" || s.IsActive || s.BittenCount != 0 || s.ManPosition != 75 || s.DogPosition != 25 || s.IsGameOver {
		t.Errorf("unexpected initial snapshot: %+v", s)
	}
}

// Scenario A: typing the word ends the round without a bite.
func TestTypingWordEndsRound(t *testing.T) {
	c, clk := newTestController(t, words.List{"run"})

	if !c.StartRound() {
		t.Fatal("StartRound returned false")
	}
	s := c.Snapshot()
	if !s.IsActive || s.CurrentWord != "run" || s.TimeLeftSeconds != 5 || s.UserInput != "" {
		t.Fatalf("unexpected round state: %+v", s)
	}

	if !c.Input("run") {
		t.Fatal("Input(run) did not match")
	}
	s = c.Snapshot()
	if s.IsActive || s.BittenCount != 0 || s.CurrentWord != "" || s.UserInput != "" || s.TimeLeftSeconds != 0 {
		t.Fatalf("round not cleared after success: %+v", s)
	}
	if s.WordsTyped != 1 {
		t.Errorf("WordsTyped = %d, want 1", s.WordsTyped)
	}

	// The cancelled miss-timeout must not fire.
	clk.Advance(10 * time.Second)
	if got := c.Snapshot().BittenCount; got != 0 {
		t.Errorf("bitten after cancelled timeout = %d, want 0", got)
	}
	if clk.Pending() != 0 {
		t.Errorf("expected no pending timers, got %d", clk.Pending())
	}
}

// Scenario B: an unanswered round is scored as a miss at the deadline.
func TestTimeoutScoresMiss(t *testing.T) {
	c, clk := newTestController(t, words.List{"run"})
	c.StartRound()

	clk.Advance(5*time.Second - time.Millisecond)
	if !c.Snapshot().IsActive {
		t.Fatal("round ended before its deadline")
	}

	clk.Advance(time.Millisecond)
	s := c.Snapshot()
	if s.IsActive {
		t.Fatal("round still active after deadline")
	}
	if s.BittenCount != 1 || s.DogPosition != 30 || s.ManPosition != 75 {
		t.Errorf("after miss: bitten=%d dog=%d man=%d, want 1/30/75", s.BittenCount, s.DogPosition, s.ManPosition)
	}
}

// Scenario C: five misses end the session and stop the scheduler.
func TestFiveMissesEndGame(t *testing.T) {
	var summaries []Summary
	c, clk := newTestController(t, words.List{"run"}, WithGameOver(func(s Summary) {
		summaries = append(summaries, s)
	}))
	c.Start()

	for i := 1; i <= 5; i++ {
		clk.Advance(10 * time.Second)
		if !c.Snapshot().IsActive {
			t.Fatalf("iteration %d: scheduler did not start a round", i)
		}
		clk.Advance(5 * time.Second)
		if got := c.Snapshot().BittenCount; got != i {
			t.Fatalf("iteration %d: bitten = %d", i, got)
		}
	}

	s := c.Snapshot()
	if !s.IsGameOver || s.IsActive {
		t.Fatalf("expected game over and inactive, got %+v", s)
	}
	if s.DogPosition != 50 {
		t.Errorf("dog = %d, want 50", s.DogPosition)
	}
	if clk.Pending() != 0 {
		t.Errorf("expected all timers cancelled, %d pending", clk.Pending())
	}

	clk.Advance(time.Minute)
	if got := c.Snapshot().Rounds; got != 5 {
		t.Errorf("rounds after game over = %d, want 5", got)
	}
	if c.StartRound() {
		t.Error("StartRound succeeded after game over")
	}

	if len(summaries) != 1 {
		t.Fatalf("game over hook called %d times, want 1", len(summaries))
	}
	sum := summaries[0]
	if sum.SessionID != "test" || sum.Bites != 5 || sum.Rounds != 5 || sum.WordsTyped != 0 {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if want := t0.Add(75 * time.Second); !sum.EndedAt.Equal(want) {
		t.Errorf("EndedAt = %v, want %v", sum.EndedAt, want)
	}
}

// Scenario D: reset after game over restores the start state and resumes rounds.
func TestResetAfterGameOver(t *testing.T) {
	c, clk := newTestController(t, words.List{"run"})
	c.Start()
	for i := 0; i < 5; i++ {
		c.StartRound()
		c.Miss()
	}
	if !c.Snapshot().IsGameOver {
		t.Fatal("expected game over")
	}

	c.Reset()
	s := c.Snapshot()
	if s.BittenCount != 0 || s.ManPosition != 75 || s.DogPosition != 25 || s.IsGameOver || s.IsActive {
		t.Fatalf("unexpected state after reset: %+v", s)
	}
	if s.Rounds != 0 || s.WordsTyped != 0 {
		t.Errorf("score counters not reset: %+v", s)
	}

	clk.Advance(10 * time.Second)
	if !c.Snapshot().IsActive {
		t.Error("no round started after reset")
	}
}

func TestResetCancelsActiveRound(t *testing.T) {
	c, clk := newTestController(t, words.List{"run"})
	c.StartRound()
	c.Reset()

	clk.Advance(5 * time.Second)
	s := c.Snapshot()
	if s.BittenCount != 0 || s.IsActive {
		t.Errorf("reset round still scored: %+v", s)
	}
}

func TestMissIsIdempotent(t *testing.T) {
	c, clk := newTestController(t, words.List{"run"})
	c.StartRound()

	if !c.Miss() {
		t.Fatal("first Miss returned false")
	}
	if c.Miss() {
		t.Error("second Miss returned true")
	}
	clk.Advance(5 * time.Second)
	if got := c.Snapshot().BittenCount; got != 1 {
		t.Errorf("bitten = %d, want 1", got)
	}
}

func TestStaleTimeoutIgnored(t *testing.T) {
	c, _ := newTestController(t, words.List{"run"})
	c.StartRound()
	c.mu.Lock()
	stale := c.roundGen
	c.mu.Unlock()

	c.Input("run")
	c.StartRound()

	// A timeout captured by the first round fires late.
	c.expire(stale)
	s := c.Snapshot()
	if !s.IsActive || s.BittenCount != 0 {
		t.Errorf("stale timeout changed the new round: %+v", s)
	}
}

func TestDogKeepsSafetyGap(t *testing.T) {
	r := DefaultRules()
	r.DogStart = 60
	r.MaxBites = 10
	c, _ := newTestController(t, words.List{"run"}, WithRules(r))

	want := []int{65, 70, 70, 70, 70}
	for i, w := range want {
		c.StartRound()
		c.Miss()
		s := c.Snapshot()
		if s.DogPosition > s.ManPosition-r.SafetyGap {
			t.Fatalf("miss %d: dog %d passed man %d - gap", i+1, s.DogPosition, s.ManPosition)
		}
		if s.DogPosition != w {
			t.Errorf("miss %d: dog = %d, want %d", i+1, s.DogPosition, w)
		}
	}
}

func TestInputMatching(t *testing.T) {
	tests := []struct {
		name   string
		word   string
		inputs []string
		match  bool
	}{
		{"partial then full", "run", []string{"r", "ru", "run"}, true},
		{"wrong then correct", "run", []string{"rum", "ru", "run"}, true},
		{"case sensitive", "Run", []string{"run"}, false},
		{"no trimming", "run", []string{"run "}, false},
		{"prefix only", "escape", []string{"esc"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestController(t, words.List{tt.word})
			c.StartRound()
			var matched bool
			for _, in := range tt.inputs {
				matched = c.Input(in)
			}
			if matched != tt.match {
				t.Errorf("matched = %v, want %v", matched, tt.match)
			}
			s := c.Snapshot()
			if s.IsActive == tt.match {
				t.Errorf("IsActive = %v after match=%v", s.IsActive, tt.match)
			}
			if !tt.match && s.UserInput != tt.inputs[len(tt.inputs)-1] {
				t.Errorf("UserInput = %q", s.UserInput)
			}
		})
	}
}

func TestInputWithoutRoundNeverMatches(t *testing.T) {
	c, _ := newTestController(t, words.List{"run"})
	if c.Input("run") {
		t.Error("input matched with no active round")
	}
	s := c.Snapshot()
	if s.UserInput != "run" || s.WordsTyped != 0 {
		t.Errorf("unexpected snapshot: %+v", s)
	}
}

func TestStartRoundNoOpWhileActive(t *testing.T) {
	picks := 0
	c, _ := newTestController(t, words.List{"run", "dog"}, WithPicker(func(n int) int {
		picks++
		return picks % n
	}))
	c.StartRound()
	word := c.Snapshot().CurrentWord
	if c.StartRound() {
		t.Fatal("second StartRound returned true")
	}
	if got := c.Snapshot().CurrentWord; got != word {
		t.Errorf("word changed from %q to %q", word, got)
	}
	if picks != 1 {
		t.Errorf("picker called %d times, want 1", picks)
	}
}

func TestSchedulerSkipsActiveRound(t *testing.T) {
	c, clk := newTestController(t, words.List{"run"})
	c.Start()

	clk.Advance(8 * time.Second)
	c.StartRound()
	clk.Advance(2 * time.Second) // scheduler fires while the round is active
	if got := c.Snapshot().Rounds; got != 1 {
		t.Fatalf("rounds = %d, want 1", got)
	}

	c.Input("run")
	clk.Advance(10 * time.Second)
	s := c.Snapshot()
	if !s.IsActive || s.Rounds != 2 {
		t.Errorf("expected second round from scheduler, got %+v", s)
	}
}

func TestCountdownFollowsDeadline(t *testing.T) {
	c, clk := newTestController(t, words.List{"run"})
	ch, cancel := c.Subscribe()
	defer cancel()
	<-ch

	c.StartRound()
	if s := <-ch; s.TimeLeftSeconds != 5 {
		t.Fatalf("TimeLeftSeconds at start = %d, want 5", s.TimeLeftSeconds)
	}

	for want := 4; want >= 1; want-- {
		clk.Advance(time.Second)
		select {
		case s := <-ch:
			if s.TimeLeftSeconds != want || !s.IsActive {
				t.Fatalf("tick: TimeLeftSeconds = %d active=%v, want %d", s.TimeLeftSeconds, s.IsActive, want)
			}
		default:
			t.Fatalf("no snapshot published for tick %d", want)
		}
	}

	clk.Advance(500 * time.Millisecond)
	if got := c.Snapshot().TimeLeftSeconds; got != 1 {
		t.Errorf("TimeLeftSeconds at 4.5s = %d, want 1", got)
	}

	clk.Advance(500 * time.Millisecond)
	s := <-ch
	if s.IsActive || s.TimeLeftSeconds != 0 || s.BittenCount != 1 {
		t.Errorf("at deadline: %+v", s)
	}
}

func TestEveryRoundResolvesOnce(t *testing.T) {
	r := DefaultRules()
	r.MaxBites = 100
	c, clk := newTestController(t, words.List{"run"}, WithRules(r))
	c.Start()

	for i := 0; i < 20; i++ {
		clk.Advance(10 * time.Second)
		if i%3 == 0 {
			c.Input("run")
		} else {
			clk.Advance(5 * time.Second)
		}
		s := c.Snapshot()
		if s.IsActive {
			t.Fatalf("round %d still active", i)
		}
		if s.Rounds != s.WordsTyped+s.BittenCount {
			t.Fatalf("rounds %d != typed %d + bitten %d", s.Rounds, s.WordsTyped, s.BittenCount)
		}
	}
}

func TestSubscribeKeepsLatest(t *testing.T) {
	c, _ := newTestController(t, words.List{"run"})
	ch, cancel := c.Subscribe()

	c.StartRound()
	c.Input("r")
	c.Input("ru")

	s := <-ch
	if s.UserInput != "ru" || s.Version != 3 {
		t.Errorf("expected latest snapshot (ru, v3), got %q v%d", s.UserInput, s.Version)
	}
	if c.Subscribers() != 1 {
		t.Errorf("Subscribers = %d, want 1", c.Subscribers())
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}
	if c.Subscribers() != 0 {
		t.Errorf("Subscribers = %d after cancel", c.Subscribers())
	}
	cancel()
}

func TestCloseStopsEverything(t *testing.T) {
	c, clk := newTestController(t, words.List{"run"})
	c.Start()
	c.StartRound()
	ch, _ := c.Subscribe()
	<-ch

	c.Close()
	if !c.Closed() {
		t.Fatal("Closed() = false")
	}
	if _, ok := <-ch; ok {
		t.Error("subscription open after Close")
	}
	if clk.Pending() != 0 {
		t.Errorf("%d timers pending after Close", clk.Pending())
	}
	if c.StartRound() || c.Input("run") || c.Miss() {
		t.Error("operations after Close should be no-ops")
	}
	c.Reset()
	if got := c.Snapshot().Rounds; got != 1 {
		t.Errorf("Reset after Close changed state: rounds=%d", got)
	}

	late, _ := c.Subscribe()
	if _, ok := <-late; ok {
		t.Error("Subscribe after Close returned an open channel")
	}
	c.Close()
}

func TestRulesValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Rules)
		ok     bool
	}{
		{"defaults", func(*Rules) {}, true},
		{"zero timeout", func(r *Rules) { r.RoundTimeout = 0 }, false},
		{"negative interval", func(r *Rules) { r.RoundInterval = -time.Second }, false},
		{"zero tick", func(r *Rules) { r.Tick = 0 }, false},
		{"zero bites", func(r *Rules) { r.MaxBites = 0 }, false},
		{"zero step", func(r *Rules) { r.DogStep = 0 }, false},
		{"man off screen", func(r *Rules) { r.ManStart = 101 }, false},
		{"dog too close", func(r *Rules) { r.DogStart = 71 }, false},
		{"dog at gap", func(r *Rules) { r.DogStart = 70 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DefaultRules()
			tt.mutate(&r)
			err := r.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

// skewedClock lets Now drift relative to the timers, like a wall clock
// stepped backwards.
type skewedClock struct {
	*ManualClock
	skew time.Duration
}

func (s *skewedClock) Now() time.Time { return s.ManualClock.Now().Add(s.skew) }

func TestCountdownClampedToRoundTimeout(t *testing.T) {
	t.Run("custom timeout", func(t *testing.T) {
		r := DefaultRules()
		r.RoundTimeout = 8 * time.Second
		c, clk := newTestController(t, words.List{"run"}, WithRules(r))
		c.StartRound()
		if got := c.Snapshot().TimeLeftSeconds; got != 8 {
			t.Errorf("TimeLeftSeconds at start = %d, want 8", got)
		}
		clk.Advance(time.Second)
		if got := c.Snapshot().TimeLeftSeconds; got != 7 {
			t.Errorf("TimeLeftSeconds after 1s = %d, want 7", got)
		}
	})

	t.Run("clock stepped back", func(t *testing.T) {
		clk := &skewedClock{ManualClock: NewManualClock(t0)}
		c, err := New(words.List{"run"}, WithClock(clk))
		if err != nil {
			t.Fatal(err)
		}
		defer c.Close()

		c.StartRound()
		clk.skew = -3 * time.Second
		if got := c.Snapshot().TimeLeftSeconds; got != 5 {
			t.Errorf("TimeLeftSeconds = %d, want 5", got)
		}
	})
}
