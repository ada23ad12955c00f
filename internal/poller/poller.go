// Package poller runs the background fetch-and-reconcile cycle for the task
// list. At most one fetch is in flight at any time; ticks that land during a
// flight are skipped and manual triggers are coalesced into one owed cycle.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/accio/accio/internal/backend/types"
	"github.com/accio/accio/internal/notify"
	"github.com/accio/accio/internal/reconcile"
)

const (
	DefaultInterval   = 3 * time.Second
	DefaultMaxBackoff = 60 * time.Second
)

// Fetcher retrieves the current task list from the backend.
type Fetcher interface {
	ListTasks(ctx context.Context) ([]types.Task, error)
}

// Applier commits a polled task list.
type Applier interface {
	Apply(polled []types.Task) reconcile.Result
}

// Reporter receives ambient poll failures.
type Reporter interface {
	Report(action string, err error) notify.Severity
}

// Config controls poll cadence.
type Config struct {
	Interval time.Duration
	// RequestTimeout bounds one fetch. A flight older than this is forcibly
	// cleared on the next tick. Defaults to 3x Interval.
	RequestTimeout time.Duration
	BackoffEnabled bool
	MaxBackoff     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 3 * c.Interval
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	return c
}

// Stats is a snapshot of poller counters.
type Stats struct {
	Running             bool      `json:"running"`
	InFlight            bool      `json:"inFlight"`
	Cycles              uint64    `json:"cycles"`
	Successes           uint64    `json:"successes"`
	Failures            uint64    `json:"failures"`
	ConsecutiveFailures uint64    `json:"consecutiveFailures"`
	SkippedTicks        uint64    `json:"skippedTicks"`
	BackoffSkips        uint64    `json:"backoffSkips"`
	CoalescedTriggers   uint64    `json:"coalescedTriggers"`
	ForcedClears        uint64    `json:"forcedClears"`
	LastSuccess         time.Time `json:"lastSuccess,omitempty"`
	LastFailure         time.Time `json:"lastFailure,omitempty"`
	LastError           string    `json:"lastError,omitempty"`
}

// ErrStuckFlight is reported when a flight exceeds the request timeout.
var ErrStuckFlight = errors.New("poll request exceeded timeout")

// Poller periodically fetches the task list and applies it.
type Poller struct {
	fetcher  Fetcher
	applier  Applier
	reporter Reporter
	cfg      Config
	logger   zerolog.Logger

	mu        sync.Mutex
	applyMu   sync.Mutex
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
	cycles    sync.WaitGroup

	inFlight    bool
	generation  uint64
	flightStart time.Time
	owed        bool
	stats       Stats
}

// New creates a new poller. reporter may be nil.
func New(fetcher Fetcher, applier Applier, reporter Reporter, cfg Config, logger zerolog.Logger) *Poller {
	return &Poller{
		fetcher:  fetcher,
		applier:  applier,
		reporter: reporter,
		cfg:      cfg.withDefaults(),
		logger:   logger.With().Str("component", "poller").Logger(),
	}
}

// Start begins polling. The first cycle runs immediately.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.stoppedCh = make(chan struct{})
	p.mu.Unlock()

	go p.run()
	p.logger.Info().
		Dur("interval", p.cfg.Interval).
		Dur("requestTimeout", p.cfg.RequestTimeout).
		Bool("backoff", p.cfg.BackoffEnabled).
		Msg("Poller started")
}

// Stop cancels the timer and waits for the loop to exit. An in-flight fetch
// is left to complete; no further cycles start after Stop returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.owed = false
	close(p.stopCh)
	p.mu.Unlock()

	<-p.stoppedCh
	p.logger.Info().Msg("Poller stopped")
}

// Wait blocks until every started cycle, including one left in flight by
// Stop, has returned. Call it after Stop.
func (p *Poller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.cycles.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger requests an immediate cycle. If one is in flight, a single
// follow-up cycle is owed instead. Backoff does not apply.
func (p *Poller) Trigger() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	if p.inFlight {
		p.owed = true
		p.stats.CoalescedTriggers++
		return
	}
	p.startCycleLocked()
}

// Stats returns a snapshot of the poller counters.
func (p *Poller) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.stats
	s.Running = p.running
	s.InFlight = p.inFlight
	return s
}

func (p *Poller) run() {
	defer close(p.stoppedCh)

	// A flight left over from before a restart still holds the slot.
	p.mu.Lock()
	if p.inFlight {
		p.owed = true
	} else {
		p.startCycleLocked()
	}
	p.mu.Unlock()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case now := <-ticker.C:
			p.tick(now)
		}
	}
}

func (p *Poller) tick(now time.Time) {
	var (
		stuck       error
		consecutive uint64
	)

	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}

	if p.inFlight {
		if now.Sub(p.flightStart) < p.cfg.RequestTimeout {
			p.stats.SkippedTicks++
			p.mu.Unlock()
			return
		}
		// Abandon the stuck flight; its generation no longer matches so a
		// late result is dropped.
		p.inFlight = false
		p.generation++
		p.stats.ForcedClears++
		stuck = ErrStuckFlight
		p.recordFailureLocked(now, stuck)
		consecutive = p.stats.ConsecutiveFailures
	}

	if p.inBackoffLocked(now) {
		p.stats.BackoffSkips++
		p.mu.Unlock()
		p.reportFailure(stuck, consecutive)
		return
	}

	p.startCycleLocked()
	p.mu.Unlock()

	p.reportFailure(stuck, consecutive)
}

func (p *Poller) inBackoffLocked(now time.Time) bool {
	if !p.cfg.BackoffEnabled || p.stats.ConsecutiveFailures == 0 {
		return false
	}
	return now.Sub(p.stats.LastFailure) < p.backoffDelay(p.stats.ConsecutiveFailures)
}

// backoffDelay returns Interval * 2^n capped at MaxBackoff.
func (p *Poller) backoffDelay(n uint64) time.Duration {
	delay := p.cfg.Interval
	for i := uint64(0); i < n; i++ {
		delay *= 2
		if delay >= p.cfg.MaxBackoff {
			return p.cfg.MaxBackoff
		}
	}
	return delay
}

// startCycleLocked launches a fetch. Caller holds p.mu.
func (p *Poller) startCycleLocked() {
	p.generation++
	p.inFlight = true
	p.flightStart = time.Now()
	p.stats.Cycles++

	p.cycles.Add(1)
	go p.cycle(p.generation)
}

func (p *Poller) cycle(gen uint64) {
	defer p.cycles.Done()

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.RequestTimeout)
	defer cancel()

	tasks, err := p.fetcher.ListTasks(ctx)

	p.applyMu.Lock()
	if err == nil && p.isCurrent(gen) {
		p.applier.Apply(tasks)
	}
	p.applyMu.Unlock()

	now := time.Now()

	p.mu.Lock()
	if gen != p.generation || !p.inFlight {
		p.mu.Unlock()
		p.logger.Debug().Uint64("generation", gen).Msg("Discarding result of abandoned poll")
		return
	}
	p.inFlight = false

	var consecutive uint64
	if err != nil {
		p.recordFailureLocked(now, err)
		consecutive = p.stats.ConsecutiveFailures
	} else {
		p.stats.Successes++
		p.stats.ConsecutiveFailures = 0
		p.stats.LastSuccess = now
		p.stats.LastError = ""
	}

	if p.owed && p.running {
		p.owed = false
		p.startCycleLocked()
	}
	p.mu.Unlock()

	p.reportFailure(err, consecutive)
}

func (p *Poller) isCurrent(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return gen == p.generation && p.inFlight
}

func (p *Poller) recordFailureLocked(now time.Time, err error) {
	p.stats.Failures++
	p.stats.ConsecutiveFailures++
	p.stats.LastFailure = now
	p.stats.LastError = err.Error()
}

func (p *Poller) reportFailure(err error, consecutive uint64) {
	if err == nil {
		return
	}

	var failure *types.PollFailure
	if !errors.As(err, &failure) {
		err = &types.PollFailure{Err: err}
	}

	evt := p.logger.Debug()
	if consecutive > 0 && consecutive%10 == 0 {
		evt = p.logger.Warn()
	}
	evt.Err(err).Uint64("consecutiveFailures", consecutive).Msg("Poll failed")

	if p.reporter != nil {
		p.reporter.Report("poll", err)
	}
}
