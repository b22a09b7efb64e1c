package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/auralabs/aura-core/internal/config"
	"github.com/auralabs/aura-core/pkg/logger"
)

// Controller serializes response pipelines for one room. The lock is a flag,
// not a queue: a rejected Begin means the caller drops its segment, which
// bounds memory during rapid speech. Every async step captures the token
// returned by Begin and re-checks it before any externally-visible action.
type Controller struct {
	cfg config.TurnConfig
	log *logger.Logger

	mu            sync.Mutex
	responding    bool
	currentToken  uint64
	interrupt     bool
	lastCompleted time.Time
}

func New(cfg config.TurnConfig, log *logger.Logger) *Controller {
	return &Controller{cfg: cfg, log: log}
}

// Begin atomically acquires the room's response lock and allocates the next
// request token. Rejected when a pipeline is already in flight or the
// cooldown since the last completed response has not elapsed.
func (c *Controller) Begin(now time.Time) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.responding {
		return 0, false
	}
	cooldown := time.Duration(c.cfg.ResponseCooldownMs) * time.Millisecond
	if !c.lastCompleted.IsZero() && now.Sub(c.lastCompleted) < cooldown {
		return 0, false
	}

	c.responding = true
	c.currentToken++
	return c.currentToken, true
}

// End releases the lock if token is still current and records the completion
// time for the cooldown. Always safe to call, success or failure.
func (c *Controller) End(token uint64, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.currentToken {
		return
	}
	c.responding = false
	c.lastCompleted = now
}

// Current returns the latest issued token, 0 when none.
func (c *Controller) Current() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentToken
}

// IsCurrent is the staleness check every downstream step runs before its
// side effect. A mismatch means a newer request superseded this one and the
// result must be abandoned silently.
func (c *Controller) IsCurrent(token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return token == c.currentToken
}

// Responding reports whether a pipeline holds the lock.
func (c *Controller) Responding() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.responding
}

// Supersede bumps the token without taking the lock, invalidating every
// in-flight step of the previous request. Used on teardown.
func (c *Controller) Supersede() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentToken++
}

// Interrupt requests that playback stop. Settable at any time; only
// meaningful while the room is speaking.
func (c *Controller) Interrupt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interrupt = true
}

// ConsumeInterrupt returns and clears the interrupt flag.
func (c *Controller) ConsumeInterrupt() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	was := c.interrupt
	c.interrupt = false
	return was
}

// InterruptRequested peeks at the flag without consuming it.
func (c *Controller) InterruptRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interrupt
}

// AwaitWithFiller runs generate in the background and races it against the
// filler timer. If generation is still pending when the timer fires and the
// token is still current, onFiller runs (synchronously, so the filler
// finishes before the main response is spoken) while generation continues.
// Returns the generated text and whether a filler was played.
func (c *Controller) AwaitWithFiller(
	ctx context.Context,
	token uint64,
	generate func(ctx context.Context) (string, error),
	onFiller func(),
) (string, bool, error) {
	type genResult struct {
		text string
		err  error
	}
	resCh := make(chan genResult, 1)
	go func() {
		text, err := generate(ctx)
		resCh <- genResult{text, err}
	}()

	delay := time.Duration(c.cfg.FillerDelayMs) * time.Millisecond
	timer := time.NewTimer(delay)
	defer timer.Stop()

	fillerPlayed := false
	select {
	case res := <-resCh:
		return res.text, false, res.err
	case <-ctx.Done():
		return "", false, ctx.Err()
	case <-timer.C:
		if c.IsCurrent(token) && onFiller != nil {
			fillerPlayed = true
			onFiller()
		}
	}

	select {
	case res := <-resCh:
		return res.text, fillerPlayed, res.err
	case <-ctx.Done():
		return "", fillerPlayed, ctx.Err()
	}
}
