package clock

import (
	"context"
	"time"

	"github.com/sasha-s/go-deadlock"
)

// Ticker is the unit of work the clock drives. Tick errors are reported to
// the subscriber's OnError and never stop the clock.
type Ticker interface {
	Tick() error
}

type subscriber struct {
	id       string
	ticker   Ticker
	interval time.Duration
	lastExec time.Time
	onError  func(error)
}

type SubscriberOption func(*subscriber)

func WithInterval(interval time.Duration) SubscriberOption {
	return func(s *subscriber) {
		s.interval = interval
	}
}

func WithOnError(onError func(error)) SubscriberOption {
	return func(s *subscriber) {
		s.onError = onError
	}
}

// Clock fans a single base ticker out to many subscribers, each with its own
// effective interval.
type Clock struct {
	interval time.Duration
	ticker   *time.Ticker
	ctx      context.Context
	cancel   context.CancelFunc

	mu   deadlock.Mutex
	subs []*subscriber
}

func New(ctx context.Context, interval time.Duration) *Clock {
	ctx, cancel := context.WithCancel(ctx)
	return &Clock{
		interval: interval,
		ticker:   time.NewTicker(interval),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (c *Clock) Add(id string, ticker Ticker, opts ...SubscriberOption) {
	sub := &subscriber{id: id, ticker: ticker}
	for _, opt := range opts {
		opt(sub)
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
}

func (c *Clock) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, sub := range c.subs {
		if sub.id == id {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return
		}
	}
}

func (c *Clock) Start() {
	go c.run()
}

func (c *Clock) Stop() {
	c.cancel()
	c.ticker.Stop()
}

func (c *Clock) run() {
	for {
		select {
		case <-c.ticker.C:
			c.tick()
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Clock) tick() {
	now := time.Now()

	c.mu.Lock()
	due := make([]*subscriber, 0, len(c.subs))
	for _, sub := range c.subs {
		interval := c.interval
		if sub.interval > 0 {
			interval = sub.interval
		}
		if now.Sub(sub.lastExec) >= interval {
			sub.lastExec = now
			due = append(due, sub)
		}
	}
	c.mu.Unlock()

	for _, sub := range due {
		if err := sub.ticker.Tick(); err != nil && sub.onError != nil {
			sub.onError(err)
		}
	}
}
