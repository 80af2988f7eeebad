// Package broker fans live match events out to subscribed sessions.
//
// Publishers never wait on subscribers: Publish drops the event into a
// bounded queue and a single dispatcher goroutine delivers it, which
// keeps ordering FIFO per topic. A subscriber that keeps failing its
// sends is disconnected rather than allowed to stall the feed.
package broker

import (
	"context"
	"sync"
	"time"

	"matchpulse/internal/domain/model"
	"matchpulse/pkg/logger"
	"matchpulse/pkg/metrics"
)

const defaultFailureLimit = 3

// Session is one connected subscriber. Send must be safe for
// concurrent use; the dispatcher is the only goroutine calling it for
// broadcasts, but transports may also push direct replies.
type Session interface {
	ID() string
	Username() string
	Send(e model.Event) error
}

// Broker routes published events to topic members.
type Broker struct {
	mu       sync.RWMutex
	topics   map[string]map[string]Session
	sessions map[string]map[string]struct{}
	failures map[string]int

	queue        *eventQueue
	failureLimit int
	now          func() time.Time
	log          logger.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Option configures a Broker.
type Option func(*Broker)

// WithQueueSize sets the broadcast queue capacity.
func WithQueueSize(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.queue = newEventQueue(n)
		}
	}
}

// WithFailureLimit sets how many consecutive send failures a session
// survives before it is disconnected.
func WithFailureLimit(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.failureLimit = n
		}
	}
}

// WithNow overrides the clock used for membership event timestamps.
func WithNow(now func() time.Time) Option {
	return func(b *Broker) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a broker. Call Start before publishing.
func New(opts ...Option) *Broker {
	b := &Broker{
		topics:       make(map[string]map[string]Session),
		sessions:     make(map[string]map[string]struct{}),
		failures:     make(map[string]int),
		queue:        newEventQueue(defaultQueueCapacity),
		failureLimit: defaultFailureLimit,
		now:          time.Now,
		log:          logger.Get().Named("broker"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start launches the dispatcher goroutine.
func (b *Broker) Start(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for e := range b.queue.dequeue() {
			b.dispatch(ctx, e)
			metrics.UpdateBroadcastQueueSize(b.queue.len())
		}
	}()
}

// Stop closes the queue and waits for the dispatcher to drain it.
func (b *Broker) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		b.queue.close()
	})

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.log.Warn(ctx, "dispatcher did not drain before shutdown deadline")
	}
}

// Publish hands an event to the distributor. Fire and forget: the
// caller learns nothing about delivery, and a full queue drops the
// event with a warning.
func (b *Broker) Publish(ctx context.Context, e model.Event) {
	metrics.RecordEventPublished(string(e.Kind()))
	if !b.queue.enqueue(ctx, e) {
		b.log.Warn(ctx, "broadcast queue rejected event",
			logger.String("kind", string(e.Kind())))
	}
}

// Join subscribes a session to a topic. Joining twice leaves the
// membership set unchanged but still announces USER_JOINED: every join
// request gets its acknowledgement, and it goes through the normal
// publish path so every topic member, including the joiner, sees it.
func (b *Broker) Join(ctx context.Context, s Session, topic string) {
	b.mu.Lock()
	members, ok := b.topics[topic]
	if !ok {
		members = make(map[string]Session)
		b.topics[topic] = members
	}
	if _, already := members[s.ID()]; already {
		b.mu.Unlock()
		b.Publish(ctx, model.NewUserJoined(s.Username(), topic, b.now()))
		return
	}
	members[s.ID()] = s
	if _, ok := b.sessions[s.ID()]; !ok {
		b.sessions[s.ID()] = make(map[string]struct{})
	}
	b.sessions[s.ID()][topic] = struct{}{}
	b.updateGauges()
	b.mu.Unlock()

	b.Publish(ctx, model.NewUserJoined(s.Username(), topic, b.now()))
}

// Leave unsubscribes a session from a topic. Leaving a topic the
// session never joined changes nothing in the membership set, but the
// USER_LEFT announcement is published either way. Membership is removed
// before publishing, so the leaver never sees their own departure.
func (b *Broker) Leave(ctx context.Context, s Session, topic string) {
	b.mu.Lock()
	members, ok := b.topics[topic]
	if !ok {
		b.mu.Unlock()
		b.Publish(ctx, model.NewUserLeft(s.Username(), topic, b.now()))
		return
	}
	if _, member := members[s.ID()]; !member {
		b.mu.Unlock()
		b.Publish(ctx, model.NewUserLeft(s.Username(), topic, b.now()))
		return
	}
	delete(members, s.ID())
	if len(members) == 0 {
		delete(b.topics, topic)
	}
	if topics, ok := b.sessions[s.ID()]; ok {
		delete(topics, topic)
		if len(topics) == 0 {
			delete(b.sessions, s.ID())
			delete(b.failures, s.ID())
		}
	}
	b.updateGauges()
	b.mu.Unlock()

	b.Publish(ctx, model.NewUserLeft(s.Username(), topic, b.now()))
}

// Disconnect removes a session from every topic. Safe to call for a
// session that was already removed, and safe to call repeatedly.
func (b *Broker) Disconnect(s Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnectLocked(s.ID())
}

func (b *Broker) disconnectLocked(sessionID string) {
	topics, ok := b.sessions[sessionID]
	if !ok {
		return
	}
	for topic := range topics {
		members := b.topics[topic]
		delete(members, sessionID)
		if len(members) == 0 {
			delete(b.topics, topic)
		}
	}
	delete(b.sessions, sessionID)
	delete(b.failures, sessionID)
	b.updateGauges()
}

// TopicCount returns the number of topics with at least one member.
func (b *Broker) TopicCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics)
}

// SessionCount returns the number of connected sessions with at least
// one subscription.
func (b *Broker) SessionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

// Subscribers returns the member count of one topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// dispatch delivers one event to every session subscribed to any of
// its topics. A session subscribed to several matching topics gets the
// event once. One slow or broken session never blocks the others; it
// only accumulates its own failure count.
func (b *Broker) dispatch(ctx context.Context, e model.Event) {
	b.mu.RLock()
	targets := make(map[string]Session)
	for _, topic := range e.Topics() {
		for id, s := range b.topics[topic] {
			targets[id] = s
		}
	}
	b.mu.RUnlock()

	for id, s := range targets {
		if err := s.Send(e); err != nil {
			metrics.RecordDeliveryError()
			b.recordFailure(ctx, id, s, err)
			continue
		}
		metrics.RecordEventDelivered()
		b.resetFailures(id)
	}
}

func (b *Broker) recordFailure(ctx context.Context, id string, s Session, err error) {
	b.mu.Lock()
	b.failures[id]++
	count := b.failures[id]
	if count >= b.failureLimit {
		b.disconnectLocked(id)
	}
	b.mu.Unlock()

	if count >= b.failureLimit {
		b.log.Warn(ctx, "disconnecting session after repeated send failures",
			logger.String("session_id", id),
			logger.String("username", s.Username()),
			logger.Int("failures", count),
			logger.Error(err))
		return
	}
	b.log.Debug(ctx, "session send failed",
		logger.String("session_id", id),
		logger.Int("failures", count),
		logger.Error(err))
}

func (b *Broker) resetFailures(id string) {
	b.mu.Lock()
	if b.failures[id] != 0 {
		b.failures[id] = 0
	}
	b.mu.Unlock()
}

// updateGauges refreshes session and topic gauges. Caller holds b.mu.
func (b *Broker) updateGauges() {
	metrics.UpdateSessionCount(len(b.sessions))
	metrics.UpdateTopicCount(len(b.topics))
}
