package events

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inthisone/dashcore/internal/infrastructure/monitoring"
	"github.com/inthisone/dashcore/internal/shared/id"
	"github.com/inthisone/dashcore/internal/shared/types"
)

// Event type names carried on the wire and in metrics labels
const (
	TypeDataChanged   = "data_changed"
	TypeSourceHealth  = "source_health"
	TypeCachePressure = "cache_pressure"
	TypeWidgetStatus  = "widget_status"
)

// DefaultQueueSize bounds each subscriber's pending queue
const DefaultQueueSize = 64

// Event is the envelope delivered to subscribers
type Event struct {
	Topic   string      `json:"topic"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	Time    time.Time   `json:"time"`
}

// Subscription is a live attachment to one topic. Consumers receive from C
// until Unsubscribe closes it.
type Subscription struct {
	ID    string
	Topic string
	C     <-chan Event

	sub *subscriber
}

// Dropped reports how many events this subscription lost to queue overflow
func (s *Subscription) Dropped() uint64 {
	if s == nil || s.sub == nil {
		return 0
	}
	s.sub.mu.Lock()
	defer s.sub.mu.Unlock()
	return s.sub.dropped
}

// subscriber pairs a bounded queue with the goroutine that drains it. The
// publisher only ever touches the queue, so a consumer stuck on out never
// holds up Publish.
type subscriber struct {
	id    string
	topic string
	out   chan Event

	mu      sync.Mutex
	queue   []Event
	dropped uint64
	wake    chan struct{}
	done    chan struct{}
	cap     int
}

// push enqueues an event, evicting the oldest when full
func (s *subscriber) push(ev Event) (overflowed bool) {
	s.mu.Lock()
	if len(s.queue) >= s.cap {
		s.queue = s.queue[1:]
		s.dropped++
		overflowed = true
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return overflowed
}

// drain moves events from the queue to the consumer channel in FIFO order
func (s *subscriber) drain() {
	defer close(s.out)
	for {
		s.mu.Lock()
		var ev Event
		has := len(s.queue) > 0
		if has {
			ev = s.queue[0]
			s.queue = s.queue[1:]
		}
		s.mu.Unlock()

		if !has {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}

// Bus routes events from publishers to topic subscribers
type Bus struct {
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu     sync.RWMutex
	topics map[string]map[string]*subscriber
	closed bool
}

// New creates an event bus
func New(logger *zap.Logger, metrics *monitoring.Metrics) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger:  logger,
		metrics: metrics,
		topics:  make(map[string]map[string]*subscriber),
	}
}

// Subscribe attaches to a topic with the default queue size
func (b *Bus) Subscribe(topic string) *Subscription {
	return b.SubscribeBuffered(topic, DefaultQueueSize)
}

// SubscribeBuffered attaches to a topic with an explicit queue bound
func (b *Bus) SubscribeBuffered(topic string, queueSize int) *Subscription {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	sub := &subscriber{
		id:    id.NewSubscriptionID().String(),
		topic: topic,
		out:   make(chan Event),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
		cap:   queueSize,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.done)
		close(sub.out)
		return &Subscription{ID: sub.id, Topic: topic, C: sub.out, sub: sub}
	}
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[string]*subscriber)
		b.topics[topic] = subs
	}
	subs[sub.id] = sub
	b.mu.Unlock()

	go sub.drain()

	b.logger.Debug("subscriber attached",
		zap.String("subscription_id", sub.id),
		zap.String("topic", topic))

	return &Subscription{ID: sub.id, Topic: topic, C: sub.out, sub: sub}
}

// Unsubscribe detaches a subscription and closes its channel. Safe to call
// more than once.
func (b *Bus) Unsubscribe(subscription *Subscription) {
	if subscription == nil || subscription.sub == nil {
		return
	}

	b.mu.Lock()
	if subs, ok := b.topics[subscription.Topic]; ok {
		delete(subs, subscription.ID)
		if len(subs) == 0 {
			delete(b.topics, subscription.Topic)
		}
	}
	b.mu.Unlock()

	subscription.sub.stop()
}

func (s *subscriber) stop() {
	s.mu.Lock()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.mu.Unlock()
}

// Publish delivers an event to every subscriber of topic plus the wildcard
// audience. It never blocks: subscribers that cannot keep up lose their
// oldest queued event instead.
func (b *Bus) Publish(topic string, eventType string, payload interface{}) {
	ev := Event{
		Topic:   topic,
		Type:    eventType,
		Payload: payload,
		Time:    time.Now(),
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	targets := make([]*subscriber, 0, 4)
	for _, s := range b.topics[topic] {
		targets = append(targets, s)
	}
	if topic != types.TopicAll {
		for _, s := range b.topics[types.TopicAll] {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	b.metrics.RecordEventPublished(eventType)

	for _, s := range targets {
		if s.push(ev) {
			b.metrics.RecordEventDropped()
			b.logger.Warn("subscriber queue overflow, oldest event dropped",
				zap.String("subscription_id", s.id),
				zap.String("topic", s.topic),
				zap.String("type", eventType))
		}
	}
}

// SubscriberCount reports how many subscriptions a topic currently has
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Close detaches every subscriber and rejects further publishes
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var all []*subscriber
	for _, subs := range b.topics {
		for _, s := range subs {
			all = append(all, s)
		}
	}
	b.topics = make(map[string]map[string]*subscriber)
	b.mu.Unlock()

	for _, s := range all {
		s.stop()
	}
}
