package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ritzau/translation-network/pkg/logging"
)

// ErrClosed is returned when subscribing or publishing after Close.
var ErrClosed = errors.New("publisher is closed")

// subscriberBuffer is the per-subscription channel capacity.
const subscriberBuffer = 100

// TopicConfig configures buffering behavior for a topic.
//
// Only events of the newest analysis generation seen on the topic stay
// buffered; publishing a newer generation evicts the older ones.
type TopicConfig struct {
	BufferSize int  // Number of events to buffer (0 = no buffering)
	ReplayAll  bool // Replay every buffered event instead of only the last one
}

// topic is the per-topic state. Guarded by SSEPublisher.mu.
type topic struct {
	config  TopicConfig
	subs    map[*sseSubscription]struct{}
	version int
	latest  uint64 // newest analysis generation published on the topic
	buffer  []Event
}

// keep reports whether an event stays replayable once gen is the newest
// generation. Events without a generation always do.
func keep(event Event, gen uint64) bool {
	return event.Generation == 0 || event.Generation >= gen
}

func (t *topic) record(event Event) {
	if event.Generation > t.latest {
		t.latest = event.Generation
		kept := t.buffer[:0]
		for _, e := range t.buffer {
			if keep(e, t.latest) {
				kept = append(kept, e)
			}
		}
		t.buffer = kept
	}
	if t.config.BufferSize <= 0 || !keep(event, t.latest) {
		return
	}
	t.buffer = append(t.buffer, event)
	if over := len(t.buffer) - t.config.BufferSize; over > 0 {
		t.buffer = append(t.buffer[:0], t.buffer[over:]...)
	}
}

func (t *topic) replay() []Event {
	if len(t.buffer) == 0 {
		return nil
	}
	if t.config.ReplayAll {
		return t.buffer
	}
	return t.buffer[len(t.buffer)-1:]
}

// SSEPublisher implements Publisher for Server-Sent Events clients.
type SSEPublisher struct {
	mu     sync.Mutex
	topics map[string]*topic
	closed bool
}

// NewSSEPublisher creates a publisher with no buffering on any topic.
func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{topics: make(map[string]*topic)}
}

func (p *SSEPublisher) topic(name string) *topic {
	t, ok := p.topics[name]
	if !ok {
		t = &topic{subs: make(map[*sseSubscription]struct{})}
		p.topics[name] = t
	}
	return t
}

// ConfigureTopic sets buffering configuration for a topic.
func (p *SSEPublisher) ConfigureTopic(name string, config TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic(name).config = config
}

// Subscribe registers a subscription and replays the buffered events of the
// current generation to it. Cancelling ctx closes the subscription.
func (p *SSEPublisher) Subscribe(ctx context.Context, name string) (Subscription, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}

	sub := &sseSubscription{
		topic:     name,
		events:    make(chan Event, subscriberBuffer),
		publisher: p,
	}
	t := p.topic(name)
	t.subs[sub] = struct{}{}

	// Replay under the lock so no live event overtakes it
	replayed := t.replay()
	for _, event := range replayed {
		sub.deliver(event)
	}
	p.mu.Unlock()

	if len(replayed) > 0 {
		logging.Debug("replayed events to new subscriber", "topic", name, "count", len(replayed), "generation", replayed[len(replayed)-1].Generation)
	}

	go func() {
		<-ctx.Done()
		sub.Close()
	}()
	return sub, nil
}

// Publish sends an event to every subscriber of a topic. Events of a
// superseded generation still reach live subscribers but are not buffered.
func (p *SSEPublisher) Publish(name string, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshalling %s event data: %w", name, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	t := p.topic(name)
	t.version++
	event := Event{
		Topic:      name,
		Type:       eventType,
		Data:       payload,
		Version:    t.version,
		Generation: generationOf(data),
	}
	t.record(event)

	for sub := range t.subs {
		sub.deliver(event)
	}
	return nil
}

// PublishStatus publishes an AnalysisStatus on the analysis_status topic.
func (p *SSEPublisher) PublishStatus(status AnalysisStatus) error {
	return p.Publish(TopicAnalysisStatus, status.State, status)
}

// Close shuts down the publisher and ends every subscription.
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	for _, t := range p.topics {
		for sub := range t.subs {
			close(sub.events)
		}
		clear(t.subs)
	}
	return nil
}

func (p *SSEPublisher) unsubscribe(sub *sseSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.topics[sub.topic]; ok {
		delete(t.subs, sub)
	}
}

// sseSubscription implements Subscription.
type sseSubscription struct {
	topic     string
	events    chan Event
	publisher *SSEPublisher
	closeOnce sync.Once
}

// deliver never blocks; a full subscriber loses the event.
func (s *sseSubscription) deliver(event Event) {
	select {
	case s.events <- event:
	default:
		logging.Warn("subscription channel full, dropping event", "topic", s.topic, "type", event.Type, "generation", event.Generation)
	}
}

func (s *sseSubscription) Topic() string {
	return s.topic
}

func (s *sseSubscription) Events() <-chan Event {
	return s.events
}

func (s *sseSubscription) Close() error {
	s.closeOnce.Do(func() {
		s.publisher.unsubscribe(s)
	})
	return nil
}

// WriteSSE writes one event in SSE framing, using the topic version as the
// event ID: "id: 3\ndata: {json}\n\n".
func WriteSSE(w io.Writer, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "id: %d\ndata: %s\n\n", event.Version, payload)
	return err
}
