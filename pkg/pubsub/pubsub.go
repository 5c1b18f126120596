package pubsub

import (
	"context"
	"encoding/json"
)

// Topics published by the analysis engine.
const (
	TopicAnalysisStatus = "analysis_status"
	TopicGraph          = "graph"
)

// Analysis states carried by AnalysisStatus.State.
const (
	StateBuilding  = "building"
	StateAnalyzing = "analyzing"
	StateReady     = "ready"
	StateStale     = "stale"
	StateError     = "error"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic, e.g. "analysis_status"
	Type    string          `json:"type"`    // Event type, one of the State* values for analysis_status
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Per-topic sequence number

	// Generation is the analysis generation the payload belongs to, or 0
	// for payloads that carry none.
	Generation uint64 `json:"generation,omitempty"`
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	Topic() string
	Events() <-chan Event
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic.
	// Context cancellation will close the subscription.
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data any) error

	Close() error
}

// AnalysisStatus reports the progress of one recomputation.
type AnalysisStatus struct {
	State      string `json:"state"`
	Message    string `json:"message"`
	Generation uint64 `json:"generation"` // Recompute generation the status belongs to
	Step       int    `json:"step"`
	Total      int    `json:"total"`
}

// generational payloads belong to one analysis generation.
type generational interface {
	AnalysisGeneration() uint64
}

func generationOf(data any) uint64 {
	if g, ok := data.(generational); ok {
		return g.AnalysisGeneration()
	}
	return 0
}

func (s AnalysisStatus) AnalysisGeneration() uint64 { return s.Generation }

// GraphUpdate announces a committed snapshot.
type GraphUpdate struct {
	Generation  uint64 `json:"generation"`
	Nodes       int    `json:"nodes"`
	Edges       int    `json:"edges"`
	Communities int    `json:"communities"`
	Sampled     bool   `json:"sampled"` // Betweenness was estimated
}

func (u GraphUpdate) AnalysisGeneration() uint64 { return u.Generation }
