package pubsub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func publishStatuses(t *testing.T, pub *SSEPublisher, generations ...uint64) {
	t.Helper()
	for _, gen := range generations {
		err := pub.PublishStatus(AnalysisStatus{State: StateReady, Generation: gen})
		if err != nil {
			t.Fatalf("Failed to publish generation %d: %v", gen, err)
		}
	}
}

func decodeStatus(t *testing.T, event Event) AnalysisStatus {
	t.Helper()
	var status AnalysisStatus
	if err := json.Unmarshal(event.Data, &status); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	return status
}

func publish(t *testing.T, pub *SSEPublisher, gen uint64, states ...string) {
	t.Helper()
	for _, state := range states {
		if err := pub.PublishStatus(AnalysisStatus{State: state, Generation: gen}); err != nil {
			t.Fatalf("Failed to publish %s for generation %d: %v", state, gen, err)
		}
	}
}

func receive(t *testing.T, sub Subscription, n int) []AnalysisStatus {
	t.Helper()
	var got []AnalysisStatus
	for len(got) < n {
		select {
		case event := <-sub.Events():
			status := decodeStatus(t, event)
			if event.Generation != status.Generation {
				t.Errorf("Event generation %d does not match payload %d", event.Generation, status.Generation)
			}
			got = append(got, status)
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout after %d of %d events", len(got), n)
		}
	}
	select {
	case event := <-sub.Events():
		t.Errorf("Received unexpected extra event %s version %d", event.Type, event.Version)
	case <-time.After(50 * time.Millisecond):
	}
	return got
}

func TestEventBuffer(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	pub.ConfigureTopic(TopicAnalysisStatus, TopicConfig{
		BufferSize: 2,
		ReplayAll:  true,
	})
	publish(t, pub, 1, StateBuilding, StateAnalyzing, StateReady)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sub, err := pub.Subscribe(ctx, TopicAnalysisStatus)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	// Should receive the last 2 statuses
	got := receive(t, sub, 2)
	if got[0].State != StateAnalyzing || got[1].State != StateReady {
		t.Errorf("Expected analyzing then ready, got %+v", got)
	}
}

func TestReplaySkipsSupersededGenerations(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	pub.ConfigureTopic(TopicAnalysisStatus, TopicConfig{
		BufferSize: 10,
		ReplayAll:  true,
	})
	publish(t, pub, 1, StateBuilding, StateAnalyzing)
	publish(t, pub, 2, StateBuilding)
	// The superseded pass reports late
	publish(t, pub, 1, StateStale)
	publish(t, pub, 2, StateAnalyzing)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sub, err := pub.Subscribe(ctx, TopicAnalysisStatus)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	got := receive(t, sub, 2)
	for i, want := range []string{StateBuilding, StateAnalyzing} {
		if got[i].Generation != 2 || got[i].State != want {
			t.Errorf("Replay %d: expected generation 2 %s, got %+v", i, want, got[i])
		}
	}

	// Live subscribers still see a late event from an old generation
	publish(t, pub, 1, StateStale)
	if late := receive(t, sub, 1); late[0].Generation != 1 || late[0].State != StateStale {
		t.Errorf("Expected the late stale status live, got %+v", late[0])
	}
}

func TestReplayLastOnlyAfterNewGeneration(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	pub.ConfigureTopic(TopicAnalysisStatus, TopicConfig{BufferSize: 5})
	publish(t, pub, 2, StateBuilding)
	publish(t, pub, 1, StateReady)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sub, err := pub.Subscribe(ctx, TopicAnalysisStatus)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	if got := receive(t, sub, 1); got[0].Generation != 2 || got[0].State != StateBuilding {
		t.Errorf("Expected generation 2 building, got %+v", got[0])
	}
}

func TestReplayLastOnly(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	pub.ConfigureTopic(TopicAnalysisStatus, TopicConfig{BufferSize: 5})
	publishStatuses(t, pub, 1, 2, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	sub, err := pub.Subscribe(ctx, TopicAnalysisStatus)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	select {
	case event := <-sub.Events():
		if event.Version != 3 {
			t.Errorf("Expected version 3, got %d", event.Version)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}

	select {
	case event := <-sub.Events():
		t.Errorf("Received unexpected extra event version %d", event.Version)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNoBuffer(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	publishStatuses(t, pub, 1, 2, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	sub, err := pub.Subscribe(ctx, TopicAnalysisStatus)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	select {
	case event := <-sub.Events():
		t.Errorf("Received unexpected replayed event version %d", event.Version)
	case <-time.After(50 * time.Millisecond):
	}

	publishStatuses(t, pub, 4)

	select {
	case event := <-sub.Events():
		if event.Version != 4 {
			t.Errorf("Expected version 4, got %d", event.Version)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for new event")
	}
}

func TestPublishAfterClose(t *testing.T) {
	pub := NewSSEPublisher()
	pub.Close()

	if err := pub.PublishStatus(AnalysisStatus{State: StateError}); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if _, err := pub.Subscribe(context.Background(), TopicGraph); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	event := Event{Topic: TopicGraph, Type: "update", Data: json.RawMessage(`{"nodes":5}`), Version: 1}
	if err := WriteSSE(&buf, event); err != nil {
		t.Fatalf("WriteSSE failed: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "id: 1\ndata: ") || !strings.HasSuffix(out, "\n\n") {
		t.Errorf("Unexpected SSE framing: %q", out)
	}
	if !strings.Contains(out, `"topic":"graph"`) {
		t.Errorf("Expected topic in payload: %q", out)
	}
}
