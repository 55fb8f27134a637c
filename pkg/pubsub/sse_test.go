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

func receive(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case event := <-sub.Events():
		return event
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
	return Event{}
}

func expectNone(t *testing.T, sub Subscription) {
	t.Helper()
	select {
	case event := <-sub.Events():
		t.Errorf("Received unexpected event version %d", event.Version)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStatusReplaysLatestOnly(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()
	pub.ConfigureTopic(TopicStatus, TopicConfig{BufferSize: 1})

	states := []string{StateLoading, StateDetecting, StateReady}
	for i, state := range states {
		if err := pub.Publish(TopicStatus, state, DetectionStatus{State: state, Step: i + 1, Total: 3}); err != nil {
			t.Fatalf("Failed to publish %s: %v", state, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	sub, err := pub.Subscribe(ctx, TopicStatus)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	event := receive(t, sub)
	if event.Version != 3 || event.Type != StateReady {
		t.Errorf("Expected ready at version 3, got %s at %d", event.Type, event.Version)
	}

	var status DetectionStatus
	if err := json.Unmarshal(event.Data, &status); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if status.Step != 3 || status.Total != 3 {
		t.Errorf("Unexpected status payload %+v", status)
	}

	expectNone(t, sub)
}

func TestInstancesReplayAll(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()
	pub.ConfigureTopic(TopicInstances, TopicConfig{BufferSize: 2, ReplayAll: true})

	for _, name := range []string{"api-gateway", "scatter-gather", "leader-election"} {
		if err := pub.Publish(TopicInstances, "instances_found", InstancesFound{Pattern: name, Instances: 1}); err != nil {
			t.Fatalf("Failed to publish %s: %v", name, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	sub, err := pub.Subscribe(ctx, TopicInstances)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	// Buffer keeps the last two of three
	for _, want := range []int{2, 3} {
		if event := receive(t, sub); event.Version != want {
			t.Errorf("Expected version %d, got %d", want, event.Version)
		}
	}
	expectNone(t, sub)
}

func TestClearDropsRetainedEvents(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()
	pub.ConfigureTopic(TopicInstances, TopicConfig{BufferSize: 3, ReplayAll: true})

	for _, name := range []string{"api-gateway", "scatter-gather"} {
		if err := pub.Publish(TopicInstances, "instances_found", InstancesFound{Pattern: name}); err != nil {
			t.Fatalf("Failed to publish %s: %v", name, err)
		}
	}
	pub.Clear(TopicInstances)
	pub.Clear("unknown")
	if err := pub.Publish(TopicInstances, "instances_found", InstancesFound{Pattern: "leader-election", Complete: true}); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	sub, err := pub.Subscribe(ctx, TopicInstances)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	if event := receive(t, sub); event.Version != 3 {
		t.Errorf("Expected only the event published after Clear, got version %d", event.Version)
	}
	expectNone(t, sub)
}

func TestUnbufferedTopicDeliversOnlyNewEvents(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	_ = pub.Publish(TopicStatus, StateLoading, DetectionStatus{State: StateLoading})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	sub, err := pub.Subscribe(ctx, TopicStatus)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	expectNone(t, sub)

	if err := pub.Publish(TopicStatus, StateReady, DetectionStatus{State: StateReady}); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}
	if event := receive(t, sub); event.Version != 2 {
		t.Errorf("Expected version 2, got %d", event.Version)
	}
}

func TestSubscriptionClosesWithContext(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := pub.Subscribe(ctx, TopicStatus)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	if n := pub.Subscribers(TopicStatus); n != 1 {
		t.Fatalf("Expected 1 subscriber, got %d", n)
	}

	cancel()

	deadline := time.Now().Add(time.Second)
	for pub.Subscribers(TopicStatus) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Subscription was not removed after cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Error("Expected the events channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("Events channel stayed open after cancel")
	}
}

func TestClosedPublisher(t *testing.T) {
	pub := NewSSEPublisher()

	sub, err := pub.Subscribe(context.Background(), TopicStatus)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	if err := pub.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, ok := <-sub.Events(); ok {
		t.Error("Events channel should be closed")
	}
	if err := sub.Close(); err != nil {
		t.Errorf("closing a subscription after the publisher failed: %v", err)
	}

	if err := pub.Publish(TopicStatus, StateReady, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish after Close: error = %v, want ErrClosed", err)
	}
	if _, err := pub.Subscribe(context.Background(), TopicStatus); !errors.Is(err, ErrClosed) {
		t.Errorf("Subscribe after Close: error = %v, want ErrClosed", err)
	}
}

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	event := Event{Topic: TopicStatus, Type: StateReady, Data: json.RawMessage(`{"state":"ready"}`), Version: 7}

	if err := WriteSSE(&buf, event); err != nil {
		t.Fatalf("WriteSSE() error = %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "data: {") || !strings.HasSuffix(out, "}\n\n") {
		t.Errorf("Unexpected SSE framing %q", out)
	}
	if !strings.Contains(out, `"version":7`) {
		t.Errorf("SSE payload %q is missing the version", out)
	}
}
