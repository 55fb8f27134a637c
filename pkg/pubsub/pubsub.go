package pubsub

import (
	"context"
	"encoding/json"
)

// Topics published by the detection runner
const (
	TopicStatus    = "detection_status"
	TopicInstances = "pattern_instances"
)

// Status states, in the order a run goes through them
const (
	StateLoading   = "loading"
	StateDetecting = "detecting"
	StateReady     = "ready"
	StateFailed    = "failed"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // e.g. "detection_status"
	Type    string          `json:"type"`    // e.g. "detecting", "instances_found"
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Per-topic sequence number
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
	// Context cancellation closes the subscription.
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	Publish(topic string, eventType string, data interface{}) error

	Close() error
}

// DetectionStatus is the payload of TopicStatus events
type DetectionStatus struct {
	State   string `json:"state"`
	Message string `json:"message"`
	Step    int    `json:"step"`  // 1-based
	Total   int    `json:"total"` // Total number of steps
}

// InstancesFound is the payload of TopicInstances events, one per pattern kind
type InstancesFound struct {
	Pattern   string `json:"pattern"`
	Instances int    `json:"instances"`
	Error     string `json:"error,omitempty"`
	Complete  bool   `json:"complete"` // True on the last pattern of a run
}
