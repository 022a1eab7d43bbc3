package rules

import (
	"context"
	"time"
)

// EventType names an engine event.
type EventType string

const (
	RuleCompiled      EventType = "rule:compiled"
	RuleCompileFailed EventType = "rule:compile-failed"
	RuleEvaluated     EventType = "rule:evaluated"
	RegistryChanged   EventType = "registry:changed"
)

// Event describes something the engine did.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Rule      string    `json:"rule,omitempty"`
	Operators []string  `json:"operators,omitempty"`
	Result    *bool     `json:"result,omitempty"`
	Error     *string   `json:"error,omitempty"`
	Duration  *int64    `json:"duration,omitempty"` // microseconds
}

// EventCallback is invoked for every event a subscription matches.
type EventCallback func(ctx context.Context, event Event) error

// SubscriptionInfo describes an active subscription.
type SubscriptionInfo struct {
	ID          string    `json:"id"`
	Event       EventType `json:"event"`
	Label       *string   `json:"label,omitempty"`
	Unsubscribe func()    `json:"-"`
}

// SubscribeOptions configures Subscribe.
type SubscribeOptions struct {
	Event    EventType
	Label    *string
	Callback EventCallback
}

func createEvent(eventType EventType, rule string, result *bool, err error, startTime time.Time) Event {
	var duration *int64
	if !startTime.IsZero() {
		d := time.Since(startTime).Microseconds()
		duration = &d
	}
	var errStr *string
	if err != nil {
		s := err.Error()
		errStr = &s
	}
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
		Rule:      rule,
		Result:    result,
		Error:     errStr,
		Duration:  duration,
	}
}
