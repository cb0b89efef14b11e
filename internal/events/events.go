// Package events broadcasts reconciliation decisions to live subscribers.
// Delivery is best-effort: no acknowledgment, no queueing, and subscribers
// that connect after a publish never see it.
package events

import (
	"context"
	"strings"

	"github.com/alfredjeanlab/gatepass/internal/model"
)

// Event names, one per terminal decision.
const (
	EventMatched  = "matched"
	EventMismatch = "mismatch"
	EventInvalid  = "invalid"
)

// Names lists every event name in a stable order.
var Names = []string{EventMatched, EventMismatch, EventInvalid}

// SubjectPrefix namespaces decision events on the NATS bus.
const SubjectPrefix = "gatepass.decision."

// SubjectAll matches every decision event.
const SubjectAll = SubjectPrefix + ">"

// Subject returns the NATS subject an event name is published on.
func Subject(name string) string {
	return SubjectPrefix + name
}

// NameFromSubject reverses Subject. Subjects outside the prefix are
// returned unchanged.
func NameFromSubject(subject string) string {
	return strings.TrimPrefix(subject, SubjectPrefix)
}

// NameFor maps a decision outcome to its event name. Expired decisions are
// broadcast as invalid, matching their audit category.
func NameFor(o model.Outcome) string {
	switch o {
	case model.OutcomeMatched:
		return EventMatched
	case model.OutcomeMismatch:
		return EventMismatch
	default:
		return EventInvalid
	}
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, name string, payload any) error
	Close() error
}
