// Package notify fans alerts out to operator channels (Telegram, Discord).
// Events can be filtered so operators only hear about the lifecycle changes
// they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Event types emitted by the monitor and hedge scheduler.
const (
	EventPositionOpened = "position_opened"
	EventPositionClosed = "position_closed"
	EventHedgeExecuted  = "hedge_executed"
	EventError          = "error"
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	// Name identifies the channel in logs, e.g. "telegram".
	Name() string
}

// Notifier dispatches to all configured senders. Notify applies the allowed
// event filter; NotifyAll bypasses it for messages that must always go out,
// like startup and shutdown.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	log     *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. An empty
// events list allows every event type.
func NewNotifier(senders []Sender, events []string, log *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		log:     log.With("component", "notifier"),
	}
}

// Notify delivers to all senders when the event type passes the filter.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.log.Debug("event filtered out", "event", event)
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyAll delivers to all senders regardless of event type.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// dispatch tries every sender; one channel failing does not stop delivery to
// the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var failures []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.log.Error("sender failed", "sender", s.Name(), "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.log.Debug("notification sent", "sender", s.Name(), "title", title)
	}

	if len(failures) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(failures), strings.Join(failures, "; "))
	}
	return nil
}
