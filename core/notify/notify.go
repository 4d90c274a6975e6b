package notify

import (
	"context"
	"fmt"

	"github.com/kilianp07/volunteer/core/logger"
	"github.com/kilianp07/volunteer/core/world"
)

// Category groups announcements so subscribers can filter them.
type Category string

const (
	CategoryDispatch  Category = "dispatch"
	CategoryArrived   Category = "arrived"
	CategoryAbandoned Category = "abandoned"
)

// Message is a best-effort announcement about an agent.
type Message struct {
	Text        string       `json:"text"`
	Category    Category     `json:"category"`
	Subject     world.Entity `json:"subject"`
	DisplayName string       `json:"display_name"`
}

// Notifier posts announcements to a side channel.
type Notifier interface {
	PostMessage(ctx context.Context, msg Message) error
}

// Nop discards every message.
type Nop struct{}

func (Nop) PostMessage(context.Context, Message) error { return nil }

// Post sends msg through n. A nil notifier is a no-op. Errors and panics from
// the notifier are logged and swallowed so callers never depend on delivery.
func Post(ctx context.Context, n Notifier, log logger.Logger, msg Message) {
	if n == nil {
		return
	}
	log = logger.OrNop(log)
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("notifier panic for %s: %v", msg.Category, r)
		}
	}()
	if err := n.PostMessage(ctx, msg); err != nil {
		log.Warnf("notification %s for %v failed: %v", msg.Category, msg.Subject, err)
	}
}

// Dispatched builds the announcement for a new assignment.
func Dispatched(agent world.Entity, agentName, facilityName string) Message {
	return Message{
		Text:        fmt.Sprintf("%s volunteered to help maintain %s", agentName, facilityName),
		Category:    CategoryDispatch,
		Subject:     agent,
		DisplayName: agentName,
	}
}

// Arrived builds the announcement for a completed assignment.
func Arrived(agent world.Entity, agentName, facilityName string) Message {
	return Message{
		Text:        fmt.Sprintf("%s finished cleaning up %s", agentName, facilityName),
		Category:    CategoryArrived,
		Subject:     agent,
		DisplayName: agentName,
	}
}

// Abandoned builds the announcement for a given-up assignment.
func Abandoned(agent world.Entity, agentName, facilityName, reason string) Message {
	return Message{
		Text:        fmt.Sprintf("%s gave up on %s (%s)", agentName, facilityName, reason),
		Category:    CategoryAbandoned,
		Subject:     agent,
		DisplayName: agentName,
	}
}
