package eventbus

// Event represents an arbitrary event passed on the bus.
type Event interface{}

// EventBus implements a simple publish/subscribe event bus.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus is the default EventBus implementation using fan-out channels.
type Bus = TypedBus[Event]

// New creates a new Bus.
func New() *Bus { return NewTyped[Event]() }

// NewWithBuffer creates a Bus whose subscribers buffer size events each.
func NewWithBuffer(size int) *Bus { return NewTypedWithBuffer[Event](size) }

// Publish is a nil-safe helper for optional buses.
func Publish(b EventBus, e Event) {
	if b != nil {
		b.Publish(e)
	}
}
