package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kilianp07/volunteer/core/factory"
	"github.com/kilianp07/volunteer/core/world"
)

type recordLogger struct {
	warns []string
}

func (r *recordLogger) Debugf(string, ...any)         {}
func (r *recordLogger) Debugw(string, map[string]any) {}
func (r *recordLogger) Infof(string, ...any)          {}
func (r *recordLogger) Warnf(f string, _ ...any)      { r.warns = append(r.warns, f) }
func (r *recordLogger) Errorf(string, ...any)         {}

type failing struct{ err error }

func (f failing) PostMessage(context.Context, Message) error { return f.err }

type panicking struct{}

func (panicking) PostMessage(context.Context, Message) error { panic("broker gone") }

func TestPostSwallowsFailures(t *testing.T) {
	log := &recordLogger{}
	msg := Dispatched(world.Entity{Index: 1, Version: 1}, "Ada", "Central Park")
	Post(context.Background(), nil, log, msg)
	Post(context.Background(), failing{errors.New("offline")}, log, msg)
	Post(context.Background(), panicking{}, log, msg)
	if len(log.warns) != 2 {
		t.Fatalf("expected 2 warnings got %d", len(log.warns))
	}
}

func TestMessageText(t *testing.T) {
	msg := Abandoned(world.Entity{Index: 2, Version: 1}, "Bo", "Elm Park", "got_job")
	if msg.Category != CategoryAbandoned || !strings.Contains(msg.Text, "got_job") {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestFactory(t *testing.T) {
	n, err := New(factory.ModuleConfig{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := n.(Nop); !ok {
		t.Fatalf("expected Nop got %T", n)
	}
	if _, err := New(factory.ModuleConfig{Type: "pigeon"}); err == nil {
		t.Fatalf("expected unknown type error")
	}
}
