package analytics

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
)

type fakePublisher struct {
	got chan *amqp.LifecycleMessage
	err error
}

func (f *fakePublisher) PublishLifecycle(_ context.Context, msg *amqp.LifecycleMessage) error {
	f.got <- msg
	return f.err
}

func TestAMQPPublishesAsync(t *testing.T) {
	pub := &fakePublisher{got: make(chan *amqp.LifecycleMessage, 1)}
	cb := AMQP(pub, "alice", slog.New(slog.NewTextHandler(io.Discard, nil)))

	cb(core.LifecycleEvent{Type: core.EventCompleted, TourID: "intro"})

	select {
	case msg := <-pub.got:
		if msg.User != "alice" || msg.Type != core.EventCompleted || msg.TourID != "intro" {
			t.Fatalf("unexpected message %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message was not published")
	}
}

func TestAMQPFailureIsLogged(t *testing.T) {
	var buf safeBuffer
	pub := &fakePublisher{got: make(chan *amqp.LifecycleMessage, 1), err: errors.New("broker down")}
	cb := AMQP(pub, "bob", slog.New(slog.NewTextHandler(&buf, nil)))

	cb(core.LifecycleEvent{Type: core.EventStarted, TourID: "intro"})
	<-pub.got

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(buf.String(), "broker down") {
		if time.Now().After(deadline) {
			t.Fatalf("failure not logged: %q", buf.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFanOut(t *testing.T) {
	var a, b []core.LifecycleEvent
	cb := FanOut(
		func(e core.LifecycleEvent) { a = append(a, e) },
		nil,
		func(e core.LifecycleEvent) { b = append(b, e) },
	)
	cb(core.LifecycleEvent{Type: core.EventDismissed, TourID: "x"})

	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("a=%d b=%d", len(a), len(b))
	}
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	cb := Log(slog.New(slog.NewTextHandler(&buf, nil)), "carol")
	cb(core.LifecycleEvent{Type: core.EventStepViewed, TourID: "intro"}.AtStep("s2", 1))

	out := buf.String()
	for _, want := range []string{"user=carol", "type=step_viewed", "step_index=1"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}
}
