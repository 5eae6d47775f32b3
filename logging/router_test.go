package logging_test

import (
	"context"
	"testing"
	"time"

	"craftgate/server/logging"
	"craftgate/server/logging/sinks"
)

func waitForEvents(t *testing.T, sink *sinks.MemorySink, want int) []logging.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events := sink.Events()
		if len(events) >= want {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, have %d", want, len(sink.Events()))
	return nil
}

func TestRouterForwardsToSinks(t *testing.T) {
	sink := sinks.NewMemorySink()
	router, err := logging.NewRouter(nil, logging.DefaultConfig(), []logging.NamedSink{{Name: "memory", Sink: sink}})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	defer router.Close(context.Background())

	router.Publish(context.Background(), logging.Event{
		Type:     "progression.study_granted",
		Actor:    logging.PlayerRef("alice"),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryProgression,
	})

	events := waitForEvents(t, sink, 1)
	if events[0].Type != "progression.study_granted" {
		t.Fatalf("unexpected event %+v", events[0])
	}
	if events[0].Time.IsZero() {
		t.Fatalf("router must stamp the event time")
	}
}

func TestRouterFiltersBelowMinimumSeverity(t *testing.T) {
	sink := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.SeverityWarn
	router, err := logging.NewRouter(nil, cfg, []logging.NamedSink{{Name: "memory", Sink: sink}})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	defer router.Close(context.Background())

	router.Publish(context.Background(), logging.Event{Type: "economy.points_spent", Severity: logging.SeverityInfo})
	router.Publish(context.Background(), logging.Event{Type: "progression.craft_reverted", Severity: logging.SeverityWarn})

	events := waitForEvents(t, sink, 1)
	for _, event := range events {
		if event.Severity < logging.SeverityWarn {
			t.Fatalf("info event slipped through the filter: %+v", event)
		}
	}
}

func TestRouterAttachesConfiguredFields(t *testing.T) {
	sink := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.Fields = map[string]any{"shard": "eu-1"}
	router, err := logging.NewRouter(nil, cfg, []logging.NamedSink{{Name: "memory", Sink: sink}})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	defer router.Close(context.Background())

	router.Publish(context.Background(), logging.Event{Type: "system.start", Severity: logging.SeverityInfo})

	events := waitForEvents(t, sink, 1)
	if events[0].Extra["shard"] != "eu-1" {
		t.Fatalf("configured field missing: %+v", events[0].Extra)
	}
}

func TestWithFieldsDoesNotOverrideExisting(t *testing.T) {
	var captured logging.Event
	pub := logging.WithFields(logging.PublisherFunc(func(_ context.Context, event logging.Event) {
		captured = event
	}), map[string]any{"source": "wrapper"})

	pub.Publish(context.Background(), logging.Event{
		Type:  "system.start",
		Extra: map[string]any{"source": "original"},
	})
	if captured.Extra["source"] != "original" {
		t.Fatalf("existing field overridden: %+v", captured.Extra)
	}
}
