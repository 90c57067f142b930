package engine

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
)

func TestDefaultMiddlewaresOrder(t *testing.T) {
	regs := DefaultMiddlewares()

	want := []string{"correlation_id", "log_messages", "tracer", "metrics", "recoverer"}
	if len(regs) != len(want) {
		t.Fatalf("expected %d default middlewares, got %d", len(want), len(regs))
	}
	for i, name := range want {
		if regs[i].Name != name {
			t.Errorf("middleware %d = %q, want %q", i, regs[i].Name, name)
		}
	}
}

func TestCorrelationIDMiddlewareInjectsWhenMissing(t *testing.T) {
	svc := &Service{}
	mw := svc.correlationIDMiddleware()

	var seen string
	handler := mw(func(msg *message.Message) ([]*message.Message, error) {
		seen = msg.Metadata.Get(MetadataKeyCorrelationID)
		return nil, nil
	})

	msg := message.NewMessage("uuid-1", nil)
	if _, err := handler(msg); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if seen == "" {
		t.Fatal("expected a correlation ID to be injected")
	}
}

func TestCorrelationIDMiddlewarePreservesExisting(t *testing.T) {
	svc := &Service{}
	mw := svc.correlationIDMiddleware()

	handler := mw(func(msg *message.Message) ([]*message.Message, error) {
		return nil, nil
	})

	msg := message.NewMessage("uuid-1", nil)
	msg.Metadata[MetadataKeyCorrelationID] = "existing"
	if _, err := handler(msg); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if msg.Metadata.Get(MetadataKeyCorrelationID) != "existing" {
		t.Fatal("expected the existing correlation ID to survive")
	}
}

func TestLogMessagesMiddlewarePassesThrough(t *testing.T) {
	svc := &Service{Logger: newTestLogger()}
	mw := svc.logMessagesMiddleware(svc.Logger)

	called := false
	handler := mw(func(msg *message.Message) ([]*message.Message, error) {
		called = true
		return nil, nil
	})

	if _, err := handler(message.NewMessage("uuid-1", []byte(`{}`))); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !called {
		t.Fatal("expected the wrapped handler to run")
	}
}

func TestTracerMiddlewareSetsContext(t *testing.T) {
	svc := &Service{}
	mw := svc.tracerMiddleware()

	handler := mw(func(msg *message.Message) ([]*message.Message, error) {
		if msg.Context() == nil {
			t.Fatal("expected a span context on the message")
		}
		return nil, nil
	})

	if _, err := handler(message.NewMessage("uuid-1", nil)); err != nil {
		t.Fatalf("handler: %v", err)
	}
}

func TestRegisterMiddlewareRequiresRouter(t *testing.T) {
	svc := &Service{}

	err := svc.RegisterMiddleware(MiddlewareRegistration{
		Name:       "noop",
		Middleware: func(h message.HandlerFunc) message.HandlerFunc { return h },
	})
	if err == nil {
		t.Fatal("expected error without an initialised router")
	}
}

func TestRegisterMiddlewareRequiresSource(t *testing.T) {
	pub := &testPublisher{}
	sub := &testSubscriber{}
	svc := newTestService(t, testBridgeConfig(), pub, sub)

	err := svc.RegisterMiddleware(MiddlewareRegistration{Name: "empty"})
	if err == nil {
		t.Fatal("expected error for a registration with no middleware and no builder")
	}
}

func TestMetricsMiddlewareDisabled(t *testing.T) {
	pub := &testPublisher{}
	sub := &testSubscriber{}
	svc := newTestService(t, testBridgeConfig(), pub, sub)

	// MetricsEnabled is false: the builder yields nil and registration is a
	// no-op rather than an error.
	if err := svc.RegisterMiddleware(MetricsMiddleware()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLogMessagesMiddlewareRequiresLogger(t *testing.T) {
	reg := LogMessagesMiddleware(nil)
	svc := &Service{}

	if _, err := reg.Builder(svc); err == nil {
		t.Fatal("expected error when no logger is available")
	}
}
