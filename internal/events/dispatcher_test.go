package events

import (
	"context"
	"errors"
	"testing"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher(nil)

	var created, assigned int
	d.Subscribe(EventIssueCreated, func(ctx context.Context, e Event) error {
		created++
		return nil
	})
	d.Subscribe(EventIssueCreated, func(ctx context.Context, e Event) error {
		created++
		return nil
	})
	d.Subscribe(EventIssueAssigned, func(ctx context.Context, e Event) error {
		assigned++
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventIssueCreated}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if created != 2 {
		t.Fatalf("created handlers ran %d times, want 2", created)
	}
	if assigned != 0 {
		t.Fatalf("assigned handler ran %d times, want 0", assigned)
	}
}

func TestDispatcherHandlerFailureDoesNotStopDelivery(t *testing.T) {
	var failures int
	d := NewInMemoryDispatcher(func(e Event, err error) { failures++ })

	var delivered int
	d.Subscribe(EventIssueStatusChanged, func(ctx context.Context, e Event) error {
		return errors.New("handler broke")
	})
	d.Subscribe(EventIssueStatusChanged, func(ctx context.Context, e Event) error {
		delivered++
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventIssueStatusChanged}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if delivered != 1 {
		t.Fatalf("later handler ran %d times, want 1", delivered)
	}
	if failures != 1 {
		t.Fatalf("onError observed %d failures, want 1", failures)
	}
}

func TestDispatcherNoSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	if err := d.Publish(context.Background(), Event{Type: EventIssueUpvoted}); err != nil {
		t.Fatalf("Publish without subscribers: %v", err)
	}
}
