package events

import (
	"context"
	"testing"
	"time"
)

type change struct {
	Kind string
	Path string
}

func TestBroadcasterSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster[change]("test")

	ch1 := b.Subscribe()
	ch2 := b.Subscribe()

	if b.Count() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", b.Count())
	}

	b.Unsubscribe(ch1)
	if b.Count() != 1 {
		t.Fatalf("expected 1 subscriber after unsubscribe, got %d", b.Count())
	}

	b.Unsubscribe(ch2)
	if b.Count() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", b.Count())
	}

	// Unsubscribing twice is harmless.
	b.Unsubscribe(ch2)
}

func TestBroadcasterPublish(t *testing.T) {
	b := NewBroadcaster[change]("test")
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(change{Kind: "path", Path: "/photos/"})

	select {
	case received := <-ch:
		if received.Path != "/photos/" {
			t.Errorf("expected path /photos/, got %s", received.Path)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcasterMultipleSubscribers(t *testing.T) {
	b := NewBroadcaster[change]("test")
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	defer b.Unsubscribe(ch1)
	defer b.Unsubscribe(ch2)

	b.Publish(change{Kind: "path", Path: "/shared/"})

	for i, ch := range []chan change{ch1, ch2} {
		select {
		case received := <-ch:
			if received.Path != "/shared/" {
				t.Errorf("subscriber %d: expected /shared/, got %s", i, received.Path)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}
}

func TestBroadcasterDropsForSlowConsumer(t *testing.T) {
	b := NewBroadcaster[change]("test")
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < 100; i++ {
		b.Publish(change{Kind: "append"})
	}

	count := 0
	for {
		select {
		case <-ch:
			count++
		default:
			goto done
		}
	}
done:
	if count != DefaultBuffer {
		t.Errorf("expected %d buffered events, got %d", DefaultBuffer, count)
	}
}

func TestBroadcasterPublishWaitDelivers(t *testing.T) {
	b := NewBroadcasterSize[int]("test", 0)
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	got := make(chan []int, 1)
	go func() {
		var vals []int
		for i := 0; i < 3; i++ {
			vals = append(vals, <-ch)
		}
		got <- vals
	}()

	for i := 1; i <= 3; i++ {
		if err := b.PublishWait(context.Background(), i); err != nil {
			t.Fatalf("PublishWait(%d): %v", i, err)
		}
	}

	select {
	case vals := <-got:
		if len(vals) != 3 || vals[0] != 1 || vals[2] != 3 {
			t.Errorf("received %v, want [1 2 3]", vals)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestBroadcasterPublishWaitHonoursContext(t *testing.T) {
	b := NewBroadcasterSize[int]("test", 0)
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := b.PublishWait(ctx, 1); err == nil {
		t.Fatal("expected context error for unread subscriber")
	}
}

func TestBroadcasterUnsubscribeReleasesPublishWait(t *testing.T) {
	b := NewBroadcasterSize[int]("test", 0)
	ch := b.Subscribe()

	done := make(chan error, 1)
	go func() {
		done <- b.PublishWait(context.Background(), 1)
	}()

	time.Sleep(10 * time.Millisecond)
	b.Unsubscribe(ch)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("PublishWait: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("PublishWait stayed blocked after Unsubscribe")
	}
}

func TestBroadcasterClose(t *testing.T) {
	b := NewBroadcaster[int]("test")
	ch := b.Subscribe()
	b.Close()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after Close")
	}
	late := b.Subscribe()
	if _, ok := <-late; ok {
		t.Error("expected closed channel for subscriber after Close")
	}
	if b.Count() != 0 {
		t.Errorf("Count = %d after Close", b.Count())
	}
}
