package app

import (
	"testing"
	"time"
)

func TestBusDeliversPerUser(t *testing.T) {
	bus := NewBus()
	chA, cancelA := bus.Subscribe("alice")
	defer cancelA()
	chB, cancelB := bus.Subscribe("bob")
	defer cancelB()

	bus.Publish(Event{Kind: EventQuizStarted, UserID: "alice", SessionID: "s1"})

	select {
	case ev := <-chA:
		if ev.Kind != EventQuizStarted || ev.SessionID != "s1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("alice never received her event")
	}

	select {
	case ev := <-chB:
		t.Fatalf("bob must not see alice's event: %+v", ev)
	default:
	}
}

func TestBusDropsOldestForSlowConsumer(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe("alice")
	defer cancel()

	for i := 0; i < 20; i++ {
		bus.Publish(Event{Kind: EventQuestionAdvanced, UserID: "alice", Payload: i})
	}

	var got []int
	for {
		select {
		case ev := <-ch:
			got = append(got, ev.Payload.(int))
			continue
		default:
		}
		break
	}
	if len(got) == 0 || len(got) > 8 {
		t.Fatalf("expected a bounded backlog, got %d events", len(got))
	}
	// the newest event survives; the oldest are dropped
	if got[len(got)-1] != 19 {
		t.Fatalf("latest event must not be dropped, tail was %d", got[len(got)-1])
	}
}

func TestBusCancelClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe("alice")
	cancel()

	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after cancel")
	}
	// double cancel and publish after cancel are harmless
	cancel()
	bus.Publish(Event{Kind: EventQuizStarted, UserID: "alice"})
}

func TestBusMultipleSubscribersSameUser(t *testing.T) {
	bus := NewBus()
	ch1, cancel1 := bus.Subscribe("alice")
	defer cancel1()
	ch2, cancel2 := bus.Subscribe("alice")
	defer cancel2()

	bus.Publish(Event{Kind: EventWalletUpdated, UserID: "alice"})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Kind != EventWalletUpdated {
				t.Fatalf("subscriber %d got %+v", i, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
	}
}
