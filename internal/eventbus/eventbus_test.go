package eventbus

import "testing"

func TestPublishDeliversInOrder(t *testing.T) {
	b := New()
	var order []int
	b.Subscribe(func(Event) { order = append(order, 1) })
	b.Subscribe(func(Event) { order = append(order, 2) })
	b.Publish(Event{Kind: KindObjectCreated, Type: "Point"})
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("unexpected delivery order: %v", order)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	count := 0
	sub := b.Subscribe(func(Event) { count++ })
	b.Publish(Event{Kind: KindObjectCreated})
	b.Unsubscribe(sub)
	b.Publish(Event{Kind: KindObjectCreated})
	if count != 1 {
		t.Fatalf("expected 1 delivery, got %d", count)
	}
}
