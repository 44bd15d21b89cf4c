package mqtt

import (
	"testing"
)

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(10)
	got, dropped := rb.drainAll()
	if got != nil || dropped != 0 {
		t.Errorf("expected nil from empty drain, got %d items (%d dropped)", len(got), dropped)
	}
}

func TestRingBufferDefaultCapacity(t *testing.T) {
	rb := newRingBuffer(0)
	if rb.capacity != DefaultBufferSize {
		t.Errorf("capacity: got %d, want %d", rb.capacity, DefaultBufferSize)
	}
}

func TestRingBufferPushAndDrain(t *testing.T) {
	rb := newRingBuffer(10)
	for i := 0; i < 5; i++ {
		if rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}}) {
			t.Fatalf("push %d reported a drop", i)
		}
	}

	got, _ := rb.drainAll()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := 0; i < 5; i++ {
		if got[i].payload[0] != byte(i) {
			t.Errorf("item %d: expected payload %d, got %d", i, i, got[i].payload[0])
		}
	}

	// Second drain should be empty
	if got2, _ := rb.drainAll(); got2 != nil {
		t.Errorf("expected nil from second drain, got %d items", len(got2))
	}
}

func TestRingBufferOverflow(t *testing.T) {
	capacity := 5
	rb := newRingBuffer(capacity)

	// Push capacity+3 items (0..7), buffer should keep the most recent 5 (3..7)
	firstDrops := 0
	for i := 0; i < capacity+3; i++ {
		if rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}}) {
			firstDrops++
		}
	}
	if firstDrops != 1 {
		t.Errorf("expected overflow reported once, got %d", firstDrops)
	}

	got, dropped := rb.drainAll()
	if len(got) != capacity {
		t.Fatalf("expected %d items, got %d", capacity, len(got))
	}
	if dropped != 3 {
		t.Errorf("dropped: got %d, want 3", dropped)
	}
	for i := 0; i < capacity; i++ {
		want := byte(i + 3) // oldest 3 were dropped
		if got[i].payload[0] != want {
			t.Errorf("item %d: expected payload %d, got %d", i, want, got[i].payload[0])
		}
	}

	// Overflow reporting re-arms after a drain.
	for i := 0; i < capacity+1; i++ {
		rb.push(bufferedMsg{topic: "t"})
	}
	if _, dropped := rb.drainAll(); dropped != 1 {
		t.Errorf("second cycle dropped: got %d, want 1", dropped)
	}
}

func TestRingBufferMultipleCycles(t *testing.T) {
	rb := newRingBuffer(5)

	for i := 0; i < 3; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
	if got, _ := rb.drainAll(); len(got) != 3 {
		t.Fatalf("cycle 1: expected 3 items, got %d", len(got))
	}

	for i := 10; i < 14; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
	got, _ := rb.drainAll()
	if len(got) != 4 {
		t.Fatalf("cycle 2: expected 4 items, got %d", len(got))
	}
	for i, msg := range got {
		want := byte(10 + i)
		if msg.payload[0] != want {
			t.Errorf("cycle 2 item %d: expected %d, got %d", i, want, msg.payload[0])
		}
	}
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(10)
	rb.push(bufferedMsg{
		topic:    "sleepcheck/child-1/notification",
		payload:  []byte(`{"test":true}`),
		qos:      1,
		retained: true,
	})
	if rb.len() != 1 {
		t.Errorf("expected len 1, got %d", rb.len())
	}

	got, _ := rb.drainAll()
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	if got[0].topic != "sleepcheck/child-1/notification" {
		t.Errorf("topic: got %s", got[0].topic)
	}
	if string(got[0].payload) != `{"test":true}` {
		t.Errorf("payload: got %s", got[0].payload)
	}
	if got[0].qos != 1 || !got[0].retained {
		t.Errorf("qos/retained: got %d/%v, want 1/true", got[0].qos, got[0].retained)
	}
	if rb.len() != 0 {
		t.Errorf("expected len 0 after drain, got %d", rb.len())
	}
}
