package gateway

import (
	"testing"

	"sma-vol-breakdown/internal/model"
)

func fill(b *replayBuffer, from, to int64) {
	for s := from; s <= to; s++ {
		b.push(envelope{Seq: s, Event: model.RunEvent{Type: model.EventStageStarted}})
	}
}

func TestReplayBuffer_Since(t *testing.T) {
	b := newReplayBuffer(100)
	fill(b, 1, 10)

	got := b.since(6)
	if len(got) != 4 {
		t.Fatalf("since(6): expected 4, got %d", len(got))
	}
	for i, env := range got {
		if env.Seq != int64(i)+7 {
			t.Errorf("entry[%d].Seq = %d, want %d", i, env.Seq, i+7)
		}
		if !env.Replay {
			t.Errorf("entry[%d] not marked as replay", i)
		}
	}
}

func TestReplayBuffer_EvictsOldest(t *testing.T) {
	b := newReplayBuffer(5)
	fill(b, 1, 8)

	if b.len() != 5 {
		t.Fatalf("len() = %d, want 5", b.len())
	}
	if b.oldest() != 4 {
		t.Fatalf("oldest() = %d, want 4", b.oldest())
	}
	got := b.since(0)
	if len(got) != 5 || got[0].Seq != 4 || got[4].Seq != 8 {
		t.Fatalf("since(0) = %+v", got)
	}
}

func TestReplayBuffer_Empty(t *testing.T) {
	b := newReplayBuffer(0)
	if b.capacity() != 256 {
		t.Errorf("default capacity = %d, want 256", b.capacity())
	}
	if got := b.since(0); len(got) != 0 {
		t.Fatalf("empty buffer since(0) should return nothing, got %d", len(got))
	}
	if b.oldest() != 0 {
		t.Errorf("oldest() on empty = %d", b.oldest())
	}
}

func TestReplayBuffer_PushDoesNotMarkStored(t *testing.T) {
	b := newReplayBuffer(2)
	fill(b, 1, 1)
	_ = b.since(0)
	if b.ring[0].Replay {
		t.Fatal("since must not mutate stored entries")
	}
}
