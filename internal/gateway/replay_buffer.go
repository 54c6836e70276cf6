package gateway

// replayBuffer keeps the most recent envelopes, oldest first, so clients that
// connect mid-run or reconnect with ?since=<seq> can catch up.
// It is not safe for concurrent use; the Hub guards it with its own lock.
type replayBuffer struct {
	ring  []envelope
	start int // index of the oldest entry
	n     int
}

func newReplayBuffer(capacity int) *replayBuffer {
	if capacity <= 0 {
		capacity = 256
	}
	return &replayBuffer{ring: make([]envelope, capacity)}
}

func (b *replayBuffer) push(env envelope) {
	if b.n < len(b.ring) {
		b.ring[(b.start+b.n)%len(b.ring)] = env
		b.n++
		return
	}
	b.ring[b.start] = env
	b.start = (b.start + 1) % len(b.ring)
}

// since returns the retained envelopes with Seq > seq, marked as replays.
func (b *replayBuffer) since(seq int64) []envelope {
	var out []envelope
	for i := 0; i < b.n; i++ {
		env := b.ring[(b.start+i)%len(b.ring)]
		if env.Seq > seq {
			env.Replay = true
			out = append(out, env)
		}
	}
	return out
}

// oldest returns the lowest retained sequence number, or 0 when empty.
func (b *replayBuffer) oldest() int64 {
	if b.n == 0 {
		return 0
	}
	return b.ring[b.start].Seq
}

func (b *replayBuffer) len() int { return b.n }

func (b *replayBuffer) capacity() int { return len(b.ring) }
