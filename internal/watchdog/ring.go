package watchdog

// historyRing is a fixed-capacity ring buffer of probe snapshots. Push is
// O(1); once full, the oldest entry is evicted. Not safe for concurrent use
// on its own — the orchestrator guards access with its own lock.
type historyRing struct {
	buf  []ServiceHealth
	head int // index of the oldest entry
	size int
}

func newHistoryRing(capacity int) *historyRing {
	return &historyRing{buf: make([]ServiceHealth, capacity)}
}

// push appends a snapshot, evicting the oldest entry when full.
func (r *historyRing) push(h ServiceHealth) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = h
		r.size++
		return
	}
	r.buf[r.head] = h
	r.head = (r.head + 1) % len(r.buf)
}

// latest returns the newest entry, or false if the ring is empty.
func (r *historyRing) latest() (ServiceHealth, bool) {
	if r.size == 0 {
		return ServiceHealth{}, false
	}
	return r.buf[(r.head+r.size-1)%len(r.buf)], true
}

// snapshot returns a copy of all entries, oldest first.
func (r *historyRing) snapshot() []ServiceHealth {
	out := make([]ServiceHealth, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}

func (r *historyRing) len() int { return r.size }
