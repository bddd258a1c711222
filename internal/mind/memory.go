package mind

// MemoryLimit caps the event history. The ring keeps the newest
// MemoryLimit entries; older ones fall off silently.
const MemoryLimit = 32

// memoryRing stores event strings oldest-to-newest and hands out
// newest-first copies.
type memoryRing struct {
	entries []string
}

func (r *memoryRing) append(entry string) {
	r.entries = append(r.entries, entry)
	if len(r.entries) > MemoryLimit {
		r.entries = r.entries[len(r.entries)-MemoryLimit:]
	}
}

func (r *memoryRing) len() int {
	return len(r.entries)
}

// newestFirst copies the ring with the most recent entry at index 0.
func (r *memoryRing) newestFirst() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[len(r.entries)-1-i] = e
	}
	return out
}
