package state

// cachedValue is the dirty view of a single key. A nil value with deleted set
// marks a pending removal.
type cachedValue struct {
	value   []byte
	deleted bool
}

// journalEntry records the cache state of a key before it was modified so the
// change can be undone by RevertToSnapshot.
type journalEntry struct {
	key     string
	prev    cachedValue
	hadPrev bool
}

type journal struct {
	entries []journalEntry
}

func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
}

func (j *journal) length() int {
	return len(j.entries)
}

// revert undoes every entry recorded after the provided index, newest first.
func (j *journal) revert(dirty map[string]cachedValue, index int) {
	for i := len(j.entries) - 1; i >= index; i-- {
		entry := j.entries[i]
		if entry.hadPrev {
			dirty[entry.key] = entry.prev
		} else {
			delete(dirty, entry.key)
		}
	}
	j.entries = j.entries[:index]
}

func (j *journal) reset() {
	j.entries = j.entries[:0]
}
