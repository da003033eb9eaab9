package fanoutq

// ReaderStats summarizes one reader's durable and in-memory state, for
// admin-server and metrics collaborators.
type ReaderStats struct {
	// Name is the reader's name (empty for the default reader).
	Name string
	// Head is the highest id such that it and every id below it are fully
	// consumed.
	Head uint64
	// DoneSetSize is the number of acknowledged ids above Head not yet
	// absorbed by a contiguous head advance.
	DoneSetSize int
	// QueueSize is the number of items not yet delivered to this reader.
	QueueSize int
	// OpenReadCount is the number of items delivered to this reader but
	// not yet committed or aborted.
	OpenReadCount int
}

// Stats summarizes a Queue's current state across every reader.
type Stats struct {
	// JournalBytes is the total payload bytes currently retained across
	// all writer files.
	JournalBytes int64
	// Readers is one entry per currently known reader.
	Readers []ReaderStats
}

// Stats returns a point-in-time snapshot of this Queue's state.
func (q *Queue) Stats() Stats {
	q.mu.RLock()
	readers := make([]*Reader, 0, len(q.readers))
	for _, r := range q.readers {
		readers = append(readers, r)
	}
	q.mu.RUnlock()

	out := Stats{
		JournalBytes: q.j.TotalBytes(),
		Readers:      make([]ReaderStats, 0, len(readers)),
	}
	for _, r := range readers {
		out.Readers = append(out.Readers, r.Stats())
	}
	return out
}

// Stats returns a point-in-time snapshot of this reader's state.
func (r *Reader) Stats() ReaderStats {
	jrStats := r.jr.Stats()
	r.mu.Lock()
	openCount := len(r.open)
	r.mu.Unlock()
	return ReaderStats{
		Name:          jrStats.Name,
		Head:          jrStats.Head,
		DoneSetSize:   jrStats.DoneSetSize,
		QueueSize:     r.cbq.Size(),
		OpenReadCount: openCount,
	}
}
