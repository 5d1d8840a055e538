package recorder

import (
	"sync"

	"example.com/smartroutine/internal/domain"
)

// Registry hands out one Recorder per user. Recorders keep no session state
// of their own, so registries in different processes may serve the same user.
type Registry struct {
	sink     Sink
	sessions domain.SessionRepository
	uploader domain.BlobStore
	opts     []Option

	mu        sync.Mutex
	recorders map[string]*Recorder
}

// NewRegistry constructs a Registry whose recorders share sink, sessions,
// uploader and opts.
func NewRegistry(sink Sink, sessions domain.SessionRepository, uploader domain.BlobStore, opts ...Option) *Registry {
	return &Registry{
		sink:      sink,
		sessions:  sessions,
		uploader:  uploader,
		opts:      opts,
		recorders: make(map[string]*Recorder),
	}
}

// For returns the recorder of userID, creating it on first use.
func (r *Registry) For(userID string) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recorders[userID]
	if !ok {
		rec = New(userID, r.sink, r.sessions, r.uploader, r.opts...)
		r.recorders[userID] = rec
	}
	return rec
}

// Close stops every recorder's tick goroutine.
func (r *Registry) Close() {
	r.mu.Lock()
	recs := make([]*Recorder, 0, len(r.recorders))
	for _, rec := range r.recorders {
		recs = append(recs, rec)
	}
	r.mu.Unlock()
	for _, rec := range recs {
		rec.Close()
	}
}
