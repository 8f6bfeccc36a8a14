package upload

import (
	"sync"

	"github.com/BrunoKrugel/guestshots/internal/model"
)

// Recent holds a ring buffer of the latest upload records
type Recent struct {
	records    []model.Record
	writeIndex int
	count      int
	size       int
	mu         sync.RWMutex
}

func NewRecent(size int) *Recent {
	return &Recent{
		records: make([]model.Record, size),
		size:    size,
	}
}

// Add stores rec, overwriting the oldest record once the ring is full
func (r *Recent) Add(rec model.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[r.writeIndex] = rec
	r.writeIndex = (r.writeIndex + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// Snapshot returns the stored records, oldest first
func (r *Recent) Snapshot() []model.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Record, 0, r.count)
	start := (r.writeIndex - r.count + r.size) % r.size
	for i := 0; i < r.count; i++ {
		out = append(out, r.records[(start+i)%r.size])
	}
	return out
}
