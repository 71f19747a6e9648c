package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for audit record operations.
type Repository interface {
	// Log records an audit event.
	// Returns the created record.
	Log(entry Entry) (*Record, error)

	// QueryByRoom retrieves records for a specific room, sorted by time (newest first).
	// Limit specifies the maximum number of entries to return (0 = no limit).
	QueryByRoom(roomName string, limit int) ([]*Record, error)

	// QueryByIdentity retrieves records for a specific identity, sorted by time (newest first).
	// Limit specifies the maximum number of entries to return (0 = no limit).
	QueryByIdentity(identity string, limit int) ([]*Record, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu   sync.RWMutex
	logs map[string]*Record
	// Maintain insertion order for queries
	order []string
}

// NewInMemoryRepository creates a new in-memory audit repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		logs:  make(map[string]*Record),
		order: make([]string, 0),
	}
}

// Log records an audit event.
func (r *InMemoryRepository) Log(entry Entry) (*Record, error) {
	rec := &Record{
		ID:        uuid.New().String(),
		Identity:  entry.Identity,
		RoomName:  entry.RoomName,
		Target:    entry.Target,
		Action:    entry.Action,
		Outcome:   entry.Outcome,
		CreatedAt: time.Now().UTC(),
		RequestID: entry.RequestID,
		IPAddress: entry.IPAddress,
	}

	r.mu.Lock()
	r.logs[rec.ID] = rec
	r.order = append(r.order, rec.ID)
	r.mu.Unlock()

	// Return a copy to prevent external modification
	recCopy := *rec
	return &recCopy, nil
}

// QueryByRoom retrieves records for a specific room, sorted by time (newest first).
func (r *InMemoryRepository) QueryByRoom(roomName string, limit int) ([]*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Record

	// Iterate in reverse order (newest first)
	for i := len(r.order) - 1; i >= 0; i-- {
		id := r.order[i]
		rec := r.logs[id]

		if rec.RoomName == roomName {
			recCopy := *rec
			results = append(results, &recCopy)

			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}

	return results, nil
}

// QueryByIdentity retrieves records for a specific identity, sorted by time (newest first).
func (r *InMemoryRepository) QueryByIdentity(identity string, limit int) ([]*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Record

	// Iterate in reverse order (newest first)
	for i := len(r.order) - 1; i >= 0; i-- {
		id := r.order[i]
		rec := r.logs[id]

		if rec.Identity == identity {
			recCopy := *rec
			results = append(results, &recCopy)

			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}

	return results, nil
}
