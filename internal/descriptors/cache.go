// Package descriptors maintains the in-memory mirror of enrolled face
// descriptors used by the matcher. The cache publishes immutable snapshots:
// readers hold one generation while writers build the next and swap a pointer,
// so recognition never observes a half-updated structure.
package descriptors

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Snapshot is one immutable generation of the descriptor cache.
type Snapshot struct {
	entries  map[string]*database.StudentEntry
	loadedAt time.Time
}

// Get returns the cached entry for a student, or nil if not present.
func (s *Snapshot) Get(studentID string) *database.StudentEntry {
	return s.entries[studentID]
}

// Len returns the number of students in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// LoadedAt returns when this generation was built.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// Cache mirrors the persistent descriptor store for fast repeated matching.
type Cache struct {
	store database.StudentStore

	mu      sync.Mutex // serializes writers; readers go through current
	current atomic.Pointer[Snapshot]
	stale   atomic.Bool
}

// NewCache creates an empty cache backed by the given store.
func NewCache(store database.StudentStore) *Cache {
	return &Cache{store: store}
}

// Load fetches every active student with at least one descriptor and replaces
// the cache atomically. On failure the previous snapshot stays intact and the
// error is returned, so recognition degrades to stale data instead of an
// empty set.
func (c *Cache) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	students, err := c.store.ListActiveWithDescriptors(ctx)
	if err != nil {
		return fmt.Errorf("load descriptors: %s: %w", err, database.ErrUnavailable)
	}

	entries := make(map[string]*database.StudentEntry, len(students))
	for i := range students {
		entries[students[i].StudentID] = &students[i]
	}

	c.current.Store(&Snapshot{entries: entries, loadedAt: time.Now()})
	c.stale.Store(false)
	return nil
}

// Invalidate forces the next Snapshot call to trigger a fresh Load. Used
// after bulk enrollment changes.
func (c *Cache) Invalidate() {
	c.stale.Store(true)
}

// AddDescriptor appends a descriptor to the persistent store and then to the
// cached entry for that student, creating the entry if absent. The student
// must already exist in the store.
func (c *Cache) AddDescriptor(ctx context.Context, studentID string, descriptor database.Descriptor) error {
	if err := c.store.AppendDescriptor(ctx, studentID, descriptor); err != nil {
		return fmt.Errorf("append descriptor: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.current.Load()
	if prev == nil {
		// Nothing cached yet; the next Snapshot call loads everything.
		return nil
	}

	entry := prev.entries[studentID]
	if entry == nil {
		// Partial load for this one student.
		fetched, err := c.store.GetByID(ctx, studentID)
		if err != nil {
			return fmt.Errorf("fetch student for cache: %s: %w", err, database.ErrUnavailable)
		}
		if fetched == nil {
			return fmt.Errorf("student %s: %w", studentID, database.ErrNotFound)
		}
		if !fetched.Active {
			// The descriptor is stored, but deactivated students must
			// not become matchable through the incremental path.
			return nil
		}
		entry = fetched
	} else {
		// Copy-on-write: never mutate an entry a reader may hold.
		copied := *entry
		copied.Descriptors = append(append([]database.Descriptor(nil), entry.Descriptors...), descriptor)
		entry = &copied
	}

	entries := make(map[string]*database.StudentEntry, len(prev.entries)+1)
	for id, e := range prev.entries {
		entries[id] = e
	}
	entries[studentID] = entry

	c.current.Store(&Snapshot{entries: entries, loadedAt: prev.loadedAt})
	return nil
}

// Snapshot returns the current cache generation, loading it first if the
// cache is empty or has been invalidated. If a reload fails but an older
// generation exists, that stale snapshot is returned together with the error.
func (c *Cache) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap := c.current.Load(); snap != nil && !c.stale.Load() {
		return snap, nil
	}

	if err := c.Load(ctx); err != nil {
		if snap := c.current.Load(); snap != nil {
			return snap, err
		}
		return nil, err
	}

	return c.current.Load(), nil
}
