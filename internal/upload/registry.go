package upload

import "sync"

type Status string

const (
	StatusIdle      Status = "idle"
	StatusUploading Status = "uploading"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Result is the reference to a finalized object.
type Result struct {
	Key string
	URL string
}

// Item is one submitted file and its lifecycle state.
type Item struct {
	ID           string
	Name         string
	Preview      string
	ContentType  string
	Size         int64
	UsesChunking bool

	Status   Status
	Progress float64
	Result   *Result
	Error    string
}

// Patch is a partial update. Zero fields are left untouched.
type Patch struct {
	Status   Status
	Progress *float64
	Result   *Result
	Error    string
}

// Registry holds every Item by id, newest first. Each item is written only
// by its own upload goroutine, but snapshots and different items race, so
// all access goes through one lock.
type Registry struct {
	mu    sync.RWMutex
	order []string
	items map[string]*Item
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]*Item)}
}

// Insert prepends items, keeping their relative order.
func (r *Registry) Insert(items ...Item) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(items)+len(r.order))
	for i := range items {
		it := items[i]
		r.items[it.ID] = &it
		ids = append(ids, it.ID)
	}
	r.order = append(ids, r.order...)
}

func validTransition(from, to Status) bool {
	switch from {
	case StatusIdle:
		return to == StatusUploading || to == StatusError
	case StatusUploading:
		return to == StatusCompleted || to == StatusError
	}
	return false
}

// Update merges p into the item with id and reports whether anything
// changed. Terminal items are never modified, progress only moves forward
// while uploading, and a completed item carries a result but no error (an
// errored item the reverse).
func (r *Registry) Update(id string, p Patch) (Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.items[id]
	if !ok {
		return Item{}, false
	}
	if it.Status.Terminal() {
		return copyItem(it), false
	}

	changed := false
	if p.Status != "" && p.Status != it.Status {
		if !validTransition(it.Status, p.Status) {
			return copyItem(it), false
		}
		switch p.Status {
		case StatusUploading:
			it.Progress = 0
		case StatusCompleted:
			if p.Result == nil {
				return copyItem(it), false
			}
			res := *p.Result
			it.Result = &res
			it.Error = ""
			it.Progress = 100
		case StatusError:
			it.Error = p.Error
			if it.Error == "" {
				it.Error = "upload failed"
			}
			it.Result = nil
		}
		it.Status = p.Status
		changed = true
	}

	if p.Progress != nil && it.Status == StatusUploading {
		if v := clampPercent(*p.Progress); v > it.Progress {
			it.Progress = v
			changed = true
		}
	}

	return copyItem(it), changed
}

func (r *Registry) Get(id string) (Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	it, ok := r.items[id]
	if !ok {
		return Item{}, false
	}
	return copyItem(it), true
}

// Snapshot returns a copy of all items, newest first.
func (r *Registry) Snapshot() []Item {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Item, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, copyItem(r.items[id]))
	}
	return out
}

func copyItem(it *Item) Item {
	c := *it
	if it.Result != nil {
		res := *it.Result
		c.Result = &res
	}
	return c
}
