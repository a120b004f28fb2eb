package annotation

import "sort"

// ChangeKind describes a store mutation.
type ChangeKind int

const (
	Added ChangeKind = iota
	Removed
	Updated
	Replaced
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Updated:
		return "updated"
	case Replaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// Change is delivered to observers after every mutation. Pages lists the
// pages whose overlay may be stale, ascending.
type Change struct {
	Kind  ChangeKind
	Pages []int
}

// Affects reports whether the change touches page.
func (c Change) Affects(page int) bool {
	for _, p := range c.Pages {
		if p == page {
			return true
		}
	}
	return false
}

// Store is the ordered annotation sequence of one document. Store order is
// paint order: later entries are drawn on top. Not safe for concurrent use.
type Store struct {
	items     []Annotation
	observers []func(Change)
}

func NewStore() *Store { return &Store{} }

// Observe registers fn to run after each mutation.
func (s *Store) Observe(fn func(Change)) {
	if fn != nil {
		s.observers = append(s.observers, fn)
	}
}

func (s *Store) notify(kind ChangeKind, pages []int) {
	c := Change{Kind: kind, Pages: pages}
	for _, fn := range s.observers {
		fn(c)
	}
}

// Add appends a. Id uniqueness is the caller's responsibility.
func (s *Store) Add(a Annotation) {
	if a == nil {
		return
	}
	s.items = append(s.items, a)
	s.notify(Added, []int{a.Base().Page})
}

// RemoveWhere drops every annotation matching pred and reports whether
// anything was removed. Observers are only notified on removal.
func (s *Store) RemoveWhere(pred func(Annotation) bool) bool {
	kept := s.items[:0]
	touched := map[int]struct{}{}
	for _, a := range s.items {
		if pred(a) {
			touched[a.Base().Page] = struct{}{}
			continue
		}
		kept = append(kept, a)
	}
	for i := len(kept); i < len(s.items); i++ {
		s.items[i] = nil
	}
	s.items = kept
	if len(touched) == 0 {
		return false
	}
	s.notify(Removed, pageList(touched))
	return true
}

// RemoveByID deletes the annotation with the given id.
func (s *Store) RemoveByID(id string) bool {
	return s.RemoveWhere(func(a Annotation) bool { return a.Base().ID == id })
}

// FindByID returns the live record with id; mutations through it are visible
// to the store. Call Touch afterwards so observers resync.
func (s *Store) FindByID(id string) (Annotation, bool) {
	for _, a := range s.items {
		if a.Base().ID == id {
			return a, true
		}
	}
	return nil, false
}

// Touch notifies observers that a was mutated in place.
func (s *Store) Touch(a Annotation) {
	if a == nil {
		return
	}
	s.notify(Updated, []int{a.Base().Page})
}

// ForPage returns the annotations of page in store order.
func (s *Store) ForPage(page int) []Annotation {
	var out []Annotation
	for _, a := range s.items {
		if a.Base().Page == page {
			out = append(out, a)
		}
	}
	return out
}

// All returns the live records in store order. The slice is a copy.
func (s *Store) All() []Annotation {
	return append([]Annotation(nil), s.items...)
}

func (s *Store) Len() int { return len(s.items) }

// Clone returns a deep copy of every record.
func (s *Store) Clone() []Annotation {
	return CloneAll(s.items)
}

// Replace swaps the whole sequence, as done by history rollback. The store
// takes ownership of items.
func (s *Store) Replace(items []Annotation) {
	touched := map[int]struct{}{}
	for _, a := range s.items {
		touched[a.Base().Page] = struct{}{}
	}
	for _, a := range items {
		touched[a.Base().Page] = struct{}{}
	}
	s.items = append([]Annotation(nil), items...)
	s.notify(Replaced, pageList(touched))
}

// Clear empties the store.
func (s *Store) Clear() { s.Replace(nil) }

// CloneAll deep-copies anns.
func CloneAll(anns []Annotation) []Annotation {
	if anns == nil {
		return nil
	}
	out := make([]Annotation, len(anns))
	for i, a := range anns {
		out[i] = a.Clone()
	}
	return out
}

// GroupByPage buckets anns by page, preserving store order within a page,
// and returns the pages ascending.
func GroupByPage(anns []Annotation) ([]int, map[int][]Annotation) {
	groups := make(map[int][]Annotation)
	for _, a := range anns {
		p := a.Base().Page
		groups[p] = append(groups[p], a)
	}
	pages := make([]int, 0, len(groups))
	for p := range groups {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages, groups
}

func pageList(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
