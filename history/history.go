// Package history keeps bounded linear undo/redo stacks of full annotation
// snapshots.
package history

import (
	"image"

	"github.com/wudi/pdfmark/annotation"
	"github.com/wudi/pdfmark/raster"
)

// DefaultLimit bounds the undo stack.
const DefaultLimit = 50

// Snapshot is a deep copy of the store plus the page raster at capture time.
// Snapshots never alias the live store.
type Snapshot struct {
	Annotations []annotation.Annotation
	Raster      image.Image
}

// Capture deep-copies anns and img into a snapshot.
func Capture(anns []annotation.Annotation, img image.Image) Snapshot {
	s := Snapshot{Annotations: annotation.CloneAll(anns)}
	if img != nil {
		s.Raster = raster.Clone(img)
	}
	return s
}

// Manager is the undo/redo state machine. A new checkpoint clears the redo
// stack; undo and redo at an empty boundary are no-ops.
type Manager struct {
	limit int
	undo  []Snapshot
	redo  []Snapshot
}

// NewManager returns a manager keeping at most limit checkpoints
// (DefaultLimit when limit <= 0).
func NewManager(limit int) *Manager {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Manager{limit: limit}
}

func (m *Manager) Limit() int { return m.limit }

// Checkpoint records the pre-mutation state s, evicting the oldest
// checkpoint on overflow.
func (m *Manager) Checkpoint(s Snapshot) {
	m.undo = append(m.undo, s)
	if over := len(m.undo) - m.limit; over > 0 {
		for i := 0; i < over; i++ {
			m.undo[i] = Snapshot{}
		}
		m.undo = append([]Snapshot(nil), m.undo[over:]...)
	}
	m.redo = nil
}

// Undo pushes current onto the redo stack and returns the latest checkpoint.
func (m *Manager) Undo(current Snapshot) (Snapshot, bool) {
	if len(m.undo) == 0 {
		return Snapshot{}, false
	}
	s := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, current)
	return s, true
}

// Redo is the inverse of Undo.
func (m *Manager) Redo(current Snapshot) (Snapshot, bool) {
	if len(m.redo) == 0 {
		return Snapshot{}, false
	}
	s := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = append(m.undo, current)
	if over := len(m.undo) - m.limit; over > 0 {
		m.undo = append([]Snapshot(nil), m.undo[over:]...)
	}
	return s, true
}

func (m *Manager) CanUndo() bool  { return len(m.undo) > 0 }
func (m *Manager) CanRedo() bool  { return len(m.redo) > 0 }
func (m *Manager) UndoDepth() int { return len(m.undo) }
func (m *Manager) RedoDepth() int { return len(m.redo) }

// Reset drops both stacks.
func (m *Manager) Reset() {
	m.undo = nil
	m.redo = nil
}
