package editor

import (
	"github.com/starford/quire/internal/document"
	"github.com/starford/quire/internal/insertion"
)

// Point is a wire position: the child-index path from the root to a node
// plus an offset inside it.
type Point struct {
	Path   []int `json:"path"`
	Offset int   `json:"offset"`
}

// Selection is a wire range.
type Selection struct {
	Anchor Point `json:"anchor"`
	Focus  Point `json:"focus"`
}

// ModalState reports one generation modal.
type ModalState struct {
	Step    string `json:"step"`
	Cycle   string `json:"cycle,omitempty"`
	Pending string `json:"pending,omitempty"`
}

// State is a snapshot of a session for clients.
type State struct {
	NoteID    string                `json:"note_id"`
	Title     string                `json:"title"`
	Checksum  string                `json:"checksum"`
	Mode      string                `json:"mode"`
	Content   string                `json:"content"`
	Text      string                `json:"text"`
	Revision  uint64                `json:"revision"`
	Selection *Selection            `json:"selection,omitempty"`
	Modals    map[string]ModalState `json:"modals"`
}

// State returns the session as clients see it. While previewing Content is
// the rendered tree.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		NoteID:   s.id,
		Title:    s.title,
		Checksum: s.checksum,
		Mode:     s.preview.State().String(),
		Content:  s.doc.Serialize(),
		Text:     s.doc.Text(),
		Revision: s.doc.Revision(),
		Modals:   make(map[string]ModalState, len(insertion.Kinds)),
	}
	if r, ok := s.doc.CurrentSelection(); ok {
		st.Selection = s.wireSelection(r)
	}
	for _, k := range insertion.Kinds {
		m := ModalState{Step: s.pipeline.Step(k).String()}
		if c, ok := s.pipeline.Current(k); ok {
			m.Cycle = cycleID(c)
		}
		if res, ok := s.pipeline.Pending(k); ok {
			m.Pending = res.Content
		}
		st.Modals[string(k)] = m
	}
	return st
}

func (s *Session) wireSelection(r document.Range) *Selection {
	anchor, ok := s.wirePoint(r.Anchor)
	if !ok {
		return nil
	}
	focus, ok := s.wirePoint(r.Focus)
	if !ok {
		return nil
	}
	return &Selection{Anchor: anchor, Focus: focus}
}

func (s *Session) wirePoint(p document.Position) (Point, bool) {
	path, ok := s.doc.PathOf(p.Node)
	if !ok {
		return Point{}, false
	}
	if path == nil {
		path = []int{}
	}
	return Point{Path: path, Offset: p.Offset}, true
}
