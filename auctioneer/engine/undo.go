package engine

// undoEntry pairs a completed action with its explicit inverse. Reverts
// run on the worker goroutine, so they mutate state freely.
type undoEntry struct {
	label  string
	revert func() error
}

// undoStack is the bounded history of reversible actions. Pushing past the
// bound discards the oldest entry.
type undoStack struct {
	max     int
	entries []undoEntry
}

func newUndoStack(depth int) *undoStack {
	return &undoStack{max: depth}
}

func (s *undoStack) push(label string, revert func() error) {
	if len(s.entries) == s.max {
		copy(s.entries, s.entries[1:])
		s.entries = s.entries[:s.max-1]
	}
	s.entries = append(s.entries, undoEntry{label: label, revert: revert})
}

func (s *undoStack) pop() (undoEntry, bool) {
	if len(s.entries) == 0 {
		return undoEntry{}, false
	}
	e := s.entries[len(s.entries)-1]
	s.entries = s.entries[:len(s.entries)-1]
	return e, true
}

func (s *undoStack) clear() {
	s.entries = nil
}

func (s *undoStack) depth() int {
	return len(s.entries)
}
