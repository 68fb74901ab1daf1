package export

import "github.com/Faultbox/prcexport/pkg/prc"

// StyleStack scopes style handles to subtrees. A pushed level starts as a
// copy of its parent, so untouched subtrees inherit the ancestor's style.
// Handles are owned by the sink; popping discards without releasing.
type StyleStack struct {
	entries []prc.StyleHandle
}

// Push opens a level inheriting the current style.
func (s *StyleStack) Push() {
	s.entries = append(s.entries, s.Current())
}

// Pop closes the innermost level. It returns false if the stack is empty.
func (s *StyleStack) Pop() bool {
	if len(s.entries) == 0 {
		return false
	}
	s.entries = s.entries[:len(s.entries)-1]
	return true
}

// SetCurrent overwrites the innermost level. No-op when empty.
func (s *StyleStack) SetCurrent(h prc.StyleHandle) {
	if len(s.entries) == 0 {
		return
	}
	s.entries[len(s.entries)-1] = h
}

// Current returns the innermost style, or prc.NoStyle when empty.
func (s *StyleStack) Current() prc.StyleHandle {
	if len(s.entries) == 0 {
		return prc.NoStyle
	}
	return s.entries[len(s.entries)-1]
}

// Depth returns the number of open levels.
func (s *StyleStack) Depth() int {
	return len(s.entries)
}
