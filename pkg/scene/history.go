package scene

import "go.uber.org/zap"

// DefaultHistoryLimit is the undo depth of a new scene.
const DefaultHistoryLimit = 200

type entry struct {
	cmd   command
	delta syncDelta
}

// History is a linear undo stack with a redo stack that any new command
// clears. The oldest entries are dropped past the limit.
type History struct {
	undo  []entry
	redo  []entry
	limit int
}

// NewHistory returns a history holding at most limit commands.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

func (h *History) push(e entry) {
	h.undo = append(h.undo, e)
	if over := len(h.undo) - h.limit; over > 0 {
		h.undo = append([]entry(nil), h.undo[over:]...)
	}
	h.redo = nil
}

// UndoCount returns the number of undoable commands.
func (h *History) UndoCount() int { return len(h.undo) }

// RedoCount returns the number of redoable commands.
func (h *History) RedoCount() int { return len(h.redo) }

// execute applies cmd, syncs derived state and records both.
func (s *Scene) execute(cmd command) {
	cmd.apply(s)
	delta := s.sync(cmd.dirty())
	s.history.push(entry{cmd: cmd, delta: delta})
	s.log.Debug("command", zap.String("op", cmd.label()), zap.Int("undo", len(s.history.undo)))
}

// Undo reverts the last command. It returns false when there is nothing
// to undo.
func (s *Scene) Undo() bool {
	h := s.history
	if len(h.undo) == 0 {
		return false
	}
	e := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	s.revert(e.delta)
	e.cmd.revert(s)
	h.redo = append(h.redo, e)
	s.log.Debug("undo", zap.String("op", e.cmd.label()))
	return true
}

// Redo re-applies the last undone command. It returns false when there is
// nothing to redo.
func (s *Scene) Redo() bool {
	h := s.history
	if len(h.redo) == 0 {
		return false
	}
	e := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	e.cmd.apply(s)
	e.delta = s.sync(e.cmd.dirty())
	h.undo = append(h.undo, e)
	s.log.Debug("redo", zap.String("op", e.cmd.label()))
	return true
}

// CanUndo reports whether Undo would do anything.
func (s *Scene) CanUndo() bool { return len(s.history.undo) > 0 }

// CanRedo reports whether Redo would do anything.
func (s *Scene) CanRedo() bool { return len(s.history.redo) > 0 }

// ClearHistory drops both stacks.
func (s *Scene) ClearHistory() {
	s.history.undo = nil
	s.history.redo = nil
}

// History returns the scene's command history.
func (s *Scene) History() *History { return s.history }
