package session

import (
	"fmt"
	"time"

	"github.com/claude/liveset/internal/plan"
)

// Value clamps for direct set edits.
const (
	maxReps   = 200
	maxWeight = 2000
)

// BlockedSet marks a set whose completion was rejected for missing values.
// Transient UI state, keyed by (exercise, set); self-clears after a fixed
// timeout and is never persisted.
type BlockedSet struct {
	Exercise int `json:"exercise"`
	Set      int `json:"set"`
}

// ToggleOutcome tells the caller which side effects a toggle requires.
type ToggleOutcome int

const (
	// ToggleNoop: the set was already done, or the index was out of range.
	ToggleNoop ToggleOutcome = iota
	// ToggleBlocked: validation failed; the blocked marker was set.
	ToggleBlocked
	// ToggleSetCompleted: a set finished but the exercise has sets left.
	ToggleSetCompleted
	// ToggleExerciseCompleted: the exercise's final set finished.
	ToggleExerciseCompleted
)

// Store is the single source of truth for session items and cursor state.
// It is a pure in-memory state machine; callers own locking and run the
// side effects (timers, prompts, persistence) its outcomes request.
type Store struct {
	Items         []SessionItem
	ActiveIndex   int
	FocusSetIndex int
	Changes       []ChangeEvent
	Menu          *MenuState
	Blocked       *BlockedSet

	now func() time.Time
}

// NewStore builds session state from a plan.
func NewStore(p *plan.Plan) *Store {
	items := make([]SessionItem, 0, len(p.Exercises))
	for _, e := range p.Exercises {
		items = append(items, newItem(e))
	}
	s := &Store{Items: items, now: time.Now}
	s.recomputeFocus()
	return s
}

// FromCheckpoint adopts a previously persisted snapshot verbatim.
func FromCheckpoint(cp *Checkpoint) *Store {
	s := &Store{
		Items:         cp.Items,
		ActiveIndex:   cp.ActiveIndex,
		FocusSetIndex: cp.FocusSetIndex,
		Changes:       cp.Changes,
		now:           time.Now,
	}
	s.clampActive()
	return s
}

// Active returns the active exercise item, or nil when the session is empty.
func (s *Store) Active() *SessionItem {
	if s.ActiveIndex < 0 || s.ActiveIndex >= len(s.Items) {
		return nil
	}
	return &s.Items[s.ActiveIndex]
}

// ToggleSetDone validates and completes a set of the active exercise.
// Toggling an already-done set is a no-op: done sets are never reverted.
func (s *Store) ToggleSetDone(setIndex int) ToggleOutcome {
	item := s.Active()
	if item == nil || setIndex < 0 || setIndex >= len(item.Sets) {
		return ToggleNoop
	}
	set := &item.Sets[setIndex]
	if set.Done {
		return ToggleNoop
	}

	if set.Reps == nil || (item.RequiresWeightInput && set.Weight == nil) {
		s.Blocked = &BlockedSet{Exercise: s.ActiveIndex, Set: setIndex}
		return ToggleBlocked
	}

	set.Done = true
	s.Blocked = nil

	// Carry this set's values into the next set if it is still blank.
	if next := setIndex + 1; next < len(item.Sets) && !item.Sets[next].HasData() {
		if set.Reps != nil {
			r := *set.Reps
			item.Sets[next].Reps = &r
		}
		if set.Weight != nil {
			w := *set.Weight
			item.Sets[next].Weight = &w
		}
	}

	item.recomputeDone()
	s.recomputeFocus()
	if item.Done {
		return ToggleExerciseCompleted
	}
	return ToggleSetCompleted
}

// ClearBlocked drops the transient blocked marker.
func (s *Store) ClearBlocked() {
	s.Blocked = nil
}

// UpdateSetValue directly edits a set's reps or weight. Field is "reps" or
// "weight"; a nil value clears the field. The done flag is untouched and the
// item's completeness is recomputed, but no timers or prompts fire.
func (s *Store) UpdateSetValue(setIndex int, field string, value *float64) error {
	item := s.Active()
	if item == nil || setIndex < 0 || setIndex >= len(item.Sets) {
		return fmt.Errorf("set index %d out of range", setIndex)
	}
	set := &item.Sets[setIndex]

	switch field {
	case "reps":
		if value == nil {
			set.Reps = nil
			break
		}
		r := int(*value)
		if r < 1 {
			r = 1
		}
		if r > maxReps {
			r = maxReps
		}
		set.Reps = &r
	case "weight":
		if value == nil {
			set.Weight = nil
			break
		}
		w := *value
		if w < 0 {
			w = 0
		}
		if w > maxWeight {
			w = maxWeight
		}
		set.Weight = &w
	default:
		return fmt.Errorf("unknown set field %q", field)
	}

	item.recomputeDone()
	return nil
}

// GoToExercise moves the active cursor, clamping into range.
func (s *Store) GoToExercise(index int) {
	if len(s.Items) == 0 {
		s.ActiveIndex = 0
		s.FocusSetIndex = 0
		return
	}
	if index < 0 {
		index = 0
	}
	if index >= len(s.Items) {
		index = len(s.Items) - 1
	}
	s.ActiveIndex = index
	s.recomputeFocus()
}

// recomputeFocus points the set cursor at the first not-done set of the
// active exercise, or the last set when all are done. Called whenever the
// active exercise or its sets change so the cursor is never stale.
func (s *Store) recomputeFocus() {
	item := s.Active()
	if item == nil || len(item.Sets) == 0 {
		s.FocusSetIndex = 0
		return
	}
	for i, set := range item.Sets {
		if !set.Done {
			s.FocusSetIndex = i
			return
		}
	}
	s.FocusSetIndex = len(item.Sets) - 1
}

func (s *Store) clampActive() {
	if len(s.Items) == 0 {
		s.ActiveIndex = 0
		s.FocusSetIndex = 0
		return
	}
	if s.ActiveIndex < 0 {
		s.ActiveIndex = 0
	}
	if s.ActiveIndex >= len(s.Items) {
		s.ActiveIndex = len(s.Items) - 1
	}
}

// OpenMenu opens a secondary surface for an exercise. At most one menu is
// open at a time; opening another replaces it.
func (s *Store) OpenMenu(index int, mode MenuMode) error {
	if !ValidMenuMode(mode) {
		return fmt.Errorf("unknown menu mode %q", mode)
	}
	if index < 0 || index >= len(s.Items) {
		return fmt.Errorf("exercise index %d out of range", index)
	}
	s.Menu = &MenuState{Index: index, Mode: mode}
	return nil
}

// CloseMenu closes any open menu.
func (s *Store) CloseMenu() {
	s.Menu = nil
}

// appendChange records an audit event, keeping only the most recent entries.
func (s *Store) appendChange(ev ChangeEvent) {
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	s.Changes = append(s.Changes, ev)
	if len(s.Changes) > maxChangeLog {
		s.Changes = s.Changes[len(s.Changes)-maxChangeLog:]
	}
}
