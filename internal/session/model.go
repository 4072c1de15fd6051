package session

import (
	"time"

	"github.com/claude/liveset/internal/plan"
)

// SetEntry is one rep/weight/done record within an exercise item. Once Done
// is true it is never reverted within a session.
type SetEntry struct {
	Reps   *int     `json:"reps,omitempty"`
	Weight *float64 `json:"weight,omitempty"`
	Done   bool     `json:"done"`
}

// HasData reports whether the set carries any logged work.
func (s SetEntry) HasData() bool {
	return s.Reps != nil || s.Weight != nil || s.Done
}

// EffortTag is a subjective post-exercise intensity rating.
type EffortTag string

const (
	EffortEasy     EffortTag = "easy"
	EffortModerate EffortTag = "moderate"
	EffortHard     EffortTag = "hard"
	EffortMax      EffortTag = "max_effort"
)

// ValidEffort reports whether t is one of the known effort tags.
func ValidEffort(t EffortTag) bool {
	switch t {
	case EffortEasy, EffortModerate, EffortHard, EffortMax:
		return true
	}
	return false
}

// SessionItem is one exercise instance within a session.
//
// Invariant: for a non-skipped item, Done holds iff every set is done. A
// skipped item always has Done=true and Effort=nil.
type SessionItem struct {
	ID                  string     `json:"id,omitempty"`
	Name                string     `json:"name"`
	Pattern             string     `json:"pattern,omitempty"`
	TargetSets          int        `json:"target_sets"`
	TargetReps          string     `json:"target_reps,omitempty"`
	TargetWeight        string     `json:"target_weight,omitempty"`
	RestSeconds         int        `json:"rest_seconds"`
	LoadType            string     `json:"load_type,omitempty"`
	RequiresWeightInput bool       `json:"requires_weight_input"`
	TechniqueNotes      string     `json:"technique_notes,omitempty"`
	Sets                []SetEntry `json:"sets"`
	Done                bool       `json:"done"`
	Skipped             bool       `json:"skipped"`
	Effort              *EffortTag `json:"effort"`
	// EffortPrompted records that the one-shot effort prompt has already been
	// armed for this item; it is never re-armed by later edits.
	EffortPrompted bool `json:"effort_prompted,omitempty"`
}

// recomputeDone refreshes Done from the set flags. Skipped items stay done.
func (it *SessionItem) recomputeDone() {
	if it.Skipped {
		it.Done = true
		return
	}
	for _, s := range it.Sets {
		if !s.Done {
			it.Done = false
			return
		}
	}
	it.Done = len(it.Sets) > 0
}

// performedSets counts completed sets. Seeded or propagated values on a
// not-done set are suggestions, not logged work.
func (it *SessionItem) performedSets() int {
	n := 0
	for _, s := range it.Sets {
		if s.Done {
			n++
		}
	}
	return n
}

// ChangeAction identifies a structural session mutation.
type ChangeAction string

const (
	ActionReplace ChangeAction = "replace"
	ActionRemove  ChangeAction = "remove"
	ActionSkip    ChangeAction = "skip"
	ActionExclude ChangeAction = "exclude"
)

// ChangeEvent is one entry of the append-only audit trail consumed by
// downstream coaching and analytics collaborators.
type ChangeEvent struct {
	Action         ChangeAction   `json:"action"`
	FromExerciseID string         `json:"from_exercise_id,omitempty"`
	ToExerciseID   string         `json:"to_exercise_id,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	Source         string         `json:"source,omitempty"`
	At             time.Time      `json:"at"`
	Meta           map[string]any `json:"meta,omitempty"`
}

// maxChangeLog caps the change log at the most recent entries.
const maxChangeLog = 120

// MenuMode selects which secondary surface is open for an exercise.
type MenuMode string

const (
	MenuRoot          MenuMode = "menu"
	MenuReplace       MenuMode = "replace"
	MenuConfirmSkip   MenuMode = "confirm_skip"
	MenuConfirmRemove MenuMode = "confirm_remove"
	MenuConfirmBan    MenuMode = "confirm_ban"
)

// ValidMenuMode reports whether m is one of the closed set of menu modes.
func ValidMenuMode(m MenuMode) bool {
	switch m {
	case MenuRoot, MenuReplace, MenuConfirmSkip, MenuConfirmRemove, MenuConfirmBan:
		return true
	}
	return false
}

// MenuState marks the single open exercise menu, if any.
type MenuState struct {
	Index int      `json:"index"`
	Mode  MenuMode `json:"mode"`
}

// Alternative is a replacement candidate for an exercise, as returned by the
// alternatives collaborator. Mirrored here so the session package does not
// depend on the remote client.
type Alternative struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Pattern             string   `json:"pattern,omitempty"`
	LoadType            string   `json:"load_type,omitempty"`
	RequiresWeightInput bool     `json:"requires_weight_input"`
	SuggestedWeight     *float64 `json:"suggested_weight,omitempty"`
	Hint                string   `json:"hint,omitempty"`
}

// Checkpoint is the serializable snapshot of full session state, written to
// the durable store after every mutation and read once at session start.
type Checkpoint struct {
	Version          int           `json:"version"`
	PlanTitle        string        `json:"plan_title"`
	PlannedWorkoutID string        `json:"planned_workout_id,omitempty"`
	Location         string        `json:"location,omitempty"`
	Items            []SessionItem `json:"items"`
	ActiveIndex      int           `json:"active_index"`
	FocusSetIndex    int           `json:"focus_set_index"`
	Changes          []ChangeEvent `json:"changes"`
	ElapsedSeconds   int           `json:"elapsed_seconds"`
	Running          bool          `json:"running"`
	SessionRPE       *int          `json:"session_rpe,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
	SavedAt          time.Time     `json:"saved_at"`
}

// CheckpointVersion guards the draft schema; a mismatch is treated as no
// checkpoint rather than migrated.
const CheckpointVersion = 1

// newItem builds a session item from a planned exercise, seeding the first
// set with default reps/weight derived from the target hints.
func newItem(e plan.Exercise) SessionItem {
	count := e.Sets
	if count < 1 {
		count = 1
	}
	sets := make([]SetEntry, count)
	sets[0].Reps = plan.DefaultReps(e.Reps)
	sets[0].Weight = plan.DefaultWeight(e.Weight)

	return SessionItem{
		ID:                  e.ID,
		Name:                e.Name,
		Pattern:             e.Pattern,
		TargetSets:          count,
		TargetReps:          e.Reps,
		TargetWeight:        e.Weight,
		RestSeconds:         e.RestSeconds,
		LoadType:            e.LoadType,
		RequiresWeightInput: e.RequiresWeightInput(),
		TechniqueNotes:      e.TechniqueNotes,
		Sets:                sets,
	}
}
