package session

import "fmt"

// Exercise mutation operations: replace, skip, remove, and the bookkeeping
// half of ban. Each closes any open menu and appends to the change log.
// Splitting an in-progress exercise preserves already-logged work.

// ReplaceExercise swaps the exercise at index for an alternative.
//
// With no performed sets the item is replaced in place: the alternative's
// identity and load metadata, a fresh empty set list at the original count.
// With performed sets the item keeps exactly its completed sets and is marked
// done, and a new item for the alternative is inserted right after it
// carrying the remaining set budget; the active cursor advances into the new
// item.
func (s *Store) ReplaceExercise(index int, alt Alternative, reason, source string) error {
	if index < 0 || index >= len(s.Items) {
		return fmt.Errorf("exercise index %d out of range", index)
	}
	item := &s.Items[index]
	fromID := item.ID
	performed := item.performedSets()

	targetWeight := item.TargetWeight
	if alt.SuggestedWeight != nil {
		targetWeight = fmt.Sprintf("%g", *alt.SuggestedWeight)
	}

	if performed == 0 {
		count := len(item.Sets)
		s.Items[index] = SessionItem{
			ID:                  alt.ID,
			Name:                alt.Name,
			Pattern:             alt.Pattern,
			TargetSets:          count,
			TargetReps:          item.TargetReps,
			TargetWeight:        targetWeight,
			RestSeconds:         item.RestSeconds,
			LoadType:            alt.LoadType,
			RequiresWeightInput: alt.RequiresWeightInput,
			Sets:                make([]SetEntry, count),
		}
	} else {
		original := item.TargetSets
		if original < len(item.Sets) {
			original = len(item.Sets)
		}
		// Keep exactly the completed sets. Done sets need not be contiguous
		// (any set can be completed first), so compact rather than truncate.
		kept := make([]SetEntry, 0, performed)
		for _, set := range item.Sets {
			if set.Done {
				kept = append(kept, set)
			}
		}
		item.Sets = kept
		item.Done = true

		remaining := original - performed
		if remaining < 1 {
			remaining = 1
		}
		inserted := SessionItem{
			ID:                  alt.ID,
			Name:                alt.Name,
			Pattern:             alt.Pattern,
			TargetSets:          remaining,
			TargetReps:          item.TargetReps,
			TargetWeight:        targetWeight,
			RestSeconds:         item.RestSeconds,
			LoadType:            alt.LoadType,
			RequiresWeightInput: alt.RequiresWeightInput,
			Sets:                make([]SetEntry, remaining),
		}
		s.Items = append(s.Items, SessionItem{})
		copy(s.Items[index+2:], s.Items[index+1:])
		s.Items[index+1] = inserted
		s.ActiveIndex = index + 1
	}

	s.recomputeFocus()
	s.appendChange(ChangeEvent{
		Action:         ActionReplace,
		FromExerciseID: fromID,
		ToExerciseID:   alt.ID,
		Reason:         reason,
		Source:         source,
		Meta:           map[string]any{"performed_sets": performed},
	})
	s.CloseMenu()
	return nil
}

// SkipExercise marks every set done and the item skipped. A skipped item
// never carries an effort rating. The active cursor moves forward unless
// already at the last exercise.
func (s *Store) SkipExercise(index int, reason, source string) error {
	if index < 0 || index >= len(s.Items) {
		return fmt.Errorf("exercise index %d out of range", index)
	}
	item := &s.Items[index]
	for i := range item.Sets {
		item.Sets[i].Done = true
	}
	item.Skipped = true
	item.Done = true
	item.Effort = nil
	item.EffortPrompted = true

	s.appendChange(ChangeEvent{
		Action:         ActionSkip,
		FromExerciseID: item.ID,
		Reason:         reason,
		Source:         source,
	})
	if s.ActiveIndex == index && s.ActiveIndex < len(s.Items)-1 {
		s.ActiveIndex++
	}
	s.recomputeFocus()
	s.CloseMenu()
	return nil
}

// RemoveExercise splices the item out of the session entirely.
func (s *Store) RemoveExercise(index int, reason, source string) error {
	if index < 0 || index >= len(s.Items) {
		return fmt.Errorf("exercise index %d out of range", index)
	}
	removedID := s.Items[index].ID
	s.Items = append(s.Items[:index], s.Items[index+1:]...)

	s.appendChange(ChangeEvent{
		Action:         ActionRemove,
		FromExerciseID: removedID,
		Reason:         reason,
		Source:         source,
	})
	s.clampActive()
	s.recomputeFocus()
	s.CloseMenu()
	return nil
}

// RecordExclusion logs a successful ban acknowledged by the exclusion
// collaborator. Session state is otherwise untouched: the exercise stays in
// the session, only future plans are affected.
func (s *Store) RecordExclusion(index int, reason, source string) error {
	if index < 0 || index >= len(s.Items) {
		return fmt.Errorf("exercise index %d out of range", index)
	}
	s.appendChange(ChangeEvent{
		Action:         ActionExclude,
		FromExerciseID: s.Items[index].ID,
		Reason:         reason,
		Source:         source,
	})
	s.CloseMenu()
	return nil
}
