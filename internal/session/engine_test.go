package session

import "testing"

func benchAlternative() Alternative {
	return Alternative{
		ID:                  "ex-db-press",
		Name:                "Dumbbell Press",
		Pattern:             "horizontal_push",
		LoadType:            "external",
		RequiresWeightInput: true,
		SuggestedWeight:     fp(22.5),
	}
}

// TestReplaceUntouchedExercise verifies an exercise with zero performed sets
// is replaced in place: same list position, new identity, a fresh empty set
// list of the original length.
func TestReplaceUntouchedExercise(t *testing.T) {
	s := NewStore(testPlan())
	s.OpenMenu(1, MenuReplace)

	if err := s.ReplaceExercise(1, benchAlternative(), "equipment_busy", "live_session"); err != nil {
		t.Fatal(err)
	}

	if len(s.Items) != 3 {
		t.Fatalf("item count = %d, want 3", len(s.Items))
	}
	got := s.Items[1]
	if got.ID != "ex-db-press" || got.Name != "Dumbbell Press" {
		t.Errorf("identity = %s/%s, want the alternative's", got.ID, got.Name)
	}
	if len(got.Sets) != 3 {
		t.Errorf("set count = %d, want original 3", len(got.Sets))
	}
	for i, set := range got.Sets {
		if set.HasData() {
			t.Errorf("set %d not empty: %+v", i, set)
		}
	}
	if got.TargetWeight != "22.5" {
		t.Errorf("target weight = %q, want suggested 22.5", got.TargetWeight)
	}
	if s.ActiveIndex != 0 {
		t.Errorf("active cursor moved to %d on in-place replace", s.ActiveIndex)
	}
	if s.Menu != nil {
		t.Error("menu still open after replace")
	}

	if len(s.Changes) != 1 || s.Changes[0].Action != ActionReplace {
		t.Fatalf("changes = %+v, want one replace event", s.Changes)
	}
	if s.Changes[0].FromExerciseID != "ex-ohp" || s.Changes[0].ToExerciseID != "ex-db-press" {
		t.Errorf("event ids = %s→%s", s.Changes[0].FromExerciseID, s.Changes[0].ToExerciseID)
	}
}

// TestReplaceInProgressExerciseSplits verifies replacing after 2 of 4
// completed sets truncates the original to its performed sets (marked done)
// and inserts a new item right after it with the remaining set budget.
func TestReplaceInProgressExerciseSplits(t *testing.T) {
	s := NewStore(testPlan())
	// Grow the bench to 4 sets, complete 2.
	s.Items[0].Sets = append(s.Items[0].Sets, SetEntry{})
	s.Items[0].TargetSets = 4
	s.ToggleSetDone(0)
	s.ToggleSetDone(1)

	if err := s.ReplaceExercise(0, benchAlternative(), "pain", "live_session"); err != nil {
		t.Fatal(err)
	}

	if len(s.Items) != 4 {
		t.Fatalf("item count = %d, want 4 after split", len(s.Items))
	}

	original := s.Items[0]
	if len(original.Sets) != 2 || !original.Done {
		t.Errorf("original: %d sets, done=%v; want 2 sets, done", len(original.Sets), original.Done)
	}
	if original.Sets[0].Reps == nil || *original.Sets[0].Reps != 8 {
		t.Error("logged work lost on split")
	}

	inserted := s.Items[1]
	if inserted.ID != "ex-db-press" {
		t.Errorf("inserted id = %s, want alternative", inserted.ID)
	}
	if len(inserted.Sets) != 2 {
		t.Errorf("inserted set count = %d, want remaining 2", len(inserted.Sets))
	}
	if s.ActiveIndex != 1 {
		t.Errorf("active = %d, want advanced into the new item", s.ActiveIndex)
	}
	if s.Items[2].ID != "ex-ohp" {
		t.Errorf("successor shifted wrongly: %s", s.Items[2].ID)
	}
	checkDoneInvariant(t, s)

	ev := s.Changes[len(s.Changes)-1]
	if ev.Meta["performed_sets"] != 2 {
		t.Errorf("event meta performed_sets = %v, want 2", ev.Meta["performed_sets"])
	}
}

// TestReplaceKeepsNonContiguousDoneSets verifies the split preserves logged
// work when the completed sets are not a leading prefix: completing only set
// 2 and replacing must keep that set, not the untouched seeded set 0.
func TestReplaceKeepsNonContiguousDoneSets(t *testing.T) {
	s := NewStore(testPlan())
	if err := s.UpdateSetValue(2, "reps", fp(12)); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateSetValue(2, "weight", fp(80)); err != nil {
		t.Fatal(err)
	}
	if got := s.ToggleSetDone(2); got != ToggleSetCompleted {
		t.Fatalf("toggle = %v, want ToggleSetCompleted", got)
	}

	if err := s.ReplaceExercise(0, benchAlternative(), "equipment_busy", "live_session"); err != nil {
		t.Fatal(err)
	}

	original := s.Items[0]
	if len(original.Sets) != 1 {
		t.Fatalf("kept set count = %d, want 1", len(original.Sets))
	}
	kept := original.Sets[0]
	if kept.Reps == nil || *kept.Reps != 12 || kept.Weight == nil || *kept.Weight != 80 {
		t.Errorf("kept set = %+v, want the logged 12x80 set", kept)
	}
	if !kept.Done || !original.Done {
		t.Error("kept set and item should be done")
	}
	if got := len(s.Items[1].Sets); got != 2 {
		t.Errorf("inserted set count = %d, want remaining 2", got)
	}
	checkDoneInvariant(t, s)
}

// TestReplaceFullyPerformedKeepsMinimumBudget verifies the inserted item
// always carries at least one set.
func TestReplaceFullyPerformedKeepsMinimumBudget(t *testing.T) {
	s := NewStore(testPlan())
	for i := 0; i < 3; i++ {
		s.Items[0].Sets[i].Reps = intp(8)
		s.Items[0].Sets[i].Weight = fp(60)
		s.ToggleSetDone(i)
	}

	if err := s.ReplaceExercise(0, benchAlternative(), "", ""); err != nil {
		t.Fatal(err)
	}
	if got := len(s.Items[1].Sets); got != 1 {
		t.Errorf("inserted set count = %d, want minimum 1", got)
	}
}

// TestSkipExercise verifies a skipped item is fully done with a nil effort
// and the cursor moves forward, except at the last exercise.
func TestSkipExercise(t *testing.T) {
	s := NewStore(testPlan())
	s.OpenMenu(0, MenuConfirmSkip)

	if err := s.SkipExercise(0, "fatigue", "live_session"); err != nil {
		t.Fatal(err)
	}
	item := s.Items[0]
	if !item.Skipped || !item.Done || item.Effort != nil {
		t.Errorf("skipped item = skipped %v done %v effort %v", item.Skipped, item.Done, item.Effort)
	}
	for i, set := range item.Sets {
		if !set.Done {
			t.Errorf("set %d not done after skip", i)
		}
	}
	if s.ActiveIndex != 1 {
		t.Errorf("active = %d, want advanced to 1", s.ActiveIndex)
	}
	if s.Menu != nil {
		t.Error("menu still open after skip")
	}
	checkDoneInvariant(t, s)

	// Skipping the last exercise keeps the cursor in place.
	s.GoToExercise(2)
	if err := s.SkipExercise(2, "", ""); err != nil {
		t.Fatal(err)
	}
	if s.ActiveIndex != 2 {
		t.Errorf("active = %d, want unchanged 2 at the end", s.ActiveIndex)
	}
}

// TestRemoveExercise verifies removal splices the item out and clamps the
// cursor into range.
func TestRemoveExercise(t *testing.T) {
	s := NewStore(testPlan())
	s.GoToExercise(2)

	if err := s.RemoveExercise(2, "no_equipment", "live_session"); err != nil {
		t.Fatal(err)
	}
	if len(s.Items) != 2 {
		t.Fatalf("item count = %d, want 2", len(s.Items))
	}
	if s.ActiveIndex != 1 {
		t.Errorf("active = %d, want clamped 1", s.ActiveIndex)
	}
	if s.Changes[len(s.Changes)-1].FromExerciseID != "ex-pushup" {
		t.Errorf("remove event id = %s", s.Changes[len(s.Changes)-1].FromExerciseID)
	}
}

// TestRecordExclusion verifies a successful ban appends an exclude event and
// leaves the item list untouched.
func TestRecordExclusion(t *testing.T) {
	s := NewStore(testPlan())
	s.OpenMenu(1, MenuConfirmBan)

	if err := s.RecordExclusion(1, "joint_pain", "live_session"); err != nil {
		t.Fatal(err)
	}
	if len(s.Items) != 3 {
		t.Errorf("item count changed: %d", len(s.Items))
	}
	ev := s.Changes[len(s.Changes)-1]
	if ev.Action != ActionExclude || ev.FromExerciseID != "ex-ohp" {
		t.Errorf("event = %+v, want exclude of ex-ohp", ev)
	}
	if s.Menu != nil {
		t.Error("menu still open after exclusion")
	}
}
