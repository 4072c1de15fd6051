package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/liveset/internal/draft"
	"github.com/claude/liveset/internal/plan"
	"github.com/claude/liveset/internal/rest"
)

var (
	// ErrNoSession is returned when an operation arrives with no session active.
	ErrNoSession = errors.New("no active session")
	// ErrNoPlan means no plan source could be found at session start. Terminal
	// for the screen; the only recovery is navigating back to plan selection.
	ErrNoPlan = errors.New("no plan available for session")
	// ErrNoEffortPending is returned when an effort tag arrives without a
	// pending prompt.
	ErrNoEffortPending = errors.New("no effort prompt pending")
)

// blockedClearAfter is how long a blocked-set marker lives before it
// self-clears.
const blockedClearAfter = 2500 * time.Millisecond

// Excluder is the external exclusion collaborator.
type Excluder interface {
	ExcludeExercise(ctx context.Context, exerciseID, reason, source string) error
}

// StartRequest identifies the session to start or resume. A non-nil Plan
// (navigation hand-off) always wins and starts fresh; otherwise Title and
// PlannedWorkoutID select a matching draft checkpoint or cached plan.
type StartRequest struct {
	Plan             *plan.Plan `json:"plan,omitempty"`
	Title            string     `json:"title,omitempty"`
	PlannedWorkoutID string     `json:"planned_workout_id,omitempty"`
}

// View is the full UI-facing snapshot of a session.
type View struct {
	Checkpoint
	Menu          *MenuState  `json:"menu,omitempty"`
	Blocked       *BlockedSet `json:"blocked,omitempty"`
	EffortPending *int        `json:"effort_pending,omitempty"`
	Rest          rest.Status `json:"rest"`
}

// Manager drives one live workout session: it owns the store, mirrors every
// mutation into the draft store before side effects run, and wires the rest
// scheduler and effort prompt. All mutations are applied under one lock;
// there is no concurrent writer to session state.
type Manager struct {
	mu       sync.Mutex
	log      *slog.Logger
	drafts   draft.Store
	excluder Excluder
	rest     *rest.Scheduler

	store            *Store
	planTitle        string
	plannedWorkoutID string
	location         string
	startedAt        time.Time
	elapsedBase      int       // seconds accumulated before the last resume
	runningSince     time.Time // zero while paused
	sessionRPE       *int
	effortPending    *int
	blockedTimer     *time.Timer
	blockedClear     time.Duration

	now func() time.Time
}

// NewManager creates a manager persisting through drafts and banning through
// excluder.
func NewManager(drafts draft.Store, excluder Excluder, log *slog.Logger) *Manager {
	m := &Manager{
		log:          log,
		drafts:       drafts,
		excluder:     excluder,
		blockedClear: blockedClearAfter,
		now:          time.Now,
	}
	m.rest = rest.NewScheduler(log, m.onRestFinished)
	return m
}

// Rest exposes the rest scheduler for extend/skip/resync/status calls.
func (m *Manager) Rest() *rest.Scheduler {
	return m.rest
}

// Start begins or resumes a session. Hydration order: a navigation-supplied
// plan always starts fresh (and refreshes the cached snapshot); otherwise a
// draft checkpoint with matching plan identity is adopted verbatim; otherwise
// the cached plan snapshot; otherwise ErrNoPlan.
func (m *Manager) Start(ctx context.Context, req StartRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if req.Plan != nil {
		if data, err := json.Marshal(req.Plan); err == nil {
			if err := m.drafts.Save(ctx, draft.KeyCachedPlan, data); err != nil {
				m.log.Warn("caching plan snapshot failed", "error", err)
			}
		}
		m.initFromPlanLocked(req.Plan)
		m.persistLocked(ctx)
		return nil
	}

	if cp := m.loadCheckpoint(ctx); cp != nil &&
		cp.PlanTitle == req.Title && cp.PlannedWorkoutID == req.PlannedWorkoutID {
		m.adoptCheckpointLocked(cp)
		m.log.Info("session resumed from draft", "title", cp.PlanTitle, "items", len(cp.Items))
		return nil
	}

	if p := m.loadCachedPlan(ctx); p != nil {
		m.initFromPlanLocked(p)
		m.persistLocked(ctx)
		m.log.Info("session started from cached plan", "title", p.Title)
		return nil
	}

	return ErrNoPlan
}

func (m *Manager) initFromPlanLocked(p *plan.Plan) {
	m.store = NewStore(p)
	m.planTitle = p.Title
	m.plannedWorkoutID = p.PlannedWorkoutID
	m.location = p.Location
	m.startedAt = m.now()
	m.elapsedBase = 0
	m.runningSince = m.startedAt
	m.sessionRPE = nil
	m.effortPending = nil
	m.rest.Reset()
}

func (m *Manager) adoptCheckpointLocked(cp *Checkpoint) {
	m.store = FromCheckpoint(cp)
	m.planTitle = cp.PlanTitle
	m.plannedWorkoutID = cp.PlannedWorkoutID
	m.location = cp.Location
	m.startedAt = cp.StartedAt
	m.elapsedBase = cp.ElapsedSeconds
	if cp.Running {
		m.runningSince = m.now()
	} else {
		m.runningSince = time.Time{}
	}
	m.sessionRPE = cp.SessionRPE
	m.effortPending = nil
	m.rest.Reset()
}

func (m *Manager) loadCheckpoint(ctx context.Context) *Checkpoint {
	data, err := m.drafts.Load(ctx, draft.KeySessionDraft)
	if err != nil {
		m.log.Warn("loading draft checkpoint failed", "error", err)
		return nil
	}
	if data == nil {
		return nil
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		m.log.Warn("corrupt draft checkpoint discarded", "error", err)
		return nil
	}
	if cp.Version != CheckpointVersion {
		return nil
	}
	return &cp
}

func (m *Manager) loadCachedPlan(ctx context.Context) *plan.Plan {
	data, err := m.drafts.Load(ctx, draft.KeyCachedPlan)
	if err != nil || data == nil {
		return nil
	}
	var p plan.Plan
	if err := json.Unmarshal(data, &p); err != nil {
		m.log.Warn("corrupt cached plan discarded", "error", err)
		return nil
	}
	return &p
}

// ToggleSet completes a set of the active exercise. The mutation is
// persisted before its side effects (rest window, effort prompt) run.
func (m *Manager) ToggleSet(ctx context.Context, setIndex int) (ToggleOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return ToggleNoop, ErrNoSession
	}

	outcome := m.store.ToggleSetDone(setIndex)
	switch outcome {
	case ToggleBlocked:
		m.armBlockedClearLocked()
	case ToggleSetCompleted:
		m.persistLocked(ctx)
		if item := m.store.Active(); item != nil {
			m.rest.Start(item.RestSeconds)
		}
	case ToggleExerciseCompleted:
		item := m.store.Active()
		if item != nil && !item.EffortPrompted {
			item.EffortPrompted = true
			idx := m.store.ActiveIndex
			m.effortPending = &idx
		}
		m.persistLocked(ctx)
	}
	return outcome, nil
}

// armBlockedClearLocked schedules the transient blocked marker to
// self-clear, replacing any prior clear timer.
func (m *Manager) armBlockedClearLocked() {
	if m.blockedTimer != nil {
		m.blockedTimer.Stop()
	}
	m.blockedTimer = time.AfterFunc(m.blockedClear, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.store != nil {
			m.store.ClearBlocked()
		}
	})
}

// UpdateSet edits a set's reps or weight directly. No timers fire.
func (m *Manager) UpdateSet(ctx context.Context, setIndex int, field string, value *float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return ErrNoSession
	}
	if err := m.store.UpdateSetValue(setIndex, field, value); err != nil {
		return err
	}
	m.persistLocked(ctx)
	return nil
}

// GoToExercise moves the active cursor.
func (m *Manager) GoToExercise(ctx context.Context, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return ErrNoSession
	}
	m.store.GoToExercise(index)
	m.persistLocked(ctx)
	return nil
}

// OpenMenu opens the secondary surface for an exercise.
func (m *Manager) OpenMenu(index int, mode MenuMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return ErrNoSession
	}
	return m.store.OpenMenu(index, mode)
}

// CloseMenu closes any open secondary surface.
func (m *Manager) CloseMenu() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return ErrNoSession
	}
	m.store.CloseMenu()
	return nil
}

// ReplaceExercise swaps the exercise at index for alt.
func (m *Manager) ReplaceExercise(ctx context.Context, index int, alt Alternative, reason, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return ErrNoSession
	}
	if err := m.store.ReplaceExercise(index, alt, reason, source); err != nil {
		return err
	}
	m.persistLocked(ctx)
	return nil
}

// SkipExercise marks the exercise skipped.
func (m *Manager) SkipExercise(ctx context.Context, index int, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return ErrNoSession
	}
	if err := m.store.SkipExercise(index, reason, "live_session"); err != nil {
		return err
	}
	m.persistLocked(ctx)
	return nil
}

// RemoveExercise drops the exercise from the session.
func (m *Manager) RemoveExercise(ctx context.Context, index int, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return ErrNoSession
	}
	if err := m.store.RemoveExercise(index, reason, "live_session"); err != nil {
		return err
	}
	m.persistLocked(ctx)
	return nil
}

// BanExercise asks the exclusion collaborator to ban the exercise from
// future plans. On failure the session is left unchanged and the error is
// returned for an inline retry affordance; the menu stays open.
func (m *Manager) BanExercise(ctx context.Context, index int, reason string) error {
	m.mu.Lock()
	if m.store == nil {
		m.mu.Unlock()
		return ErrNoSession
	}
	if index < 0 || index >= len(m.store.Items) {
		m.mu.Unlock()
		return fmt.Errorf("exercise index %d out of range", index)
	}
	exerciseID := m.store.Items[index].ID
	m.mu.Unlock()

	if err := m.excluder.ExcludeExercise(ctx, exerciseID, reason, "live_session"); err != nil {
		return fmt.Errorf("excluding exercise: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return ErrNoSession
	}
	if err := m.store.RecordExclusion(index, reason, "live_session"); err != nil {
		return err
	}
	m.persistLocked(ctx)
	return nil
}

// SelectEffort resolves the pending effort prompt. If a next exercise
// exists it is queued as the post-rest target and a rest window sized to the
// completed exercise's configured duration starts. When no window can open
// (resting disabled, or no rest configured) the cursor advances immediately
// instead. With no next exercise nothing more happens.
func (m *Manager) SelectEffort(ctx context.Context, tag EffortTag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return ErrNoSession
	}
	if m.effortPending == nil {
		return ErrNoEffortPending
	}
	if !ValidEffort(tag) {
		return fmt.Errorf("unknown effort tag %q", tag)
	}

	idx := *m.effortPending
	m.effortPending = nil
	if idx < 0 || idx >= len(m.store.Items) {
		return nil
	}
	item := &m.store.Items[idx]
	t := tag
	item.Effort = &t
	m.persistLocked(ctx)

	if next := idx + 1; next < len(m.store.Items) {
		if m.rest.Enabled() && item.RestSeconds > 0 {
			m.rest.QueueAdvance(next)
			m.rest.Start(item.RestSeconds)
		} else {
			// No window will open, so a queued advance would never fire.
			m.store.GoToExercise(next)
			m.persistLocked(ctx)
		}
	}
	return nil
}

// onRestFinished runs when a rest window completes or is skipped.
func (m *Manager) onRestFinished(advanceTo int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil || advanceTo < 0 {
		return
	}
	m.store.GoToExercise(advanceTo)
	m.persistLocked(context.Background())
}

// SetSessionRPE records the session-level subjective-intensity rating.
func (m *Manager) SetSessionRPE(ctx context.Context, rpe int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return ErrNoSession
	}
	if rpe < 1 || rpe > 10 {
		return fmt.Errorf("session rpe %d out of range 1-10", rpe)
	}
	m.sessionRPE = &rpe
	m.persistLocked(ctx)
	return nil
}

// Pause stops the session clock.
func (m *Manager) Pause(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return ErrNoSession
	}
	if !m.runningSince.IsZero() {
		m.elapsedBase += int(m.now().Sub(m.runningSince).Seconds())
		m.runningSince = time.Time{}
	}
	m.persistLocked(ctx)
	return nil
}

// Resume restarts the session clock.
func (m *Manager) Resume(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return ErrNoSession
	}
	if m.runningSince.IsZero() {
		m.runningSince = m.now()
	}
	m.persistLocked(ctx)
	return nil
}

// Exit abandons the session: the draft is cleared and in-memory state reset.
func (m *Manager) Exit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return ErrNoSession
	}
	if err := m.drafts.Delete(ctx, draft.KeySessionDraft); err != nil {
		m.log.Warn("deleting draft on exit failed", "error", err)
	}
	m.resetLocked()
	return nil
}

// Finish resets in-memory state after a successful completion commit. The
// committer has already cleared the durable draft.
func (m *Manager) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *Manager) resetLocked() {
	if m.blockedTimer != nil {
		m.blockedTimer.Stop()
		m.blockedTimer = nil
	}
	m.rest.Reset()
	m.store = nil
	m.planTitle = ""
	m.plannedWorkoutID = ""
	m.location = ""
	m.startedAt = time.Time{}
	m.elapsedBase = 0
	m.runningSince = time.Time{}
	m.sessionRPE = nil
	m.effortPending = nil
}

// Checkpoint returns a snapshot of the session for persistence or commit.
func (m *Manager) Checkpoint() (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return nil, ErrNoSession
	}
	cp := m.checkpointLocked()
	return &cp, nil
}

// View returns the UI-facing snapshot, including transient state the
// checkpoint omits.
func (m *Manager) View() (*View, error) {
	m.mu.Lock()
	if m.store == nil {
		m.mu.Unlock()
		return nil, ErrNoSession
	}
	v := &View{
		Checkpoint: m.checkpointLocked(),
		Menu:       m.store.Menu,
		Blocked:    m.store.Blocked,
	}
	if m.effortPending != nil {
		idx := *m.effortPending
		v.EffortPending = &idx
	}
	m.mu.Unlock()
	v.Rest = m.rest.Status()
	return v, nil
}

func (m *Manager) checkpointLocked() Checkpoint {
	items := make([]SessionItem, len(m.store.Items))
	copy(items, m.store.Items)
	for i := range items {
		sets := make([]SetEntry, len(items[i].Sets))
		copy(sets, items[i].Sets)
		items[i].Sets = sets
	}
	changes := make([]ChangeEvent, len(m.store.Changes))
	copy(changes, m.store.Changes)

	return Checkpoint{
		Version:          CheckpointVersion,
		PlanTitle:        m.planTitle,
		PlannedWorkoutID: m.plannedWorkoutID,
		Location:         m.location,
		Items:            items,
		ActiveIndex:      m.store.ActiveIndex,
		FocusSetIndex:    m.store.FocusSetIndex,
		Changes:          changes,
		ElapsedSeconds:   m.elapsedLocked(),
		Running:          !m.runningSince.IsZero(),
		SessionRPE:       m.sessionRPE,
		StartedAt:        m.startedAt,
		SavedAt:          m.now(),
	}
}

func (m *Manager) elapsedLocked() int {
	elapsed := m.elapsedBase
	if !m.runningSince.IsZero() {
		elapsed += int(m.now().Sub(m.runningSince).Seconds())
	}
	return elapsed
}

// persistLocked mirrors the current state into the durable draft. A write
// failure is logged and does not fail the mutation; the next mutation will
// retry the full snapshot.
func (m *Manager) persistLocked(ctx context.Context) {
	cp := m.checkpointLocked()
	data, err := json.Marshal(cp)
	if err != nil {
		m.log.Error("marshaling draft checkpoint", "error", err)
		return
	}
	if err := m.drafts.Save(ctx, draft.KeySessionDraft, data); err != nil {
		m.log.Error("saving draft checkpoint", "error", err)
	}
}
