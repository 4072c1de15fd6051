// Package commit finalizes a session: it builds the immutable finalize
// payload, invokes the save collaborator, mirrors the result into local
// history, and signals dependent surfaces.
package commit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/liveset/internal/draft"
	"github.com/claude/liveset/internal/notify"
	"github.com/claude/liveset/internal/remote"
	"github.com/claude/liveset/internal/session"
)

// SetRecord is one logged set in the finalize payload. Only sets with any
// reps or weight recorded are included.
type SetRecord struct {
	Reps   *int     `json:"reps,omitempty"`
	Weight *float64 `json:"weight,omitempty"`
	Done   bool     `json:"done"`
}

// ExerciseRecord is one exercise in the finalize payload.
type ExerciseRecord struct {
	ID           string             `json:"id,omitempty"`
	Name         string             `json:"name"`
	Pattern      string             `json:"pattern,omitempty"`
	TargetSets   int                `json:"target_sets"`
	TargetReps   string             `json:"target_reps,omitempty"`
	TargetWeight string             `json:"target_weight,omitempty"`
	Done         bool               `json:"done"`
	Skipped      bool               `json:"skipped"`
	Effort       *session.EffortTag `json:"effort"`
	Sets         []SetRecord        `json:"sets"`
}

// Payload is the immutable record submitted to the save collaborator, also
// mirrored into local history for offline review.
type Payload struct {
	Title           string                `json:"title"`
	Location        string                `json:"location,omitempty"`
	DurationMinutes int                   `json:"duration_minutes"`
	StartedAt       time.Time             `json:"started_at"`
	ElapsedSeconds  int                   `json:"elapsed_seconds"`
	SessionRPE      *int                  `json:"session_rpe,omitempty"`
	Exercises       []ExerciseRecord      `json:"exercises"`
	Changes         []session.ChangeEvent `json:"changes"`
}

// BuildPayload assembles the finalize payload from a session checkpoint,
// keeping only sets that carry logged work.
func BuildPayload(cp *session.Checkpoint, durationMinutes int, startedAt time.Time) Payload {
	exercises := make([]ExerciseRecord, 0, len(cp.Items))
	for _, item := range cp.Items {
		rec := ExerciseRecord{
			ID:           item.ID,
			Name:         item.Name,
			Pattern:      item.Pattern,
			TargetSets:   item.TargetSets,
			TargetReps:   item.TargetReps,
			TargetWeight: item.TargetWeight,
			Done:         item.Done,
			Skipped:      item.Skipped,
			Effort:       item.Effort,
		}
		for _, set := range item.Sets {
			if set.Reps == nil && set.Weight == nil {
				continue
			}
			rec.Sets = append(rec.Sets, SetRecord{Reps: set.Reps, Weight: set.Weight, Done: set.Done})
		}
		exercises = append(exercises, rec)
	}

	return Payload{
		Title:           cp.PlanTitle,
		Location:        cp.Location,
		DurationMinutes: durationMinutes,
		StartedAt:       startedAt,
		ElapsedSeconds:  cp.ElapsedSeconds,
		SessionRPE:      cp.SessionRPE,
		Exercises:       exercises,
		Changes:         cp.Changes,
	}
}

// Saver is the external save collaborator.
type Saver interface {
	SaveSession(ctx context.Context, payload any) (remote.SaveResult, error)
}

// HistoryAppender records committed sessions locally.
type HistoryAppender interface {
	AppendHistory(ctx context.Context, rec draft.HistoryRecord) error
}

// Committer runs the commit step. It is re-entrant safe: the payload is
// built once per session, and a retry after a failed save reuses the same
// payload, so no partial or duplicate save can occur.
type Committer struct {
	saver    Saver
	drafts   draft.Store
	history  HistoryAppender
	notifier *notify.Notifier
	log      *slog.Logger

	mu      sync.Mutex
	pending *pendingCommit
}

type pendingCommit struct {
	key     string
	payload Payload
}

// NewCommitter wires the commit step's collaborators.
func NewCommitter(saver Saver, drafts draft.Store, history HistoryAppender, notifier *notify.Notifier, log *slog.Logger) *Committer {
	return &Committer{
		saver:    saver,
		drafts:   drafts,
		history:  history,
		notifier: notifier,
		log:      log,
	}
}

// Complete builds (or reuses) the finalize payload and invokes the save
// collaborator. On failure the payload and session state are left intact so
// the user may retry the same commit. On success the result is snapshotted
// locally, a history record appended, the draft and cached plan cleared,
// and completion notifications emitted.
func (c *Committer) Complete(ctx context.Context, cp *session.Checkpoint, durationMinutes int, startedAt time.Time) (remote.SaveResult, error) {
	key := cp.PlanTitle + "|" + startedAt.UTC().Format(time.RFC3339)

	c.mu.Lock()
	if c.pending == nil || c.pending.key != key {
		c.pending = &pendingCommit{key: key, payload: BuildPayload(cp, durationMinutes, startedAt)}
	}
	payload := c.pending.payload
	c.mu.Unlock()

	result, err := c.saver.SaveSession(ctx, payload)
	if err != nil {
		return remote.SaveResult{}, fmt.Errorf("saving session: %w", err)
	}

	if data, err := json.Marshal(result); err == nil {
		if err := c.drafts.Save(ctx, draft.KeyLastResult, data); err != nil {
			c.log.Warn("storing last result failed", "error", err)
		}
	}

	payloadJSON, err := json.Marshal(payload)
	if err == nil {
		rec := draft.HistoryRecord{
			RemoteSessionID: result.SessionID,
			Title:           payload.Title,
			StartedAt:       startedAt,
			DurationMinutes: durationMinutes,
			Payload:         payloadJSON,
		}
		if err := c.history.AppendHistory(ctx, rec); err != nil {
			c.log.Warn("appending local history failed", "error", err)
		}
	}

	if err := c.drafts.Delete(ctx, draft.KeySessionDraft); err != nil {
		c.log.Warn("clearing draft failed", "error", err)
	}
	if err := c.drafts.Delete(ctx, draft.KeyCachedPlan); err != nil {
		c.log.Warn("clearing cached plan failed", "error", err)
	}

	c.notifier.Publish(notify.EventScheduleUpdated)
	c.notifier.Publish(notify.EventPlanCompleted)

	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()

	c.log.Info("session committed", "title", payload.Title, "session_id", result.SessionID)
	return result, nil
}
