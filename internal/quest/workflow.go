package quest

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/recurrence"
	"github.com/dukerupert/questtracker/internal/store"
)

// Proof is an uploaded proof-of-completion image.
type Proof struct {
	Body        io.Reader
	ContentType string
	Size        int64
}

func proofKey(familyID, childID int64, contentType string) string {
	ext := "jpg"
	switch contentType {
	case "image/png":
		ext = "png"
	case "image/webp":
		ext = "webp"
	}
	return fmt.Sprintf("proofs/%d/%d/%s.%s", familyID, childID, uuid.NewString(), ext)
}

// Submit marks the child's task as done and waiting for a parent's review.
// A proof image is optional.
func (s *Service) Submit(ctx context.Context, childID, taskID int64, proof *Proof, nannyApprove bool) (*model.ChildTask, error) {
	child, err := s.child(s.users, childID)
	if err != nil {
		return nil, err
	}
	ct, err := childTask(s.tasks, s.completions, taskID, childID)
	if err != nil {
		return nil, err
	}
	switch ct.Status {
	case model.StatusPending, model.StatusDeclined, model.StatusMissed:
	default:
		return nil, ErrInvalidTransition
	}
	loc, err := s.location(child.FamilyID)
	if err != nil {
		return nil, err
	}
	sched, err := recurrence.FromTask(ct.Task)
	if err != nil {
		return nil, err
	}
	if !sched.IsActive(recurrence.Today(s.now(), loc)) {
		return nil, ErrInvalidTransition
	}

	var key string
	if proof != nil && proof.Body != nil && s.proofs != nil {
		key = proofKey(child.FamilyID, childID, proof.ContentType)
		if err := s.proofs.Put(ctx, key, proof.ContentType, proof.Body, proof.Size); err != nil {
			return nil, fmt.Errorf("upload proof: %w", err)
		}
	}

	now := s.now().UTC()
	c := &model.Completion{
		TaskID:       taskID,
		ChildID:      childID,
		Status:       model.StatusAwaitingApproval,
		ProofKey:     key,
		CompletedAt:  &now,
		NannyApprove: nannyApprove,
	}
	if err := s.completions.Upsert(c); err != nil {
		s.deleteProof(ctx, key)
		return nil, err
	}
	if ct.ProofKey != key {
		s.deleteProof(ctx, ct.ProofKey)
	}

	s.notifyParents(ctx, child.FamilyID, model.Notification{
		Title:    "Quest Approval!",
		Message:  fmt.Sprintf("%s marked %s for approval", child.Name, ct.Title),
		Category: model.CategoryTaskChange,
		Data:     model.NotificationData{Content: fmt.Sprint(taskID), Action: "review_quest"},
	})

	updated := model.Merge(ct.Task, childID, c)
	return &updated, nil
}

// Cancel withdraws a submission that is still waiting for review.
func (s *Service) Cancel(ctx context.Context, childID, taskID int64) (*model.ChildTask, error) {
	ct, err := childTask(s.tasks, s.completions, taskID, childID)
	if err != nil {
		return nil, err
	}
	if ct.Status != model.StatusAwaitingApproval {
		return nil, ErrInvalidTransition
	}
	if err := s.completions.Delete(taskID, childID); err != nil {
		return nil, err
	}
	s.deleteProof(ctx, ct.ProofKey)

	updated := model.Merge(ct.Task, childID, nil)
	return &updated, nil
}

// review moves an awaiting submission to status and discards the proof.
func (s *Service) review(ctx context.Context, familyID, taskID, childID int64, status model.TaskStatus) (*model.ChildTask, error) {
	ct, err := childTask(s.tasks, s.completions, taskID, childID)
	if err != nil {
		return nil, err
	}
	if ct.FamilyID != familyID {
		return nil, ErrNotFound
	}
	if ct.Status != model.StatusAwaitingApproval {
		return nil, ErrInvalidTransition
	}
	c := &model.Completion{
		TaskID:       taskID,
		ChildID:      childID,
		Status:       status,
		CompletedAt:  ct.CompletedAt,
		NannyApprove: ct.NannyApprove,
	}
	if err := s.completions.Upsert(c); err != nil {
		return nil, err
	}
	s.deleteProof(ctx, ct.ProofKey)

	updated := model.Merge(ct.Task, childID, c)
	return &updated, nil
}

// Approve accepts a child's submission. The child can then claim it.
func (s *Service) Approve(ctx context.Context, familyID, taskID, childID int64) (*model.ChildTask, error) {
	ct, err := s.review(ctx, familyID, taskID, childID, model.StatusCompleted)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, childID, model.Notification{
		Title:    "Quest Approved!",
		Message:  fmt.Sprintf("%s was approved. Claim your reward!", ct.Title),
		Category: model.CategoryTaskChange,
		Data:     model.NotificationData{Content: fmt.Sprint(taskID), Action: "claim_quest"},
	})
	return ct, nil
}

// Decline rejects a child's submission.
func (s *Service) Decline(ctx context.Context, familyID, taskID, childID int64) (*model.ChildTask, error) {
	ct, err := s.review(ctx, familyID, taskID, childID, model.StatusDeclined)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, childID, model.Notification{
		Title:    "Quest Declined!",
		Message:  fmt.Sprintf("%s was declined", ct.Title),
		Category: model.CategoryTaskChange,
		Data:     model.NotificationData{Content: fmt.Sprint(taskID), Action: "view_quest"},
	})
	return ct, nil
}

type ClaimResult struct {
	Task         model.ChildTask `json:"task"`
	Progress     model.Progress  `json:"progress"`
	LevelsGained int             `json:"levels_gained"`
}

// Claim collects the rewards of an approved task. The task waits for its
// next cycle afterwards.
func (s *Service) Claim(ctx context.Context, childID, taskID int64) (*ClaimResult, error) {
	owner, err := s.child(s.users, childID)
	if err != nil {
		return nil, err
	}
	loc, err := s.location(owner.FamilyID)
	if err != nil {
		return nil, err
	}

	var result ClaimResult
	err = store.InTx(s.db, func(tx *store.Tx) error {
		child, err := s.child(tx.Users, childID)
		if err != nil {
			return err
		}
		ct, err := childTask(tx.Tasks, tx.Completions, taskID, childID)
		if err != nil {
			return err
		}
		if ct.Status != model.StatusCompleted {
			return ErrInvalidTransition
		}

		now := s.now().UTC()
		c := &model.Completion{
			TaskID:       taskID,
			ChildID:      childID,
			Status:       model.StatusWaitingForReset,
			CompletedAt:  &now,
			NannyApprove: ct.NannyApprove,
		}
		if err := tx.Completions.Upsert(c); err != nil {
			return err
		}

		progress, levels := award(child.Progress(), ct.RewardXP, ct.RewardCoins)
		if err := tx.Users.SaveProgress(childID, progress); err != nil {
			return err
		}
		_, err = tx.History.Record(model.HistoryEntry{
			TaskID:  taskID,
			ChildID: childID,
			Title:   ct.Title,
			Status:  model.StatusCompleted,
			XP:      ct.RewardXP,
			Coins:   ct.RewardCoins,
			Source:  model.HistorySourceClaim,
			Period:  recurrence.FormatDate(recurrence.Today(now, loc)),
		})
		if err != nil {
			return err
		}

		result = ClaimResult{
			Task:         model.Merge(ct.Task, childID, c),
			Progress:     progress,
			LevelsGained: levels,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("quest claimed", "child_id", childID, "task_id", taskID, "levels_gained", result.LevelsGained)
	return &result, nil
}

// PendingApprovals returns the family's submissions waiting for review.
func (s *Service) PendingApprovals(ctx context.Context, familyID int64) ([]model.ChildTask, error) {
	comps, err := s.completions.ListByStatus(familyID, model.StatusAwaitingApproval)
	if err != nil {
		return nil, err
	}
	out := []model.ChildTask{}
	for i := range comps {
		t, err := s.tasks.GetByID(comps[i].TaskID)
		if err != nil {
			return nil, err
		}
		if t == nil {
			continue
		}
		out = append(out, model.Merge(*t, comps[i].ChildID, &comps[i]))
	}
	return out, nil
}

// History returns the child's recorded outcomes, newest first. An empty
// status returns every outcome.
func (s *Service) History(ctx context.Context, childID int64, status model.TaskStatus, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var (
		entries []model.HistoryEntry
		err     error
	)
	if status == "" {
		entries, err = s.history.ListByChild(childID, limit)
	} else {
		entries, err = s.history.ListByChildStatus(childID, status, limit)
	}
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	return entries, nil
}
