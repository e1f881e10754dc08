package quest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/questtracker/internal/idset"
	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/recurrence"
	"github.com/dukerupert/questtracker/internal/store"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTask, fmt.Sprintf(format, args...))
}

// Validate checks a task template and normalizes its repeat interval.
func Validate(t *model.Task) error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return invalid("title is required")
	}
	start, err := recurrence.ParseDate(t.StartDate)
	if err != nil {
		return invalid("start date must be YYYY-MM-DD")
	}
	if t.EndDate != "" {
		end, err := recurrence.ParseDate(t.EndDate)
		if err != nil {
			return invalid("end date must be YYYY-MM-DD")
		}
		if end.Before(start) {
			return invalid("end date is before start date")
		}
	}
	if t.ReminderTime != "" {
		if _, err := time.Parse("15:04", t.ReminderTime); err != nil {
			return invalid("reminder time must be HH:MM")
		}
	}
	if t.RewardXP < 0 || t.RewardCoins < 0 {
		return invalid("rewards must not be negative")
	}
	if r := t.Repeat; r != nil {
		switch r.Frequency {
		case model.FrequencyDaily, model.FrequencyWeekly:
		default:
			return invalid("unknown frequency %q", r.Frequency)
		}
		if r.Interval == 0 {
			r.Interval = 1
		}
		if r.Interval < 1 {
			return invalid("interval must be at least 1")
		}
		for _, d := range r.WeeklyDays {
			if _, ok := d.Std(); !ok {
				return invalid("unknown weekday %q", d)
			}
		}
	}
	return nil
}

// checkAssignees verifies every assignee is a child of the family.
func checkAssignees(users *store.UserStore, familyID int64, ids idset.Set) error {
	children, err := users.ListChildren(familyID)
	if err != nil {
		return err
	}
	var known idset.Set
	for _, c := range children {
		known.Add(c.ID)
	}
	for _, id := range ids.IDs() {
		if !known.Contains(id) {
			return invalid("user %d is not a child of this family", id)
		}
	}
	return nil
}

// CreateTask stores a new template owned by the parent's family.
func (s *Service) CreateTask(ctx context.Context, parent *model.User, t model.Task) (*model.Task, error) {
	if err := Validate(&t); err != nil {
		return nil, err
	}
	if err := checkAssignees(s.users, parent.FamilyID, t.AssignedTo); err != nil {
		return nil, err
	}
	t.FamilyID = parent.FamilyID
	t.CreatedBy = parent.ID
	created, err := s.tasks.Create(&t)
	if err != nil {
		return nil, err
	}
	for _, childID := range created.AssignedTo.IDs() {
		s.notify(ctx, childID, model.Notification{
			Title:    "New Quest!",
			Message:  created.Title,
			Category: model.CategoryTaskChange,
			Data:     model.NotificationData{Content: fmt.Sprint(created.ID), Action: "view_quest"},
		})
	}
	return created, nil
}

// Tasks lists the family's templates.
func (s *Service) Tasks(ctx context.Context, familyID int64) ([]model.Task, error) {
	tasks, err := s.tasks.ListByFamily(familyID)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// UpdateTask replaces a template. Completion overrides are kept.
func (s *Service) UpdateTask(ctx context.Context, familyID int64, t model.Task) (*model.Task, error) {
	existing, err := s.tasks.GetByID(t.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.FamilyID != familyID {
		return nil, ErrNotFound
	}
	if err := Validate(&t); err != nil {
		return nil, err
	}
	if err := checkAssignees(s.users, familyID, t.AssignedTo); err != nil {
		return nil, err
	}
	t.FamilyID = familyID
	t.CreatedBy = existing.CreatedBy
	return s.tasks.Update(&t)
}

// DeleteTask removes a template with its completions and their proofs.
func (s *Service) DeleteTask(ctx context.Context, familyID, taskID int64) error {
	t, err := s.tasks.GetByID(taskID)
	if err != nil {
		return err
	}
	if t == nil || t.FamilyID != familyID {
		return ErrNotFound
	}
	var proofs []string
	for _, childID := range t.AssignedTo.IDs() {
		c, err := s.completions.Get(taskID, childID)
		if err != nil {
			return err
		}
		if c != nil && c.ProofKey != "" {
			proofs = append(proofs, c.ProofKey)
		}
	}
	if err := s.tasks.Delete(taskID); err != nil {
		return err
	}
	for _, key := range proofs {
		s.deleteProof(ctx, key)
	}
	return nil
}

// RequestQuest records a child's proposal and tells the parents.
func (s *Service) RequestQuest(ctx context.Context, childID int64, req model.QuestRequest) (*model.QuestRequest, error) {
	child, err := s.child(s.users, childID)
	if err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, invalid("title is required")
	}
	if req.RewardXP < 0 || req.RewardCoins < 0 {
		return nil, invalid("rewards must not be negative")
	}
	req.FamilyID = child.FamilyID
	req.ChildID = child.ID
	req.ChildName = child.Name
	created, err := s.requests.Create(&req)
	if err != nil {
		return nil, err
	}
	s.notifyParents(ctx, child.FamilyID, model.Notification{
		Title:    "Quest Request!",
		Message:  fmt.Sprintf("%s requested a new quest: %s", child.Name, created.Title),
		Category: model.CategoryTaskChange,
		Data:     model.NotificationData{Content: fmt.Sprint(created.ID), Action: "review_request"},
	})
	return created, nil
}

func (s *Service) QuestRequests(ctx context.Context, familyID int64) ([]model.QuestRequest, error) {
	return s.requests.ListByFamily(familyID)
}

func (s *Service) ChildQuestRequests(ctx context.Context, childID int64) ([]model.QuestRequest, error) {
	return s.requests.ListByChild(childID)
}

func (s *Service) pendingRequest(requests *store.QuestRequestStore, familyID, requestID int64) (*model.QuestRequest, error) {
	req, err := requests.GetByID(requestID)
	if err != nil {
		return nil, err
	}
	if req == nil || req.FamilyID != familyID {
		return nil, ErrNotFound
	}
	if req.Status != model.RequestPending {
		return nil, ErrInvalidTransition
	}
	return req, nil
}

// ApproveRequest creates the quest the child asked for, assigned to that
// child. Blank fields of t are filled from the request.
func (s *Service) ApproveRequest(ctx context.Context, parent *model.User, requestID int64, t model.Task) (*model.Task, error) {
	loc, err := s.location(parent.FamilyID)
	if err != nil {
		return nil, err
	}

	var created *model.Task
	var req *model.QuestRequest
	err = store.InTx(s.db, func(tx *store.Tx) error {
		req, err = s.pendingRequest(tx.QuestRequests, parent.FamilyID, requestID)
		if err != nil {
			return err
		}
		if t.Title == "" {
			t.Title = req.Title
		}
		if t.Description == "" {
			t.Description = req.Description
		}
		if t.RewardXP == 0 && t.RewardCoins == 0 {
			t.RewardXP = req.RewardXP
			t.RewardCoins = req.RewardCoins
		}
		if t.Icon == "" {
			t.Icon = req.Icon
		}
		if t.StartDate == "" {
			t.StartDate = recurrence.FormatDate(recurrence.Today(s.now(), loc))
		}
		t.AssignedTo = idset.Of(req.ChildID)
		t.FamilyID = parent.FamilyID
		t.CreatedBy = parent.ID
		if err := Validate(&t); err != nil {
			return err
		}

		created, err = tx.Tasks.Create(&t)
		if err != nil {
			return err
		}
		ok, err := tx.QuestRequests.Resolve(requestID, model.RequestApproved, "", &created.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, req.ChildID, model.Notification{
		Title:    "Quest Request Approved!",
		Message:  fmt.Sprintf("Your quest request %s was approved", req.Title),
		Category: model.CategoryTaskChange,
		Data:     model.NotificationData{Content: fmt.Sprint(created.ID), Action: "view_quest"},
	})
	return created, nil
}

// DeclineRequest rejects a child's proposal with a reason.
func (s *Service) DeclineRequest(ctx context.Context, familyID, requestID int64, reason string) error {
	req, err := s.pendingRequest(s.requests, familyID, requestID)
	if err != nil {
		return err
	}
	ok, err := s.requests.Resolve(requestID, model.RequestDeclined, strings.TrimSpace(reason), nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidTransition
	}
	msg := fmt.Sprintf("Your quest request %s was declined", req.Title)
	if r := strings.TrimSpace(reason); r != "" {
		msg += ": " + r
	}
	s.notify(ctx, req.ChildID, model.Notification{
		Title:    "Quest Request Declined",
		Message:  msg,
		Category: model.CategoryTaskChange,
		Data:     model.NotificationData{Content: fmt.Sprint(requestID), Action: "view_request"},
	})
	return nil
}
