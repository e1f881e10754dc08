package quest

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/questtracker/internal/idset"
	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/store"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		task    model.Task
		wantErr bool
	}{
		{"valid one-time", model.Task{Title: "Bake", StartDate: "2026-03-01", EndDate: "2026-03-02"}, false},
		{"valid weekly", model.Task{Title: "Swim", StartDate: "2026-03-01", Repeat: weekly(model.Tuesday)}, false},
		{"blank title", model.Task{Title: "  ", StartDate: "2026-03-01"}, true},
		{"missing start", model.Task{Title: "Bake"}, true},
		{"end before start", model.Task{Title: "Bake", StartDate: "2026-03-05", EndDate: "2026-03-01"}, true},
		{"bad reminder", model.Task{Title: "Bake", StartDate: "2026-03-01", ReminderTime: "7pm"}, true},
		{"negative reward", model.Task{Title: "Bake", StartDate: "2026-03-01", RewardXP: -1}, true},
		{"bad frequency", model.Task{Title: "Bake", StartDate: "2026-03-01", Repeat: &model.RepeatRule{Frequency: "HOURLY"}}, true},
		{"bad weekday", model.Task{Title: "Bake", StartDate: "2026-03-01", Repeat: weekly("FUNDAY")}, true},
		{"negative interval", model.Task{Title: "Bake", StartDate: "2026-03-01", Repeat: &model.RepeatRule{Frequency: model.FrequencyDaily, Interval: -2}}, true},
	}
	for _, tt := range tests {
		err := Validate(&tt.task)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidTask) {
			t.Errorf("%s: err = %v, want ErrInvalidTask", tt.name, err)
		}
	}
}

func TestValidateDefaultsInterval(t *testing.T) {
	task := model.Task{Title: "Run", StartDate: "2026-03-01", Repeat: &model.RepeatRule{Frequency: model.FrequencyDaily}}
	if err := Validate(&task); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if task.Repeat.Interval != 1 {
		t.Errorf("interval = %d, want 1", task.Repeat.Interval)
	}
}

func TestCreateTaskChecksAssignees(t *testing.T) {
	f := setupQuestTest(t)
	ctx := context.Background()

	created, err := f.svc.CreateTask(ctx, f.parent, model.Task{
		Title:      "Practice guitar",
		StartDate:  "2026-03-12",
		Repeat:     daily(),
		AssignedTo: idset.Of(f.child.ID),
		RewardXP:   10,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if created.FamilyID != f.parent.FamilyID || created.CreatedBy != f.parent.ID {
		t.Errorf("owner = %d/%d, want %d/%d", created.FamilyID, created.CreatedBy, f.parent.FamilyID, f.parent.ID)
	}
	if titles := f.notes.titles(); len(titles) != 1 || titles[0] != "New Quest!" {
		t.Errorf("notifications = %v", titles)
	}

	_, err = f.svc.CreateTask(ctx, f.parent, model.Task{
		Title:      "Practice guitar",
		StartDate:  "2026-03-12",
		AssignedTo: idset.Of(f.parent.ID),
	})
	if !errors.Is(err, ErrInvalidTask) {
		t.Errorf("assign parent err = %v, want ErrInvalidTask", err)
	}
}

func TestDeleteTaskRemovesProofs(t *testing.T) {
	f := setupQuestTest(t)
	ctx := context.Background()
	task := f.createTask(t, model.Task{Title: "Vacuum", Repeat: daily()})
	if _, err := f.svc.Submit(ctx, f.child.ID, task.ID, proofImage(), false); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := f.svc.DeleteTask(ctx, f.parent.FamilyID+1, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete from other family err = %v, want ErrNotFound", err)
	}
	if err := f.svc.DeleteTask(ctx, f.parent.FamilyID, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if f.proofs.len() != 0 {
		t.Errorf("stored proofs = %d, want 0", f.proofs.len())
	}
	if c := f.completion(t, task.ID); c != nil {
		t.Errorf("completion = %+v, want removed with task", c)
	}
}

func TestQuestRequestApproval(t *testing.T) {
	f := setupQuestTest(t)
	ctx := context.Background()

	req, err := f.svc.RequestQuest(ctx, f.child.ID, model.QuestRequest{Title: "Build a fort", RewardXP: 15, RewardCoins: 5, Icon: "fort"})
	if err != nil {
		t.Fatalf("request quest: %v", err)
	}
	if req.Status != model.RequestPending || req.ChildName != "Alice" {
		t.Errorf("request = %+v", req)
	}

	task, err := f.svc.ApproveRequest(ctx, f.parent, req.ID, model.Task{EndDate: "2026-03-20"})
	if err != nil {
		t.Fatalf("approve request: %v", err)
	}
	if task.Title != "Build a fort" || task.RewardXP != 15 || task.StartDate != "2026-03-12" {
		t.Errorf("task = %+v", task)
	}
	if !task.AssignedTo.Equal(idset.Of(f.child.ID)) {
		t.Errorf("assigned_to = %v, want [%d]", task.AssignedTo, f.child.ID)
	}

	got, err := store.NewQuestRequestStore(f.db).GetByID(req.ID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if got.Status != model.RequestApproved || got.TaskID == nil || *got.TaskID != task.ID {
		t.Errorf("resolved request = %+v", got)
	}

	if _, err := f.svc.ApproveRequest(ctx, f.parent, req.ID, model.Task{}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second approval err = %v, want ErrInvalidTransition", err)
	}
}

func TestQuestRequestDecline(t *testing.T) {
	f := setupQuestTest(t)
	ctx := context.Background()

	req, err := f.svc.RequestQuest(ctx, f.child.ID, model.QuestRequest{Title: "Stay up late"})
	if err != nil {
		t.Fatalf("request quest: %v", err)
	}
	if err := f.svc.DeclineRequest(ctx, f.parent.FamilyID, req.ID, "school night"); err != nil {
		t.Fatalf("decline: %v", err)
	}
	got, err := store.NewQuestRequestStore(f.db).GetByID(req.ID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if got.Status != model.RequestDeclined || got.RejectionReason != "school night" {
		t.Errorf("request = %+v", got)
	}

	f.notes.mu.Lock()
	last := f.notes.sent[len(f.notes.sent)-1]
	f.notes.mu.Unlock()
	if last.userID != f.child.ID || last.n.Message != "Your quest request Stay up late was declined: school night" {
		t.Errorf("notification = %+v", last)
	}
}

func TestCount(t *testing.T) {
	tasks := []model.ChildTask{
		{Status: model.StatusCompleted},
		{Status: model.StatusWaitingForReset},
		{Status: model.StatusAwaitingApproval},
		{Status: model.StatusDeclined},
		{Status: model.StatusMissed},
		{Status: model.StatusPending},
		{Status: model.StatusPending},
	}
	got := Count(tasks)
	want := StatusCounts{Completed: 2, AwaitingApproval: 1, Declined: 1, Missed: 1, Ongoing: 2, Total: 7}
	if got != want {
		t.Errorf("Count = %+v, want %+v", got, want)
	}
}

func TestFamilyProgress(t *testing.T) {
	f := setupQuestTest(t)
	task := f.createTask(t, model.Task{Title: "Feed fish", Repeat: daily()})
	f.setCompletion(t, task.ID, model.StatusCompleted, at("2026-03-12 08:00"))
	f.createTask(t, model.Task{Title: "Read", Repeat: daily()})

	fp, err := f.svc.FamilyProgress(context.Background(), f.parent.FamilyID)
	if err != nil {
		t.Fatalf("family progress: %v", err)
	}
	if len(fp.Children) != 1 {
		t.Fatalf("children = %d, want 1", len(fp.Children))
	}
	want := StatusCounts{Completed: 1, Ongoing: 1, Total: 2}
	if fp.Overall != want {
		t.Errorf("overall = %+v, want %+v", fp.Overall, want)
	}
}
