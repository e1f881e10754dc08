package quest

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/questtracker/internal/database"
	"github.com/dukerupert/questtracker/internal/idset"
	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/store"
)

type sentNotification struct {
	userID   int64
	familyID int64
	n        model.Notification
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (r *recordingNotifier) Notify(ctx context.Context, userID int64, n model.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{userID: userID, n: n})
}

func (r *recordingNotifier) NotifyParents(ctx context.Context, familyID int64, n model.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{familyID: familyID, n: n})
}

func (r *recordingNotifier) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.sent {
		out = append(out, s.n.Title)
	}
	return out
}

type memProofs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memProofs) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = b
	return nil
}

func (m *memProofs) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memProofs) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type questFixture struct {
	svc    *Service
	db     *sql.DB
	parent *model.User
	child  *model.User
	notes  *recordingNotifier
	proofs *memProofs
}

// 2026-03-12 is a Thursday.
var fixedNow = time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)

func setupQuestTest(t *testing.T) *questFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	fam, err := store.NewFamilyStore(db).Create("Test Family", "UTC")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	users := store.NewUserStore(db)
	parent, err := users.CreateParent(fam.ID, "parent@example.com", "Parent", "Mother")
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	child, err := users.CreateChild(fam.ID, "Alice", "fox", "female", "")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	notes := &recordingNotifier{}
	proofs := &memProofs{objects: make(map[string][]byte)}
	svc := NewService(db, proofs, notes, nil)
	svc.now = func() time.Time { return fixedNow }
	return &questFixture{svc: svc, db: db, parent: parent, child: child, notes: notes, proofs: proofs}
}

// createTask stores a task assigned to the fixture child, created well
// before any date used in the tests.
func (f *questFixture) createTask(t *testing.T, task model.Task) *model.Task {
	t.Helper()
	return f.createTaskAt(t, task, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
}

func (f *questFixture) createTaskAt(t *testing.T, task model.Task, createdAt time.Time) *model.Task {
	t.Helper()
	task.FamilyID = f.parent.FamilyID
	task.CreatedBy = f.parent.ID
	if task.AssignedTo.Len() == 0 {
		task.AssignedTo = idset.Of(f.child.ID)
	}
	if task.StartDate == "" {
		task.StartDate = "2026-03-01"
	}
	created, err := store.NewTaskStore(f.db).Create(&task)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := f.db.Exec(`UPDATE tasks SET created_at = ? WHERE id = ?`, createdAt.UTC(), created.ID); err != nil {
		t.Fatalf("backdate task: %v", err)
	}
	return created
}

func (f *questFixture) setCompletion(t *testing.T, taskID int64, status model.TaskStatus, completedAt *time.Time) {
	t.Helper()
	err := store.NewCompletionStore(f.db).Upsert(&model.Completion{
		TaskID:      taskID,
		ChildID:     f.child.ID,
		Status:      status,
		CompletedAt: completedAt,
	})
	if err != nil {
		t.Fatalf("set completion: %v", err)
	}
}

func (f *questFixture) completion(t *testing.T, taskID int64) *model.Completion {
	t.Helper()
	c, err := store.NewCompletionStore(f.db).Get(taskID, f.child.ID)
	if err != nil {
		t.Fatalf("get completion: %v", err)
	}
	return c
}

func (f *questFixture) setProgress(t *testing.T, p model.Progress, lastReset string) {
	t.Helper()
	users := store.NewUserStore(f.db)
	if err := users.SaveProgress(f.child.ID, p); err != nil {
		t.Fatalf("save progress: %v", err)
	}
	if err := users.SetLastDailyReset(f.child.ID, lastReset); err != nil {
		t.Fatalf("set last reset: %v", err)
	}
}

func (f *questFixture) progress(t *testing.T) model.Progress {
	t.Helper()
	u, err := store.NewUserStore(f.db).GetByID(f.child.ID)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	return u.Progress()
}

func (f *questFixture) history(t *testing.T, status model.TaskStatus) []model.HistoryEntry {
	t.Helper()
	entries, err := store.NewHistoryStore(f.db).ListByChildStatus(f.child.ID, status, 100)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	return entries
}

func at(s string) *time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func daily() *model.RepeatRule {
	return &model.RepeatRule{Frequency: model.FrequencyDaily, Interval: 1}
}

func weekly(days ...model.Weekday) *model.RepeatRule {
	return &model.RepeatRule{Frequency: model.FrequencyWeekly, Interval: 1, WeeklyDays: days}
}

func proofImage() *Proof {
	data := []byte("\xff\xd8\xff fake jpeg")
	return &Proof{Body: bytes.NewReader(data), ContentType: "image/jpeg", Size: int64(len(data))}
}
