package model

import (
	"time"

	"github.com/dukerupert/questtracker/internal/idset"
)

type Frequency string

const (
	FrequencyDaily  Frequency = "DAILY"
	FrequencyWeekly Frequency = "WEEKLY"
)

type Weekday string

const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
	Sunday    Weekday = "SUNDAY"
)

var weekdays = map[Weekday]time.Weekday{
	Monday:    time.Monday,
	Tuesday:   time.Tuesday,
	Wednesday: time.Wednesday,
	Thursday:  time.Thursday,
	Friday:    time.Friday,
	Saturday:  time.Saturday,
	Sunday:    time.Sunday,
}

// Std converts to time.Weekday. ok is false for unknown names.
func (w Weekday) Std() (time.Weekday, bool) {
	d, ok := weekdays[w]
	return d, ok
}

func WeekdayOf(d time.Weekday) Weekday {
	for name, wd := range weekdays {
		if wd == d {
			return name
		}
	}
	return ""
}

type RepeatRule struct {
	Frequency      Frequency `json:"frequency"`
	Interval       int       `json:"interval"`
	WeeklyDays     []Weekday `json:"weekly_days,omitempty"`
	DailyFrequency string    `json:"daily_frequency,omitempty"`
	HourlyInterval int       `json:"hourly_interval,omitempty"`
}

// Task is a quest template owned by a parent. Dates are YYYY-MM-DD in the
// family's time zone; EndDate and ReminderTime may be empty.
type Task struct {
	ID           int64       `json:"id"`
	FamilyID     int64       `json:"family_id"`
	CreatedBy    int64       `json:"created_by"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	AssignedTo   idset.Set   `json:"assigned_to"`
	RewardXP     int         `json:"reward_xp"`
	RewardCoins  int         `json:"reward_coins"`
	BonusReward  string      `json:"bonus_reward,omitempty"`
	Repeat       *RepeatRule `json:"repeat,omitempty"`
	StartDate    string      `json:"start_date"`
	EndDate      string      `json:"end_date,omitempty"`
	ReminderTime string      `json:"reminder_time,omitempty"`
	Icon         string      `json:"icon"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (t *Task) IsRepeating() bool { return t.Repeat != nil }

type TaskStatus string

const (
	StatusPending          TaskStatus = "PENDING"
	StatusAwaitingApproval TaskStatus = "AWAITING_APPROVAL"
	StatusCompleted        TaskStatus = "COMPLETED"
	StatusDeclined         TaskStatus = "DECLINED"
	StatusWaitingForReset  TaskStatus = "WAITING_FOR_RESET"
	StatusMissed           TaskStatus = "MISSED"
)

// Completion is a child's per-task override of the template's state.
type Completion struct {
	ID           int64      `json:"id"`
	TaskID       int64      `json:"task_id"`
	ChildID      int64      `json:"child_id"`
	Status       TaskStatus `json:"status"`
	ProofKey     string     `json:"proof_key,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	NannyApprove bool       `json:"nanny_approve"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ChildTask is a template merged with the child's completion override.
type ChildTask struct {
	Task
	ChildID       int64      `json:"child_id"`
	Status        TaskStatus `json:"status"`
	ProofKey      string     `json:"proof_key,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	NannyApprove  bool       `json:"nanny_approve"`
	HasCompletion bool       `json:"-"`
}

// Merge overlays c onto t. A nil completion yields a pending task.
func Merge(t Task, childID int64, c *Completion) ChildTask {
	ct := ChildTask{Task: t, ChildID: childID, Status: StatusPending}
	if c != nil {
		ct.Status = c.Status
		ct.ProofKey = c.ProofKey
		ct.CompletedAt = c.CompletedAt
		ct.NannyApprove = c.NannyApprove
		ct.HasCompletion = true
	}
	return ct
}

const (
	HistorySourceClaim = "claim"
	HistorySourcePass  = "pass"
)

// HistoryEntry is an immutable record of a task outcome for a period.
type HistoryEntry struct {
	ID         int64      `json:"id"`
	TaskID     int64      `json:"task_id"`
	ChildID    int64      `json:"child_id"`
	Title      string     `json:"title"`
	Status     TaskStatus `json:"status"`
	XP         int        `json:"xp"`
	Coins      int        `json:"coins"`
	Source     string     `json:"source"`
	Period     string     `json:"period"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// PassRun records that the daily pass ran for a child on a date.
type PassRun struct {
	ChildID     int64     `json:"child_id"`
	RunDate     string    `json:"run_date"`
	RunID       string    `json:"run_id"`
	Missed      int       `json:"missed"`
	Completed   int       `json:"completed"`
	Declined    int       `json:"declined"`
	Reset       int       `json:"reset"`
	PointsDelta int       `json:"points_delta"`
	XPDelta     int       `json:"xp_delta"`
	CreatedAt   time.Time `json:"created_at"`
}
