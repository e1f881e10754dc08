package leaderboard

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/questtracker/internal/database"
	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/recurrence"
	"github.com/dukerupert/questtracker/internal/store"
)

func TestTally(t *testing.T) {
	today, _ := recurrence.ParseDate("2026-03-12") // Thursday
	periods := []string{
		"2026-03-12", "2026-03-12", // today
		"2026-03-09",               // Monday, this week
		"2026-03-08",               // Sunday, last week
		"2026-03-01",               // this month
		"2026-02-28",               // last month
		"garbage",
	}
	got := Tally(periods, today)
	want := Counts{Today: 2, Week: 3, Month: 5, Total: 6}
	if got != want {
		t.Errorf("Tally = %+v, want %+v", got, want)
	}
}

func TestParsePeriod(t *testing.T) {
	if p, err := ParsePeriod(""); err != nil || p != PeriodWeek {
		t.Errorf("ParsePeriod(\"\") = %q, %v", p, err)
	}
	if p, err := ParsePeriod("month"); err != nil || p != PeriodMonth {
		t.Errorf("ParsePeriod(month) = %q, %v", p, err)
	}
	if _, err := ParsePeriod("year"); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("ParsePeriod(year) err = %v, want ErrInvalidPeriod", err)
	}
}

type boardFixture struct {
	svc *Service
	db  *sql.DB
}

func setupLeaderboardTest(t *testing.T) *boardFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	svc := NewService(db, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC) }
	return &boardFixture{svc: svc, db: db}
}

func (f *boardFixture) family(t *testing.T, name string) *model.Family {
	t.Helper()
	fam, err := store.NewFamilyStore(f.db).Create(name, "UTC")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	return fam
}

func (f *boardFixture) child(t *testing.T, familyID int64, name string, claims ...string) *model.User {
	t.Helper()
	c, err := store.NewUserStore(f.db).CreateChild(familyID, name, "", "", "")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	history := store.NewHistoryStore(f.db)
	for i, period := range claims {
		_, err := history.Record(model.HistoryEntry{
			TaskID:  int64(i + 1),
			ChildID: c.ID,
			Title:   "quest",
			Status:  model.StatusCompleted,
			Source:  model.HistorySourceClaim,
			Period:  period,
		})
		if err != nil {
			t.Fatalf("record claim: %v", err)
		}
	}
	return c
}

func TestFamilyBoard(t *testing.T) {
	f := setupLeaderboardTest(t)
	fam := f.family(t, "Smiths")
	f.child(t, fam.ID, "Zoe", "2026-03-12", "2026-03-10")
	f.child(t, fam.ID, "Adam", "2026-03-12", "2026-03-11", "2026-02-01", "2026-02-02")
	f.child(t, fam.ID, "Bea", "2026-03-12", "2026-03-11")

	board, err := f.svc.FamilyBoard(context.Background(), fam.ID, PeriodWeek)
	if err != nil {
		t.Fatalf("family board: %v", err)
	}
	names := make([]string, len(board))
	for i, e := range board {
		names[i] = e.Name
	}
	want := []string{"Adam", "Bea", "Zoe"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order = %v, want %v", names, want)
		}
	}
	if board[0].Total != 4 || board[0].ThisWeek != 2 || board[0].Today != 1 {
		t.Errorf("Adam = %+v", board[0])
	}

	board, err = f.svc.FamilyBoard(context.Background(), fam.ID, PeriodTotal)
	if err != nil {
		t.Fatalf("family board: %v", err)
	}
	if board[0].Name != "Adam" || board[0].Total != 4 {
		t.Errorf("total leader = %+v", board[0])
	}
}

func TestGlobalBoardSharesRanks(t *testing.T) {
	f := setupLeaderboardTest(t)
	a := f.family(t, "Alphas")
	b := f.family(t, "Betas")
	c := f.family(t, "Gammas")
	f.child(t, a.ID, "A1", "2026-03-12")
	f.child(t, a.ID, "A2", "2026-03-11")
	f.child(t, b.ID, "B1", "2026-03-12", "2026-03-10")
	f.child(t, c.ID, "C1", "2026-03-01")

	ranks, err := f.svc.GlobalBoard(context.Background(), PeriodWeek, 0)
	if err != nil {
		t.Fatalf("global board: %v", err)
	}
	want := []model.FamilyRank{
		{FamilyID: a.ID, Name: "Alphas", Score: 2, Rank: 1},
		{FamilyID: b.ID, Name: "Betas", Score: 2, Rank: 1},
		{FamilyID: c.ID, Name: "Gammas", Score: 0, Rank: 3},
	}
	if len(ranks) != len(want) {
		t.Fatalf("ranks = %+v", ranks)
	}
	for i := range want {
		if ranks[i] != want[i] {
			t.Errorf("rank %d = %+v, want %+v", i, ranks[i], want[i])
		}
	}

	top, err := f.svc.GlobalBoard(context.Background(), PeriodWeek, 1)
	if err != nil {
		t.Fatalf("global board: %v", err)
	}
	if len(top) != 1 {
		t.Errorf("limited board = %d entries, want 1", len(top))
	}
}

func TestPrizes(t *testing.T) {
	f := setupLeaderboardTest(t)
	fam := f.family(t, "Smiths")
	ctx := context.Background()

	empty, err := f.svc.Prizes(ctx, fam.ID)
	if err != nil {
		t.Fatalf("prizes: %v", err)
	}
	if empty.Weekly != nil || empty.Monthly != nil {
		t.Errorf("prizes = %+v, want none", empty)
	}

	prize := model.Prize{Title: "Pizza night", PrizeText: "Winner picks toppings", IconURL: "https://example.com/pizza.png"}
	if err := f.svc.SetPrize(ctx, fam.ID, PeriodWeek, prize); err != nil {
		t.Fatalf("set prize: %v", err)
	}
	if err := f.svc.SetPrize(ctx, fam.ID, PeriodToday, prize); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("daily prize err = %v, want ErrInvalidPeriod", err)
	}
	got, err := f.svc.Prizes(ctx, fam.ID)
	if err != nil {
		t.Fatalf("prizes: %v", err)
	}
	if got.Weekly == nil || *got.Weekly != prize || got.Monthly != nil {
		t.Errorf("prizes = %+v", got)
	}
}
