// Package leaderboard counts claimed quests per child and ranks children
// within a family and families against each other.
package leaderboard

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/recurrence"
	"github.com/dukerupert/questtracker/internal/store"
)

type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodTotal Period = "total"
)

var ErrInvalidPeriod = errors.New("invalid leaderboard period")

// ParsePeriod accepts "" as the weekly board.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case "":
		return PeriodWeek, nil
	case PeriodToday, PeriodWeek, PeriodMonth, PeriodTotal:
		return p, nil
	}
	return "", ErrInvalidPeriod
}

// Counts tallies claim dates relative to today. Weeks start on Monday.
type Counts struct {
	Today, Week, Month, Total int
}

func Tally(periods []string, today time.Time) Counts {
	weekStart := recurrence.WeekStart(today)
	monthStart := recurrence.MonthStart(today)
	var c Counts
	for _, p := range periods {
		d, err := recurrence.ParseDate(p)
		if err != nil {
			continue
		}
		c.Total++
		if d.After(today) {
			continue
		}
		if d.Equal(today) {
			c.Today++
		}
		if !d.Before(weekStart) {
			c.Week++
		}
		if !d.Before(monthStart) {
			c.Month++
		}
	}
	return c
}

func score(e model.LeaderboardEntry, p Period) int {
	switch p {
	case PeriodToday:
		return e.Today
	case PeriodMonth:
		return e.ThisMonth
	case PeriodTotal:
		return e.Total
	default:
		return e.ThisWeek
	}
}

type Service struct {
	families *store.FamilyStore
	users    *store.UserStore
	history  *store.HistoryStore
	settings *store.SettingsStore
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(db *sql.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		families: store.NewFamilyStore(db),
		users:    store.NewUserStore(db),
		history:  store.NewHistoryStore(db),
		settings: store.NewSettingsStore(db),
		logger:   logger.With("component", "leaderboard"),
		now:      time.Now,
	}
}

func (s *Service) entries(f *model.Family) ([]model.LeaderboardEntry, error) {
	children, err := s.users.ListChildren(f.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(children))
	for i, c := range children {
		ids[i] = c.ID
	}
	periods, err := s.history.ClaimPeriods(ids)
	if err != nil {
		return nil, err
	}

	today := recurrence.Today(s.now(), f.Location())
	out := make([]model.LeaderboardEntry, 0, len(children))
	for _, c := range children {
		counts := Tally(periods[c.ID], today)
		out = append(out, model.LeaderboardEntry{
			ChildID:   c.ID,
			FamilyID:  f.ID,
			Name:      c.Name,
			Avatar:    c.Avatar,
			Today:     counts.Today,
			ThisWeek:  counts.Week,
			ThisMonth: counts.Month,
			Total:     counts.Total,
		})
	}
	return out, nil
}

// FamilyBoard ranks the family's children by the period's count, highest
// first and then by name.
func (s *Service) FamilyBoard(ctx context.Context, familyID int64, p Period) ([]model.LeaderboardEntry, error) {
	f, err := s.families.GetByID(familyID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return []model.LeaderboardEntry{}, nil
	}
	entries, err := s.entries(f)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(entries, func(a, b model.LeaderboardEntry) int {
		if c := cmp.Compare(score(b, p), score(a, p)); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return entries, nil
}

// GlobalBoard ranks every family by the sum of its children's counts.
// Families with equal scores share a rank.
func (s *Service) GlobalBoard(ctx context.Context, p Period, limit int) ([]model.FamilyRank, error) {
	families, err := s.families.List()
	if err != nil {
		return nil, err
	}
	ranks := make([]model.FamilyRank, 0, len(families))
	for i := range families {
		entries, err := s.entries(&families[i])
		if err != nil {
			return nil, err
		}
		total := 0
		for _, e := range entries {
			total += score(e, p)
		}
		ranks = append(ranks, model.FamilyRank{FamilyID: families[i].ID, Name: families[i].Name, Score: total})
	}
	slices.SortStableFunc(ranks, func(a, b model.FamilyRank) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	for i := range ranks {
		if i > 0 && ranks[i].Score == ranks[i-1].Score {
			ranks[i].Rank = ranks[i-1].Rank
		} else {
			ranks[i].Rank = i + 1
		}
	}
	if limit > 0 && len(ranks) > limit {
		ranks = ranks[:limit]
	}
	return ranks, nil
}

// Prizes are what the weekly and monthly winners get.
type Prizes struct {
	Weekly  *model.Prize `json:"weekly"`
	Monthly *model.Prize `json:"monthly"`
}

func (s *Service) Prizes(ctx context.Context, familyID int64) (Prizes, error) {
	weekly, err := s.settings.GetPrize(familyID, store.SettingWeeklyPrize)
	if err != nil {
		return Prizes{}, err
	}
	monthly, err := s.settings.GetPrize(familyID, store.SettingMonthlyPrize)
	if err != nil {
		return Prizes{}, err
	}
	return Prizes{Weekly: weekly, Monthly: monthly}, nil
}

// SetPrize stores the prize for the weekly or monthly board.
func (s *Service) SetPrize(ctx context.Context, familyID int64, p Period, prize model.Prize) error {
	switch p {
	case PeriodWeek:
		return s.settings.SetPrize(familyID, store.SettingWeeklyPrize, prize)
	case PeriodMonth:
		return s.settings.SetPrize(familyID, store.SettingMonthlyPrize, prize)
	}
	return ErrInvalidPeriod
}
