package store

import (
	"fmt"

	"github.com/dukerupert/questtracker/internal/model"
)

type HistoryStore struct {
	db DBTX
}

func NewHistoryStore(db DBTX) *HistoryStore {
	return &HistoryStore{db: db}
}

func scanHistory(scanner interface{ Scan(...any) error }) (*model.HistoryEntry, error) {
	var h model.HistoryEntry
	err := scanner.Scan(&h.ID, &h.TaskID, &h.ChildID, &h.Title, &h.Status, &h.XP, &h.Coins, &h.Source, &h.Period, &h.RecordedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

const historyCols = `id, task_id, child_id, title, status, xp, coins, source, period, recorded_at`

// Record inserts e unless an entry with the same task, child, source, status
// and period exists. It reports whether a row was written.
func (s *HistoryStore) Record(e model.HistoryEntry) (bool, error) {
	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO task_history (task_id, child_id, title, status, xp, coins, source, period)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TaskID, e.ChildID, e.Title, e.Status, e.XP, e.Coins, e.Source, e.Period,
	)
	if err != nil {
		return false, fmt.Errorf("record history: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *HistoryStore) ListByChild(childID int64, limit int) ([]model.HistoryEntry, error) {
	return s.list(`SELECT `+historyCols+` FROM task_history WHERE child_id = ? ORDER BY period DESC, id DESC LIMIT ?`, childID, limit)
}

func (s *HistoryStore) ListByChildStatus(childID int64, status model.TaskStatus, limit int) ([]model.HistoryEntry, error) {
	return s.list(
		`SELECT `+historyCols+` FROM task_history WHERE child_id = ? AND status = ? ORDER BY period DESC, id DESC LIMIT ?`,
		childID, status, limit,
	)
}

func (s *HistoryStore) list(query string, args ...any) ([]model.HistoryEntry, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []model.HistoryEntry
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// ClaimPeriods returns the period keys of every claim recorded for the
// given children, grouped by child. Periods are YYYY-MM-DD dates.
func (s *HistoryStore) ClaimPeriods(childIDs []int64) (map[int64][]string, error) {
	out := make(map[int64][]string)
	if len(childIDs) == 0 {
		return out, nil
	}
	for _, id := range childIDs {
		rows, err := s.db.Query(
			`SELECT period FROM task_history WHERE child_id = ? AND source = ? ORDER BY period`,
			id, model.HistorySourceClaim,
		)
		if err != nil {
			return nil, fmt.Errorf("list claim periods: %w", err)
		}
		var periods []string
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan claim period: %w", err)
			}
			periods = append(periods, p)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
		out[id] = periods
	}
	return out, nil
}
