package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/questtracker/internal/model"
)

type PassRunStore struct {
	db DBTX
}

func NewPassRunStore(db DBTX) *PassRunStore {
	return &PassRunStore{db: db}
}

const passRunCols = `child_id, run_date, run_id, missed, completed, declined, reset, points_delta, xp_delta, created_at`

func scanPassRun(scanner interface{ Scan(...any) error }) (*model.PassRun, error) {
	var r model.PassRun
	err := scanner.Scan(&r.ChildID, &r.RunDate, &r.RunID, &r.Missed, &r.Completed, &r.Declined, &r.Reset,
		&r.PointsDelta, &r.XPDelta, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Claim inserts the run marker for (ChildID, RunDate). It reports false when
// a run already exists for that date.
func (s *PassRunStore) Claim(childID int64, runDate, runID string) (bool, error) {
	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO pass_runs (child_id, run_date, run_id) VALUES (?, ?, ?)`,
		childID, runDate, runID,
	)
	if err != nil {
		return false, fmt.Errorf("claim pass run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Finish stores the outcome counters of a claimed run.
func (s *PassRunStore) Finish(r model.PassRun) error {
	_, err := s.db.Exec(
		`UPDATE pass_runs SET missed = ?, completed = ?, declined = ?, reset = ?, points_delta = ?, xp_delta = ?
		 WHERE child_id = ? AND run_date = ?`,
		r.Missed, r.Completed, r.Declined, r.Reset, r.PointsDelta, r.XPDelta, r.ChildID, r.RunDate,
	)
	if err != nil {
		return fmt.Errorf("finish pass run: %w", err)
	}
	return nil
}

func (s *PassRunStore) Get(childID int64, runDate string) (*model.PassRun, error) {
	row := s.db.QueryRow(`SELECT `+passRunCols+` FROM pass_runs WHERE child_id = ? AND run_date = ?`, childID, runDate)
	r, err := scanPassRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pass run: %w", err)
	}
	return r, nil
}

func (s *PassRunStore) ListByChild(childID int64, limit int) ([]model.PassRun, error) {
	rows, err := s.db.Query(`SELECT `+passRunCols+` FROM pass_runs WHERE child_id = ? ORDER BY run_date DESC LIMIT ?`, childID, limit)
	if err != nil {
		return nil, fmt.Errorf("list pass runs: %w", err)
	}
	defer rows.Close()

	var out []model.PassRun
	for rows.Next() {
		r, err := scanPassRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pass run: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
