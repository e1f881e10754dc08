package store

import (
	"database/sql"
	"fmt"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so a store can run inside
// or outside a transaction.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Tx groups the stores that take part in multi-row state changes. Every
// store in a Tx writes through the same *sql.Tx.
type Tx struct {
	Families      *FamilyStore
	Users         *UserStore
	Tasks         *TaskStore
	Completions   *CompletionStore
	History       *HistoryStore
	PassRuns      *PassRunStore
	Rewards       *RewardStore
	Wishlist      *WishlistStore
	Quizzes       *QuizStore
	QuestRequests *QuestRequestStore
}

func newTx(tx *sql.Tx) *Tx {
	return &Tx{
		Families:      NewFamilyStore(tx),
		Users:         NewUserStore(tx),
		Tasks:         NewTaskStore(tx),
		Completions:   NewCompletionStore(tx),
		History:       NewHistoryStore(tx),
		PassRuns:      NewPassRunStore(tx),
		Rewards:       NewRewardStore(tx),
		Wishlist:      NewWishlistStore(tx),
		Quizzes:       NewQuizStore(tx),
		QuestRequests: NewQuestRequestStore(tx),
	}
}

// InTx runs fn inside a single transaction. Everything fn writes commits
// together, or nothing does if fn returns an error.
func InTx(db *sql.DB, fn func(tx *Tx) error) error {
	sqlTx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(newTx(sqlTx)); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// withTx begins a transaction when db is a *sql.DB and otherwise reuses
// the caller's transaction.
func withTx(db DBTX, fn func(DBTX) error) error {
	sqlDB, ok := db.(*sql.DB)
	if !ok {
		return fn(db)
	}
	tx, err := sqlDB.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
