package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
)

type WishlistStore struct {
	db DBTX
}

func NewWishlistStore(db DBTX) *WishlistStore {
	return &WishlistStore{db: db}
}

func scanWishlistItem(scanner interface{ Scan(...any) error }) (*model.WishlistItem, error) {
	var w model.WishlistItem
	var approvedAt sql.NullTime
	err := scanner.Scan(&w.ID, &w.ChildID, &w.Title, &w.Description, &w.Status, &approvedAt, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	w.ApprovalTimestamp = timePtr(approvedAt)
	return &w, nil
}

const wishlistCols = `id, child_id, title, description, status, approval_timestamp, created_at`

func (s *WishlistStore) Create(childID int64, title, description string) (*model.WishlistItem, error) {
	result, err := s.db.Exec(
		`INSERT INTO wishlist_items (child_id, title, description, status) VALUES (?, ?, ?, ?)`,
		childID, title, description, model.WishlistPending,
	)
	if err != nil {
		return nil, fmt.Errorf("insert wishlist item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *WishlistStore) GetByID(id int64) (*model.WishlistItem, error) {
	row := s.db.QueryRow(`SELECT `+wishlistCols+` FROM wishlist_items WHERE id = ?`, id)
	w, err := scanWishlistItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wishlist item: %w", err)
	}
	return w, nil
}

func (s *WishlistStore) list(query string, args ...any) ([]model.WishlistItem, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	var items []model.WishlistItem
	for rows.Next() {
		w, err := scanWishlistItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		items = append(items, *w)
	}
	return items, rows.Err()
}

func (s *WishlistStore) ListByChild(childID int64) ([]model.WishlistItem, error) {
	return s.list(`SELECT `+wishlistCols+` FROM wishlist_items WHERE child_id = ? ORDER BY created_at DESC, id DESC`, childID)
}

func (s *WishlistStore) ListByFamily(familyID int64) ([]model.WishlistItem, error) {
	return s.list(
		`SELECT w.id, w.child_id, w.title, w.description, w.status, w.approval_timestamp, w.created_at
		 FROM wishlist_items w JOIN users u ON u.id = w.child_id
		 WHERE u.family_id = ? ORDER BY w.created_at DESC, w.id DESC`, familyID)
}

// SetStatus moves a pending item to status. It reports false if the item
// was no longer pending.
func (s *WishlistStore) SetStatus(id int64, status model.WishlistStatus, at time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE wishlist_items SET status = ?, approval_timestamp = ? WHERE id = ? AND status = ?`,
		status, at.UTC(), id, model.WishlistPending,
	)
	if err != nil {
		return false, fmt.Errorf("set wishlist status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *WishlistStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM wishlist_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete wishlist item: %w", err)
	}
	return nil
}
