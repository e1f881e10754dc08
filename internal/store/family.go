package store

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
)

type FamilyStore struct {
	db DBTX
}

func NewFamilyStore(db DBTX) *FamilyStore {
	return &FamilyStore{db: db}
}

func scanFamily(scanner interface{ Scan(...any) error }) (*model.Family, error) {
	var f model.Family
	err := scanner.Scan(&f.ID, &f.Name, &f.LinkCode, &f.Timezone, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

const familyCols = `id, name, link_code, timezone, created_at, updated_at`

const linkCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generateLinkCode returns a 6-character code children use to join a family.
func generateLinkCode() (string, error) {
	b := make([]byte, 6)
	max := big.NewInt(int64(len(linkCodeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate link code: %w", err)
		}
		b[i] = linkCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}

func (s *FamilyStore) Create(name, timezone string) (*model.Family, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	code, err := generateLinkCode()
	if err != nil {
		return nil, err
	}
	result, err := s.db.Exec(
		`INSERT INTO families (name, link_code, timezone) VALUES (?, ?, ?)`,
		name, code, timezone,
	)
	if err != nil {
		return nil, fmt.Errorf("insert family: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *FamilyStore) GetByID(id int64) (*model.Family, error) {
	row := s.db.QueryRow(`SELECT `+familyCols+` FROM families WHERE id = ?`, id)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}
	return f, nil
}

func (s *FamilyStore) GetByLinkCode(code string) (*model.Family, error) {
	row := s.db.QueryRow(`SELECT `+familyCols+` FROM families WHERE link_code = ?`, code)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family by link code: %w", err)
	}
	return f, nil
}

func (s *FamilyStore) Update(id int64, name, timezone string) (*model.Family, error) {
	_, err := s.db.Exec(
		`UPDATE families SET name = ?, timezone = ?, updated_at = ? WHERE id = ?`,
		name, timezone, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update family: %w", err)
	}
	return s.GetByID(id)
}

func (s *FamilyStore) List() ([]model.Family, error) {
	rows, err := s.db.Query(`SELECT ` + familyCols + ` FROM families ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list families: %w", err)
	}
	defer rows.Close()

	var families []model.Family
	for rows.Next() {
		f, err := scanFamily(rows)
		if err != nil {
			return nil, fmt.Errorf("scan family: %w", err)
		}
		families = append(families, *f)
	}
	return families, rows.Err()
}

func (s *FamilyStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM families WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete family: %w", err)
	}
	return nil
}
