package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
)

type GeofenceStore struct {
	db DBTX
}

func NewGeofenceStore(db DBTX) *GeofenceStore {
	return &GeofenceStore{db: db}
}

func scanGeofence(scanner interface{ Scan(...any) error }) (*model.Geofence, error) {
	var g model.Geofence
	err := scanner.Scan(&g.ID, &g.FamilyID, &g.Name, &g.Latitude, &g.Longitude, &g.Radius, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

const geofenceCols = `id, family_id, name, latitude, longitude, radius, created_at, updated_at`

func (s *GeofenceStore) Create(familyID int64, name string, lat, lng, radius float64) (*model.Geofence, error) {
	result, err := s.db.Exec(
		`INSERT INTO geofences (family_id, name, latitude, longitude, radius) VALUES (?, ?, ?, ?, ?)`,
		familyID, name, lat, lng, radius,
	)
	if err != nil {
		return nil, fmt.Errorf("insert geofence: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *GeofenceStore) GetByID(id int64) (*model.Geofence, error) {
	row := s.db.QueryRow(`SELECT `+geofenceCols+` FROM geofences WHERE id = ?`, id)
	g, err := scanGeofence(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get geofence: %w", err)
	}
	return g, nil
}

func (s *GeofenceStore) ListByFamily(familyID int64) ([]model.Geofence, error) {
	rows, err := s.db.Query(`SELECT `+geofenceCols+` FROM geofences WHERE family_id = ? ORDER BY name`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list geofences: %w", err)
	}
	defer rows.Close()

	var out []model.Geofence
	for rows.Next() {
		g, err := scanGeofence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan geofence: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

func (s *GeofenceStore) Update(id int64, name string, lat, lng, radius float64) (*model.Geofence, error) {
	_, err := s.db.Exec(
		`UPDATE geofences SET name = ?, latitude = ?, longitude = ?, radius = ?, updated_at = ? WHERE id = ?`,
		name, lat, lng, radius, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update geofence: %w", err)
	}
	return s.GetByID(id)
}

func (s *GeofenceStore) Delete(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM geofences WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete geofence: %w", err)
	}
	return nil
}

// --- Location methods ---

// RecordLocation replaces the child's latest fix and appends it to history.
func (s *GeofenceStore) RecordLocation(loc model.Location) error {
	return withTx(s.db, func(tx DBTX) error {
		_, err := tx.Exec(
			`INSERT INTO child_locations (child_id, latitude, longitude, accuracy, recorded_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(child_id) DO UPDATE SET latitude = excluded.latitude, longitude = excluded.longitude,
				accuracy = excluded.accuracy, recorded_at = excluded.recorded_at`,
			loc.ChildID, loc.Latitude, loc.Longitude, loc.Accuracy, loc.RecordedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("upsert location: %w", err)
		}
		_, err = tx.Exec(
			`INSERT INTO location_history (child_id, latitude, longitude, accuracy, recorded_at) VALUES (?, ?, ?, ?, ?)`,
			loc.ChildID, loc.Latitude, loc.Longitude, loc.Accuracy, loc.RecordedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("append location history: %w", err)
		}
		return nil
	})
}

func (s *GeofenceStore) GetLocation(childID int64) (*model.Location, error) {
	var loc model.Location
	err := s.db.QueryRow(
		`SELECT child_id, latitude, longitude, accuracy, recorded_at FROM child_locations WHERE child_id = ?`, childID,
	).Scan(&loc.ChildID, &loc.Latitude, &loc.Longitude, &loc.Accuracy, &loc.RecordedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return &loc, nil
}

func (s *GeofenceStore) ListHistory(childID int64, limit int) ([]model.Location, error) {
	rows, err := s.db.Query(
		`SELECT child_id, latitude, longitude, accuracy, recorded_at FROM location_history
		 WHERE child_id = ? ORDER BY recorded_at DESC, id DESC LIMIT ?`,
		childID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list location history: %w", err)
	}
	defer rows.Close()

	var out []model.Location
	for rows.Next() {
		var loc model.Location
		if err := rows.Scan(&loc.ChildID, &loc.Latitude, &loc.Longitude, &loc.Accuracy, &loc.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

func (s *GeofenceStore) PruneHistory(before time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM location_history WHERE recorded_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune location history: %w", err)
	}
	return result.RowsAffected()
}
