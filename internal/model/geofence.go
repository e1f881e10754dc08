package model

import "time"

type Geofence struct {
	ID        int64     `json:"id"`
	FamilyID  int64     `json:"family_id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Radius    float64   `json:"radius"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Location struct {
	ChildID    int64     `json:"child_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}
