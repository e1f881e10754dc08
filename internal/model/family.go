package model

import "time"

type Family struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	LinkCode  string    `json:"link_code"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location returns the family's time zone, falling back to UTC.
func (f *Family) Location() *time.Location {
	if f == nil || f.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
