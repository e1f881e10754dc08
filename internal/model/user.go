package model

import "time"

type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// User is either a parent (email login) or a child (PIN login) in a family.
type User struct {
	ID             int64      `json:"id"`
	FamilyID       int64      `json:"family_id"`
	Role           Role       `json:"role"`
	Name           string     `json:"name"`
	Email          string     `json:"email,omitempty"`
	ParentSubRole  string     `json:"parent_sub_role,omitempty"`
	Gender         string     `json:"gender,omitempty"`
	Avatar         string     `json:"avatar"`
	HasPIN         bool       `json:"has_pin"`
	XP             int        `json:"xp"`
	Level          int        `json:"level"`
	Points         int        `json:"points"`
	Gems           int        `json:"gems"`
	LastDailyReset string     `json:"last_daily_reset,omitempty"`
	LastActive     *time.Time `json:"last_active,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (u *User) IsParent() bool { return u.Role == RoleParent }
func (u *User) IsChild() bool  { return u.Role == RoleChild }

// Progress is the mutable economy portion of a child profile.
type Progress struct {
	XP     int `json:"xp"`
	Level  int `json:"level"`
	Points int `json:"points"`
	Gems   int `json:"gems"`
}

func (u *User) Progress() Progress {
	return Progress{XP: u.XP, Level: u.Level, Points: u.Points, Gems: u.Gems}
}
