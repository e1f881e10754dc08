package model

type LeaderboardEntry struct {
	ChildID   int64  `json:"child_id"`
	FamilyID  int64  `json:"family_id"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	Today     int    `json:"today"`
	ThisWeek  int    `json:"this_week"`
	ThisMonth int    `json:"this_month"`
	Total     int    `json:"total"`
}

type FamilyRank struct {
	FamilyID int64  `json:"family_id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
}
