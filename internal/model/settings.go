package model

type Prize struct {
	Title     string `json:"title"`
	PrizeText string `json:"prize_text"`
	IconURL   string `json:"icon_url"`
}
